package octree

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Leaf - лист дерева вместе с занимаемым кубом
type Leaf struct {
	Index  int
	Origin vec.Vec3
	Size   int
	Depth  int
	Value  block.Block
}

// Stats - сводка по структуре дерева
type Stats struct {
	Nodes        int    `json:"nodes"`
	Leaves       int    `json:"leaves"`
	Branches     int    `json:"branches"`
	SolidLeaves  int    `json:"solid_leaves"`
	MaxDepth     int    `json:"max_depth"`
	Bytes        int    `json:"bytes"`
	Subdivisions uint64 `json:"subdivisions"`
}

type frame struct {
	index  int
	origin vec.Vec3
	size   int
	depth  int
}

// Walk обходит листья в глубину в порядке октантов. Обход прекращается, если fn вернула false.
func (t *Octree) Walk(fn func(Leaf) bool) {
	stack := []frame{{index: 0, origin: t.origin, size: t.Size()}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := t.nodes[f.index]
		if !node.IsBranch() {
			if !fn(Leaf{Index: f.index, Origin: f.origin, Size: f.size, Depth: f.depth, Value: node.Payload()}) {
				return
			}
			continue
		}

		half := f.size / 2
		base := node.ChildBase()
		// В обратном порядке, чтобы октант 0 снимался со стека первым
		for octant := 7; octant >= 0; octant-- {
			stack = append(stack, frame{
				index:  base + octant,
				origin: f.origin.Add(octantOffset(octant).Scale(half)),
				size:   half,
				depth:  f.depth + 1,
			})
		}
	}
}

func octantOffset(octant int) vec.Vec3 {
	return vec.Vec3{X: octant>>2&1, Y: octant>>1&1, Z: octant & 1}
}

// Stats считает листья, ветви и глубину
func (t *Octree) Stats() Stats {
	st := Stats{
		Nodes:        len(t.nodes),
		Bytes:        4 * len(t.nodes),
		Subdivisions: t.subdivisions,
	}
	for _, n := range t.nodes {
		if n.IsBranch() {
			st.Branches++
		}
	}
	t.Walk(func(l Leaf) bool {
		st.Leaves++
		if l.Value.IsSolid() {
			st.SolidLeaves++
		}
		if l.Depth > st.MaxDepth {
			st.MaxDepth = l.Depth
		}
		return true
	})
	return st
}

// FromNodes восстанавливает дерево из выгруженной арены, проверяя каждую ветвь:
// потомки лежат внутри арены строго после родителя, а единичные узлы - листья.
func FromNodes(scale int, origin vec.Vec3, nodes []uint32) (*Octree, error) {
	if scale < 0 || scale > MaxScale {
		return nil, fmt.Errorf("octree scale %d: %w", scale, ErrRange)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("empty arena: %w", ErrCorruptArena)
	}
	if int64(len(nodes)) > maxArenaLen {
		return nil, fmt.Errorf("arena of %d nodes: %w", len(nodes), ErrCorruptArena)
	}

	arena := make([]Node, len(nodes))
	for i, w := range nodes {
		arena[i] = Node(w)
	}

	reached := make([]bool, len(arena))
	reached[0] = true
	stack := []frame{{index: 0, size: 1 << scale}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := arena[f.index]
		if !node.IsBranch() {
			continue
		}
		if f.size == 1 {
			return nil, fmt.Errorf("unit node %d is divided: %w", f.index, ErrCorruptArena)
		}
		base := node.ChildBase()
		if base <= f.index || base+8 > len(arena) {
			return nil, fmt.Errorf("node %d: child base %d outside arena of %d: %w", f.index, base, len(arena), ErrCorruptArena)
		}
		for octant := 0; octant < 8; octant++ {
			child := base + octant
			if reached[child] {
				return nil, fmt.Errorf("node %d referenced twice: %w", child, ErrCorruptArena)
			}
			reached[child] = true
			stack = append(stack, frame{index: child, size: f.size / 2})
		}
	}

	var subdivisions uint64
	for _, n := range arena {
		if n.IsBranch() {
			subdivisions++
		}
	}

	return &Octree{
		nodes:        arena,
		scale:        scale,
		origin:       origin,
		subdivisions: subdivisions,
	}, nil
}
