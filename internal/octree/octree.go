// Package octree реализует разреженное октодерево с ленивым делением.
// Все узлы живут в одном срезе (арене) и ссылаются друг на друга индексами;
// корень - узел 0, восемь потомков ветви всегда лежат подряд.
package octree

import (
	"context"
	"fmt"

	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// MaxScale - наибольший масштаб корня (сторона 2^30)
const MaxScale = 30

// Предел длины арены: индекс потомка занимает 31 бит.
var maxArenaLen int64 = 1 << 31

// Octree не синхронизирован: один писатель или несколько читателей одновременно.
type Octree struct {
	nodes        []Node
	scale        int
	origin       vec.Vec3
	subdivisions uint64
}

// New создает дерево из одного листа-воздуха со стороной 2^scale
func New(scale int, origin vec.Vec3) (*Octree, error) {
	if scale < 0 || scale > MaxScale {
		return nil, fmt.Errorf("octree scale %d: %w", scale, ErrRange)
	}
	return &Octree{
		nodes:  []Node{LeafNode(block.Air)},
		scale:  scale,
		origin: origin,
	}, nil
}

// Scale возвращает масштаб корня
func (t *Octree) Scale() int { return t.scale }

// Origin возвращает начало координат корня
func (t *Octree) Origin() vec.Vec3 { return t.origin }

// Size возвращает сторону корня в вокселях
func (t *Octree) Size() int { return 1 << t.scale }

// Len возвращает число узлов в арене
func (t *Octree) Len() int { return len(t.nodes) }

// Subdivisions возвращает число делений с момента создания
func (t *Octree) Subdivisions() uint64 { return t.subdivisions }

// Nodes возвращает копию арены
func (t *Octree) Nodes() []Node {
	nodes := make([]Node, len(t.nodes))
	copy(nodes, t.nodes)
	return nodes
}

// Subdivide превращает лист в ветвь с восемью потомками того же значения.
// Потомки дописываются в конец арены. Единичный лист не делится.
func (t *Octree) Subdivide(nodeIndex int) error {
	if nodeIndex < 0 || nodeIndex >= len(t.nodes) {
		return fmt.Errorf("subdivide node %d of %d: %w", nodeIndex, len(t.nodes), ErrRange)
	}
	if t.nodeSize(nodeIndex) == 1 {
		return fmt.Errorf("subdivide node %d: unit node: %w", nodeIndex, ErrInvalidState)
	}
	return t.subdivide(nodeIndex)
}

// nodeSize находит сторону узла по глубине. Потомки всегда лежат в арене
// дальше родителя, поэтому хватает одного прохода до idx.
func (t *Octree) nodeSize(idx int) int {
	depth := make([]uint8, idx+1)
	for i := 0; i < idx; i++ {
		n := t.nodes[i]
		if !n.IsBranch() {
			continue
		}
		base := n.ChildBase()
		for c := base; c < base+8 && c <= idx; c++ {
			depth[c] = depth[i] + 1
		}
	}
	return t.Size() >> depth[idx]
}

func (t *Octree) subdivide(nodeIndex int) error {
	node := t.nodes[nodeIndex]
	if node.IsBranch() {
		return fmt.Errorf("subdivide node %d: already divided: %w", nodeIndex, ErrInvalidState)
	}
	if int64(len(t.nodes))+8 > maxArenaLen {
		return fmt.Errorf("subdivide node %d: %w", nodeIndex, ErrArenaFull)
	}

	childBase := len(t.nodes)
	for i := 0; i < 8; i++ {
		t.nodes = append(t.nodes, node)
	}
	t.nodes[nodeIndex] = BranchNode(childBase)
	t.subdivisions++
	return nil
}

// FindChild выбирает октант точки p внутри узла с началом nodeOrigin и стороной size.
// Возвращает индекс потомка и его начало.
func FindChild(childBase int, p, nodeOrigin vec.Vec3, size int) (int, vec.Vec3) {
	half := size / 2
	child := childBase
	if p.X >= nodeOrigin.X+half {
		child += 4
		nodeOrigin.X += half
	}
	if p.Y >= nodeOrigin.Y+half {
		child += 2
		nodeOrigin.Y += half
	}
	if p.Z >= nodeOrigin.Z+half {
		child++
		nodeOrigin.Z += half
	}
	return child, nodeOrigin
}

// SetVoxel записывает значение в единичный воксель p, деля листья по пути.
// Если лист на пути уже хранит это значение, дерево не меняется.
func (t *Octree) SetVoxel(p vec.Vec3, value block.Block) error {
	if !FitsPayload(value) {
		return fmt.Errorf("set voxel %v: value %s does not fit 31 bits: %w", p, value, ErrRange)
	}
	if !p.InCube(t.origin, t.Size()) {
		return fmt.Errorf("set voxel %v: %w", p, ErrOutOfBounds)
	}

	idx, origin, size := 0, t.origin, t.Size()
	for {
		node := t.nodes[idx]
		if node.IsBranch() {
			idx, origin = FindChild(node.ChildBase(), p, origin, size)
			size /= 2
			continue
		}
		if node.Payload() == value {
			return nil
		}
		if size == 1 {
			t.nodes[idx] = LeafNode(value)
			return nil
		}
		if err := t.subdivide(idx); err != nil {
			return fmt.Errorf("set voxel %v: %w", p, err)
		}
	}
}

// GetBlockAt возвращает значение листа, покрывающего p
func (t *Octree) GetBlockAt(p vec.Vec3) (block.Block, error) {
	if !p.InCube(t.origin, t.Size()) {
		return block.Air, fmt.Errorf("get block %v: %w", p, ErrOutOfBounds)
	}

	idx, origin, size := 0, t.origin, t.Size()
	for {
		node := t.nodes[idx]
		if !node.IsBranch() {
			return node.Payload(), nil
		}
		idx, origin = FindChild(node.ChildBase(), p, origin, size)
		size /= 2
	}
}

// VoxelSource возвращает значение вокселя в глобальных координатах
type VoxelSource func(p vec.Vec3) (block.Block, error)

// Fill записывает в дерево воксели куба [from, from+side) из src; часть куба
// вне корня пропускается. Воздух не пишется: дерево должно быть пустым,
// иначе старые значения останутся.
func (t *Octree) Fill(ctx context.Context, from vec.Vec3, side int, src VoxelSource) error {
	lo, hi := t.clip(from, side)
	for x := lo.X; x < hi.X; x++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for y := lo.Y; y < hi.Y; y++ {
			for z := lo.Z; z < hi.Z; z++ {
				p := vec.Vec3{X: x, Y: y, Z: z}
				v, err := src(p)
				if err != nil {
					return fmt.Errorf("fill %v: %w", p, err)
				}
				if v == block.Air {
					continue
				}
				if err := t.SetVoxel(p, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// clip пересекает куб [from, from+side) с корнем; пустое пересечение даёт hi <= lo.
func (t *Octree) clip(from vec.Vec3, side int) (lo, hi vec.Vec3) {
	end := t.origin.Add(vec.Splat(t.Size()))
	lo = vec.Vec3{X: max(from.X, t.origin.X), Y: max(from.Y, t.origin.Y), Z: max(from.Z, t.origin.Z)}
	hi = vec.Vec3{X: min(from.X+side, end.X), Y: min(from.Y+side, end.Y), Z: min(from.Z+side, end.Z)}
	return lo, hi
}

// Export выгружает копию арены для рендерера
func (t *Octree) Export() (*export.Buffers, error) {
	nodes := make([]uint32, len(t.nodes))
	for i, n := range t.nodes {
		nodes[i] = uint32(n)
	}
	return &export.Buffers{
		Layout: export.LayoutOctree,
		Nodes:  nodes,
		Scale:  t.scale,
		Origin: t.origin,
	}, nil
}
