package octree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func TestWalkCoversCube(t *testing.T) {
	tree, _ := New(3, vec.Vec3{X: 8})
	require.NoError(t, tree.SetVoxel(vec.Vec3{X: 9, Y: 1, Z: 1}, block.Stone))
	require.NoError(t, tree.SetVoxel(vec.Vec3{X: 15, Y: 7, Z: 0}, block.Water))

	volume := 0
	solid := 0
	var first *Leaf
	tree.Walk(func(l Leaf) bool {
		if first == nil {
			leaf := l
			first = &leaf
		}
		volume += l.Size * l.Size * l.Size
		if l.Value != block.Air {
			solid++
			assert.Equal(t, 1, l.Size)
		}
		got, err := tree.GetBlockAt(l.Origin)
		require.NoError(t, err)
		assert.Equal(t, l.Value, got)
		return true
	})

	assert.Equal(t, 512, volume)
	assert.Equal(t, 2, solid)
	require.NotNil(t, first)
	assert.Equal(t, vec.Vec3{X: 8}, first.Origin)
}

func TestWalkStops(t *testing.T) {
	tree, _ := New(2, vec.Vec3{})
	require.NoError(t, tree.SetVoxel(vec.Vec3{}, block.Stone))

	visited := 0
	tree.Walk(func(Leaf) bool {
		visited++
		return visited < 3
	})
	assert.Equal(t, 3, visited)
}

func TestStats(t *testing.T) {
	tree, _ := New(3, vec.Vec3{})
	require.NoError(t, tree.SetVoxel(vec.Vec3{X: 7, Y: 7, Z: 7}, block.Stone))

	st := tree.Stats()
	assert.Equal(t, 25, st.Nodes)
	assert.Equal(t, 3, st.Branches)
	assert.Equal(t, 22, st.Leaves)
	assert.Equal(t, 1, st.SolidLeaves)
	assert.Equal(t, 3, st.MaxDepth)
	assert.Equal(t, 100, st.Bytes)
	assert.Equal(t, uint64(3), st.Subdivisions)
}

func TestFromNodesRoundTrip(t *testing.T) {
	tree, _ := New(4, vec.Vec3{Y: -16})
	require.NoError(t, tree.SetVoxel(vec.Vec3{X: 3, Y: -2, Z: 9}, block.Dirt))
	require.NoError(t, tree.SetVoxel(vec.Vec3{X: 12, Y: -16, Z: 0}, block.Sand))

	buf, err := tree.Export()
	require.NoError(t, err)

	restored, err := FromNodes(buf.Scale, buf.Origin, buf.Nodes)
	require.NoError(t, err)
	assert.Equal(t, tree.Nodes(), restored.Nodes())
	assert.Equal(t, tree.Origin(), restored.Origin())
	assert.Equal(t, tree.Subdivisions(), restored.Subdivisions())

	got, err := restored.GetBlockAt(vec.Vec3{X: 3, Y: -2, Z: 9})
	require.NoError(t, err)
	assert.Equal(t, block.Dirt, got)

	// Восстановленное дерево продолжает расти
	require.NoError(t, restored.SetVoxel(vec.Vec3{X: 0, Y: -1, Z: 15}, block.Stone))
}

func TestFromNodesRejectsCorruption(t *testing.T) {
	leaf := uint32(block.Stone)
	branch := func(base int) uint32 { return uint32(BranchNode(base)) }
	nine := func(root uint32) []uint32 {
		nodes := []uint32{root}
		for i := 0; i < 8; i++ {
			nodes = append(nodes, leaf)
		}
		return nodes
	}

	// Узлы 1 и 2 ссылаются на одну и ту же восьмерку
	shared := append(nine(branch(1)), nine(leaf)[1:]...)
	shared[1] = branch(9)
	shared[2] = branch(9)

	cases := []struct {
		name  string
		scale int
		nodes []uint32
	}{
		{name: "пустая арена", scale: 2},
		{name: "потомки за ареной", scale: 2, nodes: []uint32{branch(1), leaf, leaf}},
		{name: "ссылка на себя", scale: 2, nodes: nine(branch(0))},
		{name: "единичная ветвь", scale: 0, nodes: nine(branch(1))},
		{name: "двойная ссылка", scale: 3, nodes: shared},
	}

	for _, tc := range cases {
		_, err := FromNodes(tc.scale, vec.Vec3{}, tc.nodes)
		if !errors.Is(err, ErrCorruptArena) {
			t.Errorf("%s: ожидалась ErrCorruptArena, получено %v", tc.name, err)
		}
	}

	_, err := FromNodes(31, vec.Vec3{}, []uint32{0})
	assert.True(t, errors.Is(err, ErrRange))
}
