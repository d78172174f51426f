package world

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// constNoise - шум с постоянным значением для предсказуемого рельефа
type constNoise float64

func (n constNoise) Noise2D(x, y float64) float64 { return float64(n) }

func TestGridStarfieldExportScenario(t *testing.T) {
	grid, err := NewChunkGrid(1, 2)
	require.NoError(t, err)
	require.NoError(t, grid.Populate(context.Background(), Starfield{Seed: 7}))

	blocks, err := grid.ExportBlocks()
	require.NoError(t, err)
	assert.Len(t, blocks, 8, "Мир 1x2³ должен выгрузить 8 блоков")

	offsets, err := grid.ExportChunkOffsets()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, offsets)
}

func TestGridExportBeforePopulate(t *testing.T) {
	grid, err := NewChunkGrid(2, 4)
	require.NoError(t, err)

	_, err = grid.ExportBlocks()
	assert.True(t, errors.Is(err, ErrNotPopulated))
	assert.True(t, errors.Is(err, ErrInvalidState))

	_, err = grid.ExportChunkOffsets()
	assert.True(t, errors.Is(err, ErrNotPopulated))

	_, err = grid.Export()
	assert.True(t, errors.Is(err, ErrNotPopulated))

	_, err = grid.BlockAt(vec.Vec3{})
	assert.True(t, errors.Is(err, ErrNotPopulated))
}

func TestGridInvalidDimensions(t *testing.T) {
	_, err := NewChunkGrid(0, 4)
	assert.True(t, errors.Is(err, ErrRange))
	_, err = NewChunkGrid(2, 0)
	assert.True(t, errors.Is(err, ErrRange))
}

func TestGridPopulateIsIdempotent(t *testing.T) {
	grid, err := NewChunkGrid(2, 4)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, grid.Populate(ctx, NewHeightfield(1, 30, 0.5)))
	first, err := grid.ExportBlocks()
	require.NoError(t, err)

	// Второй вызов - даже с другим генератором - ничего не меняет
	require.NoError(t, grid.Populate(ctx, NewHeightfield(1, 30, 0.5)))
	require.NoError(t, grid.Populate(ctx, Starfield{Seed: 99}))
	second, err := grid.ExportBlocks()
	require.NoError(t, err)

	assert.Equal(t, first, second, "Повторная генерация не должна менять мир")
}

func TestGridHeightfieldDeterminism(t *testing.T) {
	build := func() []block.Block {
		grid, err := NewChunkGrid(2, 8)
		require.NoError(t, err)
		require.NoError(t, grid.Populate(context.Background(), NewHeightfield(12345, 40, 0.7)))
		blocks, err := grid.ExportBlocks()
		require.NoError(t, err)
		return blocks
	}
	assert.Equal(t, build(), build(), "Одинаковые параметры должны давать одинаковый мир")
}

func TestGridStarfieldDeterministicAcrossWorkers(t *testing.T) {
	build := func(workers int) []block.Block {
		grid, err := NewChunkGrid(3, 4)
		require.NoError(t, err)
		grid.SetWorkers(workers)
		require.NoError(t, grid.Populate(context.Background(), Starfield{Seed: 5}))
		blocks, err := grid.ExportBlocks()
		require.NoError(t, err)
		return blocks
	}
	assert.Equal(t, build(1), build(8), "Параллельная генерация должна совпадать с последовательной")
}

func TestGridHeightfieldSurface(t *testing.T) {
	// noise=0.5, size*domain=8, height=1 -> поверхность на высоте 4
	grid, err := NewChunkGrid(2, 4)
	require.NoError(t, err)
	gen := Heightfield{Noise: constNoise(0.5), Width: 50, Height: 1}
	require.NoError(t, grid.Populate(context.Background(), gen))

	for y := 0; y < 8; y++ {
		blk, err := grid.BlockAt(vec.Vec3{X: 5, Y: y, Z: 2})
		require.NoError(t, err)
		assert.Equal(t, y < 4, blk.IsSolid(), "y=%d", y)
	}

	// Цвет кодирует нормированную позицию
	blk, err := grid.BlockAt(vec.Vec3{X: 4, Y: 2, Z: 6})
	require.NoError(t, err)
	r, g, b, a := blk.RGBA()
	assert.Equal(t, [4]int{127, 63, 191, 255}, [4]int{r, g, b, a})

	stats := grid.Stats()
	assert.Equal(t, 8, stats.Chunks)
	assert.Equal(t, 512, stats.Voxels)
	assert.Equal(t, 8*8*4, stats.Solid)
}

func TestGridBlockAtMatchesExportContract(t *testing.T) {
	grid, err := NewChunkGrid(2, 3)
	require.NoError(t, err)
	require.NoError(t, grid.Populate(context.Background(), Starfield{Seed: 11, Density: 3}))

	buf, err := grid.Export()
	require.NoError(t, err)
	require.NoError(t, buf.Validate())
	assert.Equal(t, export.LayoutChunkGrid, buf.Layout)
	assert.Equal(t, 6, buf.Extent())

	for x := 0; x < 6; x++ {
		for y := 0; y < 6; y++ {
			for z := 0; z < 6; z++ {
				p := vec.Vec3{X: x, Y: y, Z: z}
				want, err := grid.BlockAt(p)
				require.NoError(t, err)
				got, err := export.Sample(buf, p)
				require.NoError(t, err)
				if want != got {
					t.Fatalf("Расхождение в %v: сетка %v, буфер %v", p, want, got)
				}
			}
		}
	}

	_, err = grid.BlockAt(vec.Vec3{X: 6})
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestGridChunkOffsetsAreLinear(t *testing.T) {
	grid, err := NewChunkGrid(3, 2)
	require.NoError(t, err)
	require.NoError(t, grid.Populate(context.Background(), Starfield{}))

	offsets, err := grid.ExportChunkOffsets()
	require.NoError(t, err)
	require.Len(t, offsets, 27)
	for i, off := range offsets {
		assert.Equal(t, uint32(i*8), off)
	}
}

func TestGridChunkCoords(t *testing.T) {
	grid, err := NewChunkGrid(3, 1)
	require.NoError(t, err)
	for i := 0; i < grid.ChunkCount(); i++ {
		c := grid.ChunkCoords(i)
		assert.Equal(t, i, grid.ChunkIndex(c.X, c.Y, c.Z))
	}
	assert.Equal(t, vec.Vec3{X: 1, Y: 0, Z: 0}, grid.ChunkCoords(9))
}

func TestGridPopulateCancelled(t *testing.T) {
	grid, err := NewChunkGrid(2, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = grid.Populate(ctx, Starfield{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, grid.Populated(), "Отмененная генерация не должна помечать сетку")

	require.NoError(t, grid.Populate(context.Background(), Starfield{}))
	assert.True(t, grid.Populated())
}

func TestGridPopulateRejectsBadGenerator(t *testing.T) {
	grid, err := NewChunkGrid(1, 2)
	require.NoError(t, err)

	err = grid.Populate(context.Background(), Heightfield{Noise: constNoise(0.5), Width: 0, Height: 0.5})
	assert.True(t, errors.Is(err, ErrRange))
	assert.False(t, grid.Populated())
}

// brokenGenerator портит один воксель в каждом чанке
type brokenGenerator struct{}

func (brokenGenerator) Name() string { return "broken" }

func (brokenGenerator) Generate(chunk *DenseChunk, coords vec.Vec3, domain int) error {
	return chunk.Fill(func(x, y, z int) (block.Block, error) {
		if x == 0 && y == 0 && z == 0 {
			return block.Pack(0, 0, 0, 999)
		}
		return block.Pack(1, 1, 1, 255)
	})
}

func TestGridPopulateContinuesPastVoxelErrors(t *testing.T) {
	grid, err := NewChunkGrid(2, 2)
	require.NoError(t, err)

	err = grid.Populate(context.Background(), brokenGenerator{})
	assert.True(t, errors.Is(err, block.ErrRange), "Ошибки вокселей должны дойти до вызывающего")
	assert.True(t, grid.Populated(), "Проход не должен прерываться из-за одного вокселя")

	blk, err := grid.BlockAt(vec.Vec3{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	assert.True(t, blk.IsSolid())
	blk, err = grid.BlockAt(vec.Vec3{X: 2, Y: 2, Z: 2})
	require.NoError(t, err)
	assert.Equal(t, block.Air, blk)
}

func TestGridFromBuffers(t *testing.T) {
	grid, err := NewChunkGrid(2, 3)
	require.NoError(t, err)
	require.NoError(t, grid.Populate(context.Background(), Starfield{Seed: 11}))

	buf, err := grid.Export()
	require.NoError(t, err)

	restored, err := GridFromBuffers(buf)
	require.NoError(t, err)
	assert.True(t, restored.Populated())

	again, err := restored.Export()
	require.NoError(t, err)
	assert.Equal(t, buf, again)

	_, err = GridFromBuffers(&export.Buffers{Layout: export.LayoutOctree, Nodes: []uint32{0}})
	assert.ErrorIs(t, err, export.ErrMalformed)
}
