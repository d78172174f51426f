package world

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// scriptedSource возвращает 0 для каждого k-го вызова, иначе 1
type scriptedSource struct {
	every int
	calls int
}

func (s *scriptedSource) Intn(n int) int {
	s.calls++
	if s.calls%s.every == 0 {
		return 0
	}
	return 1
}

func TestStarfieldColorsAndInjectedSource(t *testing.T) {
	chunk, err := NewDenseChunk(4)
	require.NoError(t, err)

	var requested []int
	gen := Starfield{
		NewSource: func(chunkIndex int) RandSource {
			requested = append(requested, chunkIndex)
			return &scriptedSource{every: 2}
		},
	}
	require.NoError(t, gen.Generate(chunk, vec.Vec3{X: 1, Y: 0, Z: 1}, 2))
	assert.Equal(t, []int{5}, requested, "Индекс чанка (1,0,1) в домене 2 равен 5")

	// Каждый второй воксель твердый, цвет зависит только от локальных координат
	assert.Equal(t, 32, chunk.SolidCount())
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			for z := 0; z < 4; z++ {
				blk, err := chunk.At(x, y, z)
				require.NoError(t, err)
				r, g, b, _ := blk.RGBA()
				assert.Equal(t, [3]int{x * 15 % 255, y * 15 % 255, z * 15 % 255}, [3]int{r, g, b})
			}
		}
	}
}

func TestStarfieldDensity(t *testing.T) {
	chunk, err := NewDenseChunk(32)
	require.NoError(t, err)
	require.NoError(t, Starfield{Seed: 3}.Generate(chunk, vec.Vec3{}, 1))

	// Ожидаемая доля 1/32 от 32768 = 1024
	solid := chunk.SolidCount()
	assert.Greater(t, solid, 800)
	assert.Less(t, solid, 1250)

	for _, blk := range chunk.Blocks() {
		a := blk.Alpha()
		if a != 0 && a != block.MaxChannel {
			t.Fatalf("Генератор пишет только альфу 0 или 255, получено %d", a)
		}
	}
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(ModeStarfield, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ModeStarfield, gen.Name())

	gen, err = NewGenerator(ModeHeightfield, 1, DefaultNoiseWidth, DefaultNoiseHeight)
	require.NoError(t, err)
	assert.Equal(t, ModeHeightfield, gen.Name())

	_, err = NewGenerator(ModeHeightfield, 1, -5, 0.5)
	assert.True(t, errors.Is(err, ErrRange))

	_, err = NewGenerator("caves", 1, 100, 0.5)
	assert.Error(t, err)
}

func TestHeightfieldWithoutNoise(t *testing.T) {
	chunk, err := NewDenseChunk(2)
	require.NoError(t, err)
	err = Heightfield{Width: 10, Height: 0.5}.Generate(chunk, vec.Vec3{}, 1)
	assert.True(t, errors.Is(err, ErrInvalidState))
}
