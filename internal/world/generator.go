package world

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/annel0/voxel-engine/internal/util"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Режимы генерации мира
const (
	ModeStarfield   = "starfield"
	ModeHeightfield = "heightfield"
)

// Параметры генерации по умолчанию
const (
	DefaultStarDensity = 32    // Шанс твердого блока 1/32
	DefaultNoiseWidth  = 100.0 // Горизонтальный масштаб шума
	DefaultNoiseHeight = 0.5   // Доля высоты мира под поверхностью
	starColorStep      = 15    // Шаг цветового градиента по осям
	chunkSeedStride    = 7919  // Простое число для разнесения сидов чанков
)

// Generator заполняет один чанк сетки. coords - координаты чанка в сетке (в чанках),
// domain - число чанков по оси.
type Generator interface {
	Name() string
	Generate(chunk *DenseChunk, coords vec.Vec3, domain int) error
}

// RandSource - источник равномерных случайных чисел. *rand.Rand ему удовлетворяет.
type RandSource interface {
	Intn(n int) int
}

// NoiseSource - когерентный двумерный шум со значениями в [0, 1]
type NoiseSource interface {
	Noise2D(x, y float64) float64
}

// Starfield заполняет мир редкими цветными блоками, как звездное небо
type Starfield struct {
	Seed    int64
	Density int // Блок твердый с вероятностью 1/Density

	// NewSource позволяет подменить источник случайности (например, в тестах).
	// По умолчанию каждый чанк получает rand.Rand с сидом Seed + index*7919.
	NewSource func(chunkIndex int) RandSource
}

// Name возвращает имя режима
func (s Starfield) Name() string {
	return ModeStarfield
}

// Generate заполняет чанк. Цвет зависит только от локальных координат:
// каждая ось дает полосу coord*15 mod 255.
func (s Starfield) Generate(chunk *DenseChunk, coords vec.Vec3, domain int) error {
	density := s.Density
	if density <= 0 {
		density = DefaultStarDensity
	}

	chunkIndex := coords.Z + domain*(coords.Y+domain*coords.X)
	var rng RandSource
	if s.NewSource != nil {
		rng = s.NewSource(chunkIndex)
	} else {
		rng = rand.New(rand.NewSource(s.Seed + int64(chunkIndex)*chunkSeedStride))
	}

	return chunk.Fill(func(x, y, z int) (block.Block, error) {
		alpha := 0
		if rng.Intn(density) == 0 {
			alpha = block.MaxChannel
		}
		return block.Pack(
			x*starColorStep%block.MaxChannel,
			y*starColorStep%block.MaxChannel,
			z*starColorStep%block.MaxChannel,
			alpha,
		)
	})
}

// Heightfield строит холмистый ландшафт по двумерному шуму
type Heightfield struct {
	Noise  NoiseSource
	Width  float64 // Горизонтальный масштаб шума в вокселях
	Height float64 // Доля высоты мира, которую может занимать рельеф
}

// NewHeightfield создает генератор рельефа на шуме Перлина с указанным сидом
func NewHeightfield(seed int64, width, height float64) Heightfield {
	return Heightfield{
		Noise:  util.NewPerlin(seed),
		Width:  width,
		Height: height,
	}
}

// Name возвращает имя режима
func (h Heightfield) Name() string {
	return ModeHeightfield
}

// Validate проверяет параметры до начала генерации
func (h Heightfield) Validate() error {
	if h.Noise == nil {
		return fmt.Errorf("heightfield without noise source: %w", ErrInvalidState)
	}
	if !(h.Width > 0) {
		return fmt.Errorf("noise width %f: %w", h.Width, ErrRange)
	}
	if !(h.Height > 0) {
		return fmt.Errorf("noise height %f: %w", h.Height, ErrRange)
	}
	return nil
}

// Generate заполняет чанк. Воксель твердый, если его глобальная Y ниже поверхности
// floor(noise * size * domain * Height). Цвет кодирует нормированную позицию.
func (h Heightfield) Generate(chunk *DenseChunk, coords vec.Vec3, domain int) error {
	if err := h.Validate(); err != nil {
		return err
	}

	size := chunk.Size()
	total := float64(size * domain)
	origin := coords.Scale(size)

	// Высота поверхности зависит только от (X, Z), считаем ее один раз на колонку
	surface := make([]int, size*size)
	for x := 0; x < size; x++ {
		for z := 0; z < size; z++ {
			gx := float64(origin.X + x)
			gz := float64(origin.Z + z)
			noise := util.Clamp01(h.Noise.Noise2D(gx/h.Width, gz/h.Width))
			surface[x*size+z] = int(math.Floor(noise * total * h.Height))
		}
	}

	return chunk.Fill(func(x, y, z int) (block.Block, error) {
		gx, gy, gz := origin.X+x, origin.Y+y, origin.Z+z

		alpha := 0
		if gy < surface[x*size+z] {
			alpha = block.MaxChannel
		}
		return block.Pack(
			int(float64(gx)/total*block.MaxChannel),
			int(float64(gy)/total*block.MaxChannel),
			int(float64(gz)/total*block.MaxChannel),
			alpha,
		)
	})
}

// NewGenerator создает генератор по имени режима
func NewGenerator(mode string, seed int64, noiseWidth, noiseHeight float64) (Generator, error) {
	switch mode {
	case ModeStarfield:
		return Starfield{Seed: seed}, nil
	case ModeHeightfield, "":
		gen := NewHeightfield(seed, noiseWidth, noiseHeight)
		if err := gen.Validate(); err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown world generation mode %q", mode)
	}
}
