package util

import (
	"github.com/aquilax/go-perlin"
)

// Параметры шума Перлина по умолчанию
const (
	DefaultNoiseAlpha   = 2.0 // Сглаживание шума
	DefaultNoiseBeta    = 2.0 // Частота шума
	DefaultNoiseOctaves = 3   // Количество октав
)

// Perlin - детерминированный генератор двумерного шума со своим сидом.
// В отличие от глобального генератора, каждый экземпляр независим.
type Perlin struct {
	seed  int64
	noise *perlin.Perlin
}

// NewPerlin создает генератор шума Перлина с указанным сидом
func NewPerlin(seed int64) *Perlin {
	return &Perlin{
		seed:  seed,
		noise: perlin.NewPerlin(DefaultNoiseAlpha, DefaultNoiseBeta, int32(DefaultNoiseOctaves), seed),
	}
}

// Seed возвращает сид генератора
func (p *Perlin) Seed() int64 {
	return p.seed
}

// Noise2D возвращает значение шума Перлина для указанных координат (от 0 до 1)
func (p *Perlin) Noise2D(x, y float64) float64 {
	// Получаем значение шума (примерно от -1 до 1)
	noise := p.noise.Noise2D(x, y)

	// Преобразуем в диапазон от 0 до 1
	return Clamp01((noise + 1.0) / 2.0)
}

// Clamp01 ограничивает значение отрезком [0, 1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
