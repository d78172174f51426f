package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerlinRangeAndDeterminism(t *testing.T) {
	a := NewPerlin(42)
	b := NewPerlin(42)

	for i := 0; i < 200; i++ {
		x := float64(i) * 0.173
		y := float64(i) * 0.311

		va := a.Noise2D(x, y)
		vb := b.Noise2D(x, y)

		assert.GreaterOrEqual(t, va, 0.0)
		assert.LessOrEqual(t, va, 1.0)
		assert.Equal(t, va, vb, "Одинаковый сид должен давать одинаковый шум")
	}
	assert.Equal(t, int64(42), a.Seed())
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.25, Clamp01(0.25))
}
