package export

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-engine/internal/world/block"
)

// MaxReflectionsLimit - верхняя граница числа отражений луча
const MaxReflectionsLimit = 50

// CameraPose - положение и базис камеры. Принадлежит внешнему модулю камеры,
// здесь только передается рендереру.
type CameraPose struct {
	Position mgl32.Vec3 `json:"position"`
	Forward  mgl32.Vec3 `json:"forward"`
	Right    mgl32.Vec3 `json:"right"`
	Up       mgl32.Vec3 `json:"up"`
}

// DefaultCameraPose смотрит вдоль +Z из начала координат
func DefaultCameraPose() CameraPose {
	return CameraPose{
		Position: mgl32.Vec3{0, 0, 0},
		Forward:  mgl32.Vec3{0, 0, 1},
		Right:    mgl32.Vec3{1, 0, 0},
		Up:       mgl32.Vec3{0, 1, 0},
	}
}

// LookAt строит базис камеры, смотрящей из eye в target
func LookAt(eye, target mgl32.Vec3) CameraPose {
	forward := target.Sub(eye)
	if forward.Len() == 0 {
		forward = mgl32.Vec3{0, 0, 1}
	}
	forward = forward.Normalize()

	worldUp := mgl32.Vec3{0, 1, 0}
	right := worldUp.Cross(forward)
	if right.Len() < 1e-6 {
		// Смотрим строго вверх или вниз
		right = mgl32.Vec3{1, 0, 0}
	}
	right = right.Normalize()
	up := forward.Cross(right).Normalize()

	return CameraPose{Position: eye, Forward: forward, Right: right, Up: up}
}

// FrameParams - скалярные параметры одного запуска рендерера
type FrameParams struct {
	MaxReflections int        `json:"max_reflections"`
	Shadows        bool       `json:"shadows"`
	OverwriteColor bool       `json:"overwrite_color"`
	OverwriteValue mgl32.Vec4 `json:"overwrite_value"` // RGBA в [0, 1]
	Camera         CameraPose `json:"camera"`
}

// DefaultFrameParams возвращает параметры по умолчанию: одно отражение, без теней
func DefaultFrameParams() FrameParams {
	return FrameParams{
		MaxReflections: 1,
		OverwriteValue: mgl32.Vec4{1, 1, 1, 1},
		Camera:         DefaultCameraPose(),
	}
}

// Validate проверяет диапазоны параметров
func (p FrameParams) Validate() error {
	if p.MaxReflections < 0 || p.MaxReflections > MaxReflectionsLimit {
		return fmt.Errorf("max reflections %d not in [0, %d]: %w", p.MaxReflections, MaxReflectionsLimit, block.ErrRange)
	}
	for i, c := range p.OverwriteValue {
		if c < 0 || c > 1 {
			return fmt.Errorf("overwrite channel %d = %f not in [0, 1]: %w", i, c, block.ErrRange)
		}
	}
	return nil
}

// OverwriteBlock возвращает цвет перезаписи, упакованный как Block
func (p FrameParams) OverwriteBlock() block.Block {
	ch := func(v float32) int { return int(v*block.MaxChannel + 0.5) }
	blk, err := block.Pack(ch(p.OverwriteValue[0]), ch(p.OverwriteValue[1]), ch(p.OverwriteValue[2]), ch(p.OverwriteValue[3]))
	if err != nil {
		return block.Air
	}
	return blk
}

// Frame - все, что получает рендерер за один кадр
type Frame struct {
	Buffers *Buffers
	Params  FrameParams
}

// NewFrame собирает кадр из источника и параметров
func NewFrame(src Exporter, params FrameParams) (*Frame, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	buf, err := src.Export()
	if err != nil {
		return nil, err
	}
	return &Frame{Buffers: buf, Params: params}, nil
}
