package world

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/world/block"
)

var (
	ErrRange        = block.ErrRange
	ErrInvalidState = block.ErrInvalidState
	ErrOutOfBounds  = block.ErrOutOfBounds

	// ErrNotPopulated - чтение или выгрузка сетки до генерации
	ErrNotPopulated = fmt.Errorf("chunk grid not populated: %w", block.ErrInvalidState)
)
