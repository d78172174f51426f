package octree

import (
	"errors"

	"github.com/annel0/voxel-engine/internal/world/block"
)

var (
	ErrRange        = block.ErrRange
	ErrInvalidState = block.ErrInvalidState
	ErrOutOfBounds  = block.ErrOutOfBounds

	// ErrArenaFull - в арене не осталось адресуемых индексов для восьми потомков
	ErrArenaFull = errors.New("octree arena full")
	// ErrCorruptArena - загруженная арена нарушает структуру дерева
	ErrCorruptArena = errors.New("corrupt octree arena")
)
