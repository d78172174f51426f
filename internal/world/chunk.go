package world

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// maxReportedVoxelErrors ограничивает число ошибок, попадающих в отчет Fill
const maxReportedVoxelErrors = 16

// DenseChunk - кубический массив size³ блоков, хранящийся одним непрерывным срезом.
// Индексация построчная, быстрее всего меняется Z: index = z + size*(y + size*x).
type DenseChunk struct {
	size   int
	blocks []block.Block
}

// VoxelFunc вычисляет блок по локальным координатам внутри чанка
type VoxelFunc func(x, y, z int) (block.Block, error)

// NewDenseChunk создаёт пустой (заполненный воздухом) чанк
func NewDenseChunk(size int) (*DenseChunk, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size %d: %w", size, ErrRange)
	}
	return &DenseChunk{
		size:   size,
		blocks: make([]block.Block, size*size*size),
	}, nil
}

// Size возвращает сторону чанка
func (c *DenseChunk) Size() int {
	return c.size
}

// Len возвращает число блоков в чанке (size³)
func (c *DenseChunk) Len() int {
	return len(c.blocks)
}

// Index переводит локальные координаты в индекс массива блоков.
// Координаты не проверяются, см. Contains.
func (c *DenseChunk) Index(x, y, z int) int {
	return z + c.size*(y+c.size*x)
}

// Contains проверяет, лежат ли локальные координаты внутри чанка
func (c *DenseChunk) Contains(x, y, z int) bool {
	return vec.Vec3{X: x, Y: y, Z: z}.InCube(vec.Vec3{}, c.size)
}

// At возвращает блок по локальным координатам
func (c *DenseChunk) At(x, y, z int) (block.Block, error) {
	if !c.Contains(x, y, z) {
		return block.Air, fmt.Errorf("chunk local (%d,%d,%d) size %d: %w", x, y, z, c.size, ErrOutOfBounds)
	}
	return c.blocks[c.Index(x, y, z)], nil
}

// Fill полностью перегенерирует чанк. Воксель, для которого fn вернула ошибку,
// остается воздухом; проход не прерывается, все ошибки возвращаются вместе.
func (c *DenseChunk) Fill(fn VoxelFunc) error {
	var errs []error
	failed := 0

	for x := 0; x < c.size; x++ {
		for y := 0; y < c.size; y++ {
			for z := 0; z < c.size; z++ {
				i := c.Index(x, y, z)
				blk, err := fn(x, y, z)
				if err != nil {
					failed++
					if len(errs) < maxReportedVoxelErrors {
						errs = append(errs, fmt.Errorf("voxel (%d,%d,%d): %w", x, y, z, err))
					}
					c.blocks[i] = block.Air
					continue
				}
				c.blocks[i] = blk
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("fill: %d voxel(s) rejected: %w", failed, errors.Join(errs...))
	}
	return nil
}

// Blocks возвращает копию блоков чанка в его собственном порядке
func (c *DenseChunk) Blocks() []block.Block {
	out := make([]block.Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// CopyInto копирует блоки чанка в общий буфер начиная с индекса start
func (c *DenseChunk) CopyInto(dst []block.Block, start int) error {
	if start < 0 || start+len(c.blocks) > len(dst) {
		return fmt.Errorf("copy %d blocks at %d into buffer of %d: %w", len(c.blocks), start, len(dst), ErrRange)
	}
	copy(dst[start:], c.blocks)
	return nil
}

// SolidCount возвращает число твердых блоков
func (c *DenseChunk) SolidCount() int {
	n := 0
	for _, blk := range c.blocks {
		if blk.IsSolid() {
			n++
		}
	}
	return n
}
