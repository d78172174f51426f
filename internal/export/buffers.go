// Package export описывает контракт выгрузки мира для рендерера: плоские буферы
// целых чисел и скалярные параметры, по которым их нужно интерпретировать.
// Рендерер (GPU ray-marcher) ничего не знает о внутреннем устройстве хранилища.
package export

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Формат узла октодерева на проводе: бит 31 - флаг деления,
// биты 30..0 - индекс первого потомка (ветвь) или полезная нагрузка (лист).
const (
	NodeDividedFlag uint32 = 1 << 31
	NodePayloadMask uint32 = NodeDividedFlag - 1
)

// ErrMalformed возвращается, если буферы не согласованы со своими параметрами
var ErrMalformed = errors.New("malformed export buffers")

// Layout определяет, как рендерер должен читать буферы
type Layout uint8

const (
	LayoutChunkGrid Layout = iota + 1 // Плотная сетка чанков
	LayoutOctree                      // Разреженное октодерево
)

// String возвращает строковое представление раскладки
func (l Layout) String() string {
	switch l {
	case LayoutChunkGrid:
		return "chunk_grid"
	case LayoutOctree:
		return "octree"
	default:
		return "unknown"
	}
}

// ParseLayout разбирает строковое представление раскладки
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "chunk_grid":
		return LayoutChunkGrid, nil
	case "octree":
		return LayoutOctree, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}

// Buffers - снимок состояния хранилища для рендерера.
// Буферы являются копиями: рендерер не владеет источником и не может его изменить.
type Buffers struct {
	Layout Layout

	// LayoutChunkGrid
	Blocks       []block.Block // Блоки всех чанков подряд, длина domain³·size³
	ChunkOffsets []uint32      // Начальный индекс блоков каждого чанка, длина domain³
	Domain       int           // Число чанков по одной оси
	ChunkSize    int           // Размер чанка в вокселях

	// LayoutOctree
	Nodes  []uint32 // Арена узлов как есть, корень - индекс 0
	Scale  int      // Сторона корня = 2^Scale
	Origin vec.Vec3 // Начало координат корня
}

// Exporter реализуется каждой стратегией хранения
type Exporter interface {
	Export() (*Buffers, error)
}

// Extent возвращает сторону куба мира в вокселях
func (b *Buffers) Extent() int {
	switch b.Layout {
	case LayoutChunkGrid:
		return b.Domain * b.ChunkSize
	case LayoutOctree:
		return 1 << b.Scale
	default:
		return 0
	}
}

// SizeBytes возвращает суммарный размер буферов в байтах (по 4 байта на слово)
func (b *Buffers) SizeBytes() int {
	return 4 * (len(b.Blocks) + len(b.ChunkOffsets) + len(b.Nodes))
}

// Validate проверяет согласованность длин буферов и параметров
func (b *Buffers) Validate() error {
	switch b.Layout {
	case LayoutChunkGrid:
		if b.Domain < 1 || b.ChunkSize < 1 {
			return fmt.Errorf("%w: domain=%d chunk_size=%d", ErrMalformed, b.Domain, b.ChunkSize)
		}
		chunks := b.Domain * b.Domain * b.Domain
		perChunk := b.ChunkSize * b.ChunkSize * b.ChunkSize
		if len(b.ChunkOffsets) != chunks {
			return fmt.Errorf("%w: %d chunk offsets, expected %d", ErrMalformed, len(b.ChunkOffsets), chunks)
		}
		if len(b.Blocks) != chunks*perChunk {
			return fmt.Errorf("%w: %d blocks, expected %d", ErrMalformed, len(b.Blocks), chunks*perChunk)
		}
		for i, off := range b.ChunkOffsets {
			if int(off)+perChunk > len(b.Blocks) {
				return fmt.Errorf("%w: chunk %d offset %d exceeds block buffer", ErrMalformed, i, off)
			}
		}
	case LayoutOctree:
		if b.Scale < 0 || b.Scale > 30 {
			return fmt.Errorf("%w: scale=%d", ErrMalformed, b.Scale)
		}
		if len(b.Nodes) == 0 {
			return fmt.Errorf("%w: empty node arena", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown layout %d", ErrMalformed, b.Layout)
	}
	return nil
}

// BlockWords возвращает блоки как слова uint32
func BlockWords(blocks []block.Block) []uint32 {
	words := make([]uint32, len(blocks))
	for i, blk := range blocks {
		words[i] = uint32(blk)
	}
	return words
}

// WordsToBlocks преобразует слова uint32 обратно в блоки
func WordsToBlocks(words []uint32) []block.Block {
	blocks := make([]block.Block, len(words))
	for i, w := range words {
		blocks[i] = block.Block(w)
	}
	return blocks
}
