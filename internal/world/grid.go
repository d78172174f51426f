package world

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// ChunkGrid - куб из domain³ чанков одинакового размера, упорядоченных так же,
// как блоки внутри чанка (быстрее всего меняется Z). Сторона мира - domain*size.
type ChunkGrid struct {
	domain int
	size   int

	mu        sync.Mutex
	chunks    []*DenseChunk
	populated bool
	workers   int
}

// GridStats - сводка по заполненной сетке
type GridStats struct {
	Chunks int `json:"chunks"`
	Voxels int `json:"voxels"`
	Solid  int `json:"solid"`
	Bytes  int `json:"bytes"`
}

// NewChunkGrid создает пустую (еще не сгенерированную) сетку
func NewChunkGrid(domain, size int) (*ChunkGrid, error) {
	if domain < 1 {
		return nil, fmt.Errorf("chunk domain %d: %w", domain, ErrRange)
	}
	if size < 1 {
		return nil, fmt.Errorf("chunk size %d: %w", size, ErrRange)
	}
	return &ChunkGrid{
		domain:  domain,
		size:    size,
		workers: runtime.GOMAXPROCS(0),
	}, nil
}

// SetWorkers задает число чанков, генерируемых одновременно
func (g *ChunkGrid) SetWorkers(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n < 1 {
		n = 1
	}
	g.workers = n
}

// Domain возвращает число чанков по одной оси
func (g *ChunkGrid) Domain() int {
	return g.domain
}

// ChunkSize возвращает сторону чанка в вокселях
func (g *ChunkGrid) ChunkSize() int {
	return g.size
}

// ChunkCount возвращает общее число чанков (domain³)
func (g *ChunkGrid) ChunkCount() int {
	return g.domain * g.domain * g.domain
}

// Extent возвращает сторону мира в вокселях
func (g *ChunkGrid) Extent() int {
	return g.domain * g.size
}

// Populated сообщает, был ли мир уже сгенерирован
func (g *ChunkGrid) Populated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.populated
}

// ChunkIndex переводит координаты чанка в его порядковый номер
func (g *ChunkGrid) ChunkIndex(cx, cy, cz int) int {
	return cz + g.domain*(cy+g.domain*cx)
}

// ChunkCoords возвращает координаты чанка (в чанках) по его номеру
func (g *ChunkGrid) ChunkCoords(index int) vec.Vec3 {
	return vec.Vec3{
		X: index / (g.domain * g.domain),
		Y: index / g.domain % g.domain,
		Z: index % g.domain,
	}
}

// Populate генерирует все чанки сетки. Повторный вызов на уже заполненной сетке
// ничего не делает, поэтому его можно дергать каждый кадр.
//
// Ошибки отдельных вокселей не прерывают проход: такие воксели остаются воздухом,
// сетка помечается заполненной, а ошибки возвращаются вызывающему. Отмена ctx
// прерывает проход и оставляет сетку незаполненной.
func (g *ChunkGrid) Populate(ctx context.Context, gen Generator) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.populated {
		logging.Debug("Сетка %d³x%d³ уже сгенерирована, пропускаем %s", g.domain, g.size, gen.Name())
		return nil
	}

	if v, ok := gen.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("generator %s: %w", gen.Name(), err)
		}
	}

	count := g.ChunkCount()
	chunks := make([]*DenseChunk, count)
	voxelErrs := make([]error, count)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.workers)

	for i := 0; i < count; i++ {
		i := i
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunk, err := NewDenseChunk(g.size)
			if err != nil {
				return err
			}
			// Каждый чанк принадлежит ровно одной горутине
			if err := gen.Generate(chunk, g.ChunkCoords(i), g.domain); err != nil {
				voxelErrs[i] = fmt.Errorf("chunk %d: %w", i, err)
			}
			chunks[i] = chunk
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("populate %s: %w", gen.Name(), err)
	}

	g.chunks = chunks
	g.populated = true
	logging.Info("🌍 Сгенерирован мир %s: %d чанков по %d³ вокселей", gen.Name(), count, g.size)

	if err := errors.Join(voxelErrs...); err != nil {
		logging.Warn("Генерация %s завершилась с ошибками вокселей: %v", gen.Name(), err)
		return err
	}
	return nil
}

// ExportBlocks возвращает все блоки одним буфером: чанки подряд в своем порядке,
// блоки внутри чанка - как есть. Длина domain³·size³.
func (g *ChunkGrid) ExportBlocks() ([]block.Block, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.exportBlocksLocked()
}

func (g *ChunkGrid) exportBlocksLocked() ([]block.Block, error) {
	if !g.populated {
		return nil, ErrNotPopulated
	}

	perChunk := g.size * g.size * g.size
	out := make([]block.Block, len(g.chunks)*perChunk)
	for i, chunk := range g.chunks {
		if err := chunk.CopyInto(out, i*perChunk); err != nil {
			return nil, fmt.Errorf("export chunk %d: %w", i, err)
		}
	}
	return out, nil
}

// ExportChunkOffsets возвращает начальный индекс блоков каждого чанка: offset[i] = i·size³
func (g *ChunkGrid) ExportChunkOffsets() ([]uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.exportChunkOffsetsLocked()
}

func (g *ChunkGrid) exportChunkOffsetsLocked() ([]uint32, error) {
	if !g.populated {
		return nil, ErrNotPopulated
	}

	perChunk := g.size * g.size * g.size
	offsets := make([]uint32, g.ChunkCount())
	for i := range offsets {
		offsets[i] = uint32(i * perChunk)
	}
	return offsets, nil
}

// Export реализует export.Exporter
func (g *ChunkGrid) Export() (*export.Buffers, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	blocks, err := g.exportBlocksLocked()
	if err != nil {
		return nil, err
	}
	offsets, err := g.exportChunkOffsetsLocked()
	if err != nil {
		return nil, err
	}

	return &export.Buffers{
		Layout:       export.LayoutChunkGrid,
		Blocks:       blocks,
		ChunkOffsets: offsets,
		Domain:       g.domain,
		ChunkSize:    g.size,
	}, nil
}

// BlockAt возвращает блок по глобальным координатам вокселя
func (g *ChunkGrid) BlockAt(p vec.Vec3) (block.Block, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.populated {
		return block.Air, ErrNotPopulated
	}
	if !p.InCube(vec.Vec3{}, g.Extent()) {
		return block.Air, fmt.Errorf("grid voxel %v: %w", p, ErrOutOfBounds)
	}

	chunk := g.chunks[g.ChunkIndex(p.X/g.size, p.Y/g.size, p.Z/g.size)]
	return chunk.At(p.X%g.size, p.Y%g.size, p.Z%g.size)
}

// Stats возвращает сводку по сетке
func (g *ChunkGrid) Stats() GridStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := GridStats{Chunks: g.ChunkCount()}
	if !g.populated {
		return stats
	}
	for _, chunk := range g.chunks {
		stats.Voxels += chunk.Len()
		stats.Solid += chunk.SolidCount()
	}
	stats.Bytes = 4 * (stats.Voxels + stats.Chunks)
	return stats
}

// GridFromBuffers восстанавливает заполненную сетку из выгруженных буферов
func GridFromBuffers(buf *export.Buffers) (*ChunkGrid, error) {
	if buf.Layout != export.LayoutChunkGrid {
		return nil, fmt.Errorf("restore grid from %s: %w", buf.Layout, export.ErrMalformed)
	}
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("restore grid: %w", err)
	}

	g, err := NewChunkGrid(buf.Domain, buf.ChunkSize)
	if err != nil {
		return nil, err
	}

	g.chunks = make([]*DenseChunk, g.ChunkCount())
	for i := range g.chunks {
		chunk, err := NewDenseChunk(g.size)
		if err != nil {
			return nil, err
		}
		start := int(buf.ChunkOffsets[i])
		err = chunk.Fill(func(x, y, z int) (block.Block, error) {
			return buf.Blocks[start+chunk.Index(x, y, z)], nil
		})
		if err != nil {
			return nil, fmt.Errorf("restore chunk %d: %w", i, err)
		}
		g.chunks[i] = chunk
	}
	g.populated = true
	return g, nil
}
