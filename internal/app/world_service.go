// Package app связывает хранилища вокселей, параметры кадра, метрики и снимки
// в один сервис, которым пользуются REST API и утилиты.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/octree"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// ErrStorageDisabled - снимки выключены в конфигурации
var ErrStorageDisabled = errors.New("snapshot storage disabled")

// Options - необязательные зависимости сервиса
type Options struct {
	Metrics    *metrics.Collector
	Snapshots  *storage.SnapshotStorage
	Viewpoints storage.ViewpointRepo
	Bus        eventbus.EventBus
}

// WorldService владеет одной сеткой чанков и одним октодеревом.
// Запись в октодерево эксклюзивна, выгрузки и чтения идут параллельно.
type WorldService struct {
	mu     sync.RWMutex
	cfg    config.WorldConfig
	gen    world.Generator
	grid   *world.ChunkGrid
	tree   *octree.Octree
	params export.FrameParams

	fromWorld bool

	metrics    *metrics.Collector
	snapshots  *storage.SnapshotStorage
	viewpoints storage.ViewpointRepo
	bus        eventbus.EventBus
}

// WorldInfo - параметры сетки для клиента
type WorldInfo struct {
	Domain    int    `json:"domain"`
	ChunkSize int    `json:"chunk_size"`
	Extent    int    `json:"extent"`
	Chunks    int    `json:"chunks"`
	Mode      string `json:"mode"`
	Seed      int64  `json:"seed"`
	Populated bool   `json:"populated"`
}

// OctreeInfo - параметры октодерева для клиента
type OctreeInfo struct {
	Scale  int      `json:"scale"`
	Size   int      `json:"size"`
	Origin vec.Vec3 `json:"origin"`
	Nodes  int      `json:"nodes"`
}

// Stats - сводка по обоим хранилищам
type Stats struct {
	Grid   world.GridStats `json:"grid"`
	Octree octree.Stats    `json:"octree"`
}

// NewWorldService создаёт сервис по конфигурации. Мир не генерируется до Generate.
func NewWorldService(cfg *config.Config, opts Options) (*WorldService, error) {
	gen, err := world.NewGenerator(cfg.World.Mode, cfg.World.Seed, cfg.World.NoiseWidth, cfg.World.NoiseHeight)
	if err != nil {
		return nil, err
	}

	grid, err := world.NewChunkGrid(cfg.World.Domain, cfg.World.ChunkSize)
	if err != nil {
		return nil, err
	}
	if cfg.World.Workers > 0 {
		grid.SetWorkers(cfg.World.Workers)
	}

	tree, err := octree.New(cfg.Octree.Scale, vec.FromArray(cfg.Octree.Origin))
	if err != nil {
		return nil, err
	}

	params := export.DefaultFrameParams()
	params.MaxReflections = cfg.Render.MaxReflections
	params.Shadows = cfg.Render.Shadows
	params.OverwriteColor = cfg.Render.OverwriteColor
	params.OverwriteValue = mgl32.Vec4(cfg.Render.OverwriteValue)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	views := opts.Viewpoints
	if views == nil {
		views = storage.NewMemoryViewpointRepo()
	}

	return &WorldService{
		cfg:        cfg.World,
		gen:        gen,
		grid:       grid,
		tree:       tree,
		params:     params,
		fromWorld:  cfg.Octree.FromWorld,
		metrics:    opts.Metrics,
		snapshots:  opts.Snapshots,
		viewpoints: views,
		bus:        opts.Bus,
	}, nil
}

// Generate заполняет сетку (повторный вызов ничего не делает) и, если задано,
// переносит твердые воксели сетки в октодерево.
func (s *WorldService) Generate(ctx context.Context) error {
	grid := s.currentGrid()
	if grid.Populated() {
		return nil
	}

	start := time.Now()
	err := grid.Populate(ctx, s.gen)
	if !grid.Populated() {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveGeneration(s.gen.Name(), time.Since(start), grid.ChunkCount(), countJoined(err))
	}

	if s.fromWorld {
		if ferr := s.fillOctreeFromGrid(ctx); ferr != nil {
			return errors.Join(err, ferr)
		}
	}
	s.publish(eventbus.TypeWorldGenerated, priorityHigh, WorldGeneratedEvent{
		Mode:        s.gen.Name(),
		Seed:        s.cfg.Seed,
		Chunks:      grid.ChunkCount(),
		VoxelErrors: countJoined(err),
		Duration:    time.Since(start),
	})
	return err
}

func (s *WorldService) currentGrid() *world.ChunkGrid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.grid
}

func countJoined(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

// ToPayload приводит блок сетки к 31-битной нагрузке листа: красный канал сжимается вдвое
func ToPayload(b block.Block) block.Block {
	if octree.FitsPayload(b) {
		return b
	}
	r, g, bl, a := b.RGBA()
	return block.MustPack(r>>1, g, bl, a)
}

func (s *WorldService) fillOctreeFromGrid(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.tree.Subdivisions()
	extent := s.grid.Extent()
	origin := s.tree.Origin()
	// Вне куба сетки всё воздух, поэтому обходится только он.
	err := s.tree.Fill(ctx, origin, extent, func(p vec.Vec3) (block.Block, error) {
		b, err := s.grid.BlockAt(p.Sub(origin))
		if err != nil || !b.IsSolid() {
			return block.Air, err
		}
		return ToPayload(b), nil
	})
	if s.metrics != nil {
		s.metrics.ObserveOctreeWrite(err, s.tree.Len(), s.tree.Subdivisions()-before)
	}
	if err != nil {
		return fmt.Errorf("fill octree from grid: %w", err)
	}
	logging.Info("🌳 Октодерево заполнено из сетки: %d узлов", s.tree.Len())
	return nil
}

// WorldInfo возвращает параметры сетки
func (s *WorldService) WorldInfo() WorldInfo {
	grid := s.currentGrid()
	return WorldInfo{
		Domain:    grid.Domain(),
		ChunkSize: grid.ChunkSize(),
		Extent:    grid.Extent(),
		Chunks:    grid.ChunkCount(),
		Mode:      s.gen.Name(),
		Seed:      s.cfg.Seed,
		Populated: grid.Populated(),
	}
}

// ExportWorld выгружает сетку
func (s *WorldService) ExportWorld() (*export.Buffers, error) {
	buf, err := s.currentGrid().Export()
	if err != nil {
		return nil, err
	}
	s.observeExport(buf)
	return buf, nil
}

// WorldVoxel читает воксель сетки
func (s *WorldService) WorldVoxel(p vec.Vec3) (block.Block, error) {
	return s.currentGrid().BlockAt(p)
}

// OctreeInfo возвращает параметры октодерева
func (s *WorldService) OctreeInfo() OctreeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return OctreeInfo{
		Scale:  s.tree.Scale(),
		Size:   s.tree.Size(),
		Origin: s.tree.Origin(),
		Nodes:  s.tree.Len(),
	}
}

// ExportOctree выгружает арену октодерева
func (s *WorldService) ExportOctree() (*export.Buffers, error) {
	s.mu.RLock()
	buf, err := s.tree.Export()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	s.observeExport(buf)
	return buf, nil
}

// OctreeVoxel читает воксель октодерева
func (s *WorldService) OctreeVoxel(p vec.Vec3) (block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.GetBlockAt(p)
}

// SetOctreeVoxel записывает воксель в октодерево
func (s *WorldService) SetOctreeVoxel(p vec.Vec3, value block.Block) error {
	s.mu.Lock()
	before := s.tree.Subdivisions()
	err := s.tree.SetVoxel(p, value)
	nodes := s.tree.Len()
	if s.metrics != nil {
		s.metrics.ObserveOctreeWrite(err, nodes, s.tree.Subdivisions()-before)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.publish(eventbus.TypeVoxelChanged, priorityLow, VoxelChangedEvent{Pos: p, Value: uint32(value), Nodes: nodes})
	return nil
}

// FrameParams возвращает текущие параметры кадра
func (s *WorldService) FrameParams() export.FrameParams {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.params
}

// SetFrameParams заменяет параметры кадра после проверки
func (s *WorldService) SetFrameParams(p export.FrameParams) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.params = p
	s.mu.Unlock()

	s.publish(eventbus.TypeFrameChanged, priorityLow, p)
	return nil
}

// Frame собирает кадр для указанной раскладки
func (s *WorldService) Frame(layout export.Layout) (*export.Frame, error) {
	var (
		buf *export.Buffers
		err error
	)
	switch layout {
	case export.LayoutChunkGrid:
		buf, err = s.ExportWorld()
	case export.LayoutOctree:
		buf, err = s.ExportOctree()
	default:
		return nil, fmt.Errorf("frame layout %d: %w", layout, block.ErrRange)
	}
	if err != nil {
		return nil, err
	}
	return &export.Frame{Buffers: buf, Params: s.FrameParams()}, nil
}

// Stats возвращает сводку по хранилищам
func (s *WorldService) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Grid:   s.grid.Stats(),
		Octree: s.tree.Stats(),
	}
}

func (s *WorldService) observeExport(buf *export.Buffers) {
	if s.metrics != nil {
		s.metrics.AddExported(buf.Layout.String(), buf.SizeBytes())
	}
}

func (s *WorldService) observeSnapshot(op string) {
	if s.metrics != nil {
		s.metrics.ObserveSnapshot(op)
	}
}
