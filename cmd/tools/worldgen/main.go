// worldgen генерирует мир без REST-сервера, печатает статистику хранилищ
// и по желанию сохраняет снимок в badger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/annel0/voxel-engine/internal/app"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config (defaults when empty)")
		mode       = flag.String("mode", "", "Override world.mode: starfield | heightfield")
		domain     = flag.Int("domain", 0, "Override world.domain")
		chunkSize  = flag.Int("chunk", 0, "Override world.chunk_size")
		seed       = flag.Int64("seed", 0, "Override world.seed")
		octreeFill = flag.Bool("octree", false, "Fill the octree from the generated grid")
		scale      = flag.Int("scale", 0, "Override octree.scale")
		snapshot   = flag.String("snapshot", "", "Save snapshot(s) to this badger directory")
		verbose    = flag.Bool("v", false, "Log at DEBUG level to stderr")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}
	if *mode != "" {
		cfg.World.Mode = *mode
	}
	if *domain > 0 {
		cfg.World.Domain = *domain
	}
	if *chunkSize > 0 {
		cfg.World.ChunkSize = *chunkSize
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if *scale > 0 {
		cfg.Octree.Scale = *scale
	}
	cfg.Octree.FromWorld = *octreeFill
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Config: %v", err)
	}

	level := logging.WARN
	if *verbose {
		level = logging.DEBUG
	}
	logging.SetDefaultLogger(logging.NewConsoleLogger("worldgen", os.Stderr, level))

	if err := run(cfg, *snapshot); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(cfg *config.Config, snapshotDir string) error {
	opts := app.Options{Metrics: metrics.New(prometheus.NewRegistry())}
	if snapshotDir != "" {
		snaps, err := storage.NewSnapshotStorage(snapshotDir, false)
		if err != nil {
			return err
		}
		opts.Snapshots = snaps
	}

	svc, err := app.NewWorldService(cfg, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	start := time.Now()
	genErr := svc.Generate(context.Background())
	elapsed := time.Since(start)
	if !svc.WorldInfo().Populated {
		return genErr
	}

	info := svc.WorldInfo()
	fmt.Printf("🌍 %s seed=%d: %d³ chunks × %d³ voxels (%d³) in %v\n",
		info.Mode, info.Seed, info.Domain, info.ChunkSize, info.Extent, elapsed)
	if genErr != nil {
		fmt.Printf("⚠️  voxel errors: %v\n", genErr)
	}

	stats := svc.Stats()
	fmt.Printf("  grid:   %d solid of %d voxels (%.1f%%)\n",
		stats.Grid.Solid, stats.Grid.Voxels, percent(stats.Grid.Solid, stats.Grid.Voxels))
	fmt.Printf("  octree: %d nodes, %d leaves (%d solid), depth %d, %d bytes\n",
		stats.Octree.Nodes, stats.Octree.Leaves, stats.Octree.SolidLeaves, stats.Octree.MaxDepth, stats.Octree.Bytes)

	buf, err := svc.ExportWorld()
	if err != nil {
		return err
	}
	raw := export.EncodeWords(export.BlockWords(buf.Blocks))
	compressed, err := zstdSize(raw)
	if err != nil {
		return err
	}
	fmt.Printf("  blocks: %d bytes raw, %d bytes zstd (%.1f%%)\n", len(raw), compressed, percent(compressed, len(raw)))

	printMemory()

	if snapshotDir == "" {
		return nil
	}
	layouts := []export.Layout{export.LayoutChunkGrid}
	if cfg.Octree.FromWorld {
		layouts = append(layouts, export.LayoutOctree)
	}
	name := fmt.Sprintf("worldgen-%s-%d", info.Mode, info.Seed)
	for _, layout := range layouts {
		meta, err := svc.SaveSnapshot(name, layout)
		if err != nil {
			return err
		}
		fmt.Printf("💾 snapshot %s (%s): %d → %d bytes\n", meta.ID, meta.Layout, meta.RawBytes, meta.StoredBytes)
	}
	return nil
}

func zstdSize(data []byte) (int, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return 0, err
	}
	defer enc.Close()
	return len(enc.EncodeAll(data, nil)), nil
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

// printMemory печатает RSS процесса и доступную память системы
func printMemory() {
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			fmt.Printf("  memory: rss %.1f MB", float64(mi.RSS)/1024/1024)
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf(", system %.1f / %.1f GB used", float64(vm.Used)/(1<<30), float64(vm.Total)/(1<<30))
	}
	fmt.Println()
}
