package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/octree"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func setupTestStorage(t *testing.T) *SnapshotStorage {
	t.Helper()

	storage, err := NewSnapshotStorage(t.TempDir(), false)
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func gridBuffers(t *testing.T) *export.Buffers {
	t.Helper()

	grid, err := world.NewChunkGrid(2, 4)
	require.NoError(t, err)
	require.NoError(t, grid.Populate(context.Background(), &world.Starfield{Seed: 7}))
	buf, err := grid.Export()
	require.NoError(t, err)
	return buf
}

func octreeBuffers(t *testing.T) *export.Buffers {
	t.Helper()

	tree, err := octree.New(4, vec.Vec3{X: -8})
	require.NoError(t, err)
	require.NoError(t, tree.SetVoxel(vec.Vec3{X: -8, Y: 3, Z: 3}, block.Stone))
	require.NoError(t, tree.SetVoxel(vec.Vec3{X: 7, Y: 15, Z: 0}, block.Water))
	buf, err := tree.Export()
	require.NoError(t, err)
	return buf
}

func TestSaveAndLoadGridSnapshot(t *testing.T) {
	storage := setupTestStorage(t)
	buf := gridBuffers(t)

	meta, err := storage.SaveSnapshot("starfield", buf)
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, "chunk_grid", meta.Layout)
	assert.Equal(t, len(buf.Blocks), meta.Words["blocks"])
	assert.Equal(t, 8, meta.Words["chunks"])
	assert.Equal(t, buf.SizeBytes(), meta.RawBytes)
	assert.Greater(t, meta.StoredBytes, 0)

	loadedMeta, loaded, err := storage.LoadSnapshot(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, loadedMeta.ID)
	assert.Equal(t, buf, loaded)
}

func TestSaveAndLoadOctreeSnapshot(t *testing.T) {
	storage := setupTestStorage(t)
	buf := octreeBuffers(t)

	meta, err := storage.SaveSnapshot("edits", buf)
	require.NoError(t, err)

	_, loaded, err := storage.LoadSnapshot(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, buf.Nodes, loaded.Nodes)
	assert.Equal(t, vec.Vec3{X: -8}, loaded.Origin)

	tree, err := octree.FromNodes(loaded.Scale, loaded.Origin, loaded.Nodes)
	require.NoError(t, err)
	got, err := tree.GetBlockAt(vec.Vec3{X: 7, Y: 15, Z: 0})
	require.NoError(t, err)
	assert.Equal(t, block.Water, got)
}

func TestSnapshotSplitIntoParts(t *testing.T) {
	old := partWords
	partWords = 7
	defer func() { partWords = old }()

	storage := setupTestStorage(t)
	buf := gridBuffers(t)

	meta, err := storage.SaveSnapshot("parts", buf)
	require.NoError(t, err)
	assert.Equal(t, (len(buf.Blocks)+6)/7, meta.Parts["blocks"])
	assert.Equal(t, 2, meta.Parts["chunks"])

	_, loaded, err := storage.LoadSnapshot(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, buf.Blocks, loaded.Blocks)
	assert.Equal(t, buf.ChunkOffsets, loaded.ChunkOffsets)

	require.NoError(t, storage.DeleteSnapshot(meta.ID))
	_, _, err = storage.LoadSnapshot(meta.ID)
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))
}

func TestListAndDeleteSnapshots(t *testing.T) {
	storage := setupTestStorage(t)

	first, err := storage.SaveSnapshot("first", gridBuffers(t))
	require.NoError(t, err)
	second, err := storage.SaveSnapshot("second", octreeBuffers(t))
	require.NoError(t, err)

	list, err := storage.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := map[string]string{list[0].ID: list[0].Name, list[1].ID: list[1].Name}
	assert.Equal(t, "first", ids[first.ID])
	assert.Equal(t, "second", ids[second.ID])

	require.NoError(t, storage.DeleteSnapshot(first.ID))
	err = storage.DeleteSnapshot(first.ID)
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))

	_, err = storage.GetMeta(first.ID)
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))

	list, err = storage.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestSaveRejectsMalformedBuffers(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.SaveSnapshot("broken", &export.Buffers{Layout: export.LayoutChunkGrid, Domain: 1, ChunkSize: 2})
	assert.True(t, errors.Is(err, export.ErrMalformed))

	list, err := storage.ListSnapshots()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClosedStorage(t *testing.T) {
	storage, err := NewSnapshotStorage("", true)
	require.NoError(t, err)

	meta, err := storage.SaveSnapshot("memory", octreeBuffers(t))
	require.NoError(t, err)

	require.NoError(t, storage.Close())
	require.NoError(t, storage.Close())

	_, _, err = storage.LoadSnapshot(meta.ID)
	assert.True(t, errors.Is(err, ErrStorageClosed))
	_, err = storage.SaveSnapshot("late", octreeBuffers(t))
	assert.True(t, errors.Is(err, ErrStorageClosed))
	_, err = storage.ListSnapshots()
	assert.True(t, errors.Is(err, ErrStorageClosed))
	assert.True(t, errors.Is(storage.DeleteSnapshot(meta.ID), ErrStorageClosed))
}
