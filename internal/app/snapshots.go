package app

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/octree"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/world"
)

// SaveSnapshot сохраняет текущее состояние сетки или октодерева
func (s *WorldService) SaveSnapshot(name string, layout export.Layout) (*storage.SnapshotMeta, error) {
	if s.snapshots == nil {
		return nil, ErrStorageDisabled
	}

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
		return nil, fmt.Errorf("snapshot layout %d: %w", layout, export.ErrMalformed)
	}
	if err != nil {
		return nil, err
	}

	meta, err := s.snapshots.SaveSnapshot(name, buf)
	if err != nil {
		return nil, err
	}
	s.observeSnapshot("save")
	s.publish(eventbus.TypeSnapshotSaved, priorityHigh, SnapshotEvent{ID: meta.ID, Layout: meta.Layout})
	logging.Info("💾 Сохранён снимок %s (%s), сжатие %d → %d байт", meta.ID, meta.Layout, meta.RawBytes, meta.StoredBytes)
	return meta, nil
}

// ListSnapshots возвращает метаданные снимков
func (s *WorldService) ListSnapshots() ([]storage.SnapshotMeta, error) {
	if s.snapshots == nil {
		return nil, ErrStorageDisabled
	}
	return s.snapshots.ListSnapshots()
}

// GetSnapshot возвращает метаданные одного снимка
func (s *WorldService) GetSnapshot(id string) (*storage.SnapshotMeta, error) {
	if s.snapshots == nil {
		return nil, ErrStorageDisabled
	}
	return s.snapshots.GetMeta(id)
}

// DeleteSnapshot удаляет снимок
func (s *WorldService) DeleteSnapshot(id string) error {
	if s.snapshots == nil {
		return ErrStorageDisabled
	}
	if err := s.snapshots.DeleteSnapshot(id); err != nil {
		return err
	}
	s.observeSnapshot("delete")
	s.publish(eventbus.TypeSnapshotDeleted, priorityHigh, SnapshotEvent{ID: id})
	return nil
}

// RestoreSnapshot заменяет сетку или октодерево содержимым снимка
func (s *WorldService) RestoreSnapshot(id string) (*storage.SnapshotMeta, error) {
	if s.snapshots == nil {
		return nil, ErrStorageDisabled
	}

	meta, buf, err := s.snapshots.LoadSnapshot(id)
	if err != nil {
		return nil, err
	}

	switch buf.Layout {
	case export.LayoutChunkGrid:
		grid, err := world.GridFromBuffers(buf)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.grid = grid
		s.mu.Unlock()
	case export.LayoutOctree:
		tree, err := octree.FromNodes(buf.Scale, buf.Origin, buf.Nodes)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.tree = tree
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.SetOctreeNodes(tree.Len())
		}
	}

	s.observeSnapshot("load")
	s.publish(eventbus.TypeSnapshotRestored, priorityHigh, SnapshotEvent{ID: meta.ID, Layout: meta.Layout})
	logging.Info("📂 Восстановлен снимок %s (%s)", meta.ID, meta.Layout)
	return meta, nil
}

// Close закрывает хранилища
func (s *WorldService) Close() error {
	var errs []error
	if s.snapshots != nil {
		if err := s.snapshots.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.viewpoints.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
