package app

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/storage"
)

// SaveViewpoint сохраняет позу камеры под именем. nil - текущая камера кадра.
func (s *WorldService) SaveViewpoint(ctx context.Context, name string, pose *export.CameraPose) (storage.Viewpoint, error) {
	vp := storage.Viewpoint{
		Name:      name,
		UpdatedAt: time.Now().UTC(),
	}
	if pose != nil {
		vp.Camera = *pose
	} else {
		vp.Camera = s.FrameParams().Camera
	}

	if err := s.viewpoints.Save(ctx, vp); err != nil {
		return storage.Viewpoint{}, err
	}
	return vp, nil
}

// ApplyViewpoint подставляет сохранённую позу в параметры кадра
func (s *WorldService) ApplyViewpoint(ctx context.Context, name string) (export.FrameParams, error) {
	vp, found, err := s.viewpoints.Load(ctx, name)
	if err != nil {
		return export.FrameParams{}, err
	}
	if !found {
		return export.FrameParams{}, fmt.Errorf("%q: %w", name, storage.ErrViewpointNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.params.Camera = vp.Camera
	return s.params, nil
}

// ListViewpoints возвращает все точки обзора
func (s *WorldService) ListViewpoints(ctx context.Context) ([]storage.Viewpoint, error) {
	return s.viewpoints.List(ctx)
}

// DeleteViewpoint удаляет точку обзора
func (s *WorldService) DeleteViewpoint(ctx context.Context, name string) error {
	return s.viewpoints.Delete(ctx, name)
}
