package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-engine/internal/export"
)

// TestMemoryViewpointRepo тестирует in-memory репозиторий точек обзора
func TestMemoryViewpointRepo(t *testing.T) {
	repo := NewMemoryViewpointRepo()
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		pose := export.LookAt(mgl32.Vec3{10, 20, 30}, mgl32.Vec3{0, 0, 0})
		if err := repo.Save(ctx, Viewpoint{Name: "overview", Camera: pose}); err != nil {
			t.Fatalf("Ошибка сохранения точки обзора: %v", err)
		}

		vp, found, err := repo.Load(ctx, "overview")
		if err != nil {
			t.Fatalf("Ошибка загрузки точки обзора: %v", err)
		}
		if !found {
			t.Fatal("Точка обзора не найдена")
		}
		if vp.Camera != pose {
			t.Errorf("Неверная поза: ожидалась %+v, получена %+v", pose, vp.Camera)
		}
		if vp.UpdatedAt.IsZero() {
			t.Error("Время обновления не заполнено")
		}
	})

	t.Run("Load missing", func(t *testing.T) {
		_, found, err := repo.Load(ctx, "nowhere")
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}
		if found {
			t.Error("Несуществующая точка обзора найдена")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		pose := export.DefaultCameraPose()
		if err := repo.Save(ctx, Viewpoint{Name: "overview", Camera: pose}); err != nil {
			t.Fatalf("Ошибка перезаписи: %v", err)
		}
		vp, _, _ := repo.Load(ctx, "overview")
		if vp.Camera != pose {
			t.Errorf("Перезапись не применилась: %+v", vp.Camera)
		}
		if repo.Size() != 1 {
			t.Errorf("Ожидалась 1 запись, получено %d", repo.Size())
		}
	})

	t.Run("List sorted", func(t *testing.T) {
		for _, name := range []string{"zenith", "alpha"} {
			if err := repo.Save(ctx, Viewpoint{Name: name, Camera: export.DefaultCameraPose()}); err != nil {
				t.Fatalf("Ошибка сохранения %s: %v", name, err)
			}
		}
		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("Ошибка списка: %v", err)
		}
		var names []string
		for _, vp := range list {
			names = append(names, vp.Name)
		}
		if strings.Join(names, ",") != "alpha,overview,zenith" {
			t.Errorf("Неверный порядок: %v", names)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "alpha"); err != nil {
			t.Fatalf("Ошибка удаления: %v", err)
		}
		err := repo.Delete(ctx, "alpha")
		if !errors.Is(err, ErrViewpointNotFound) {
			t.Errorf("Ожидалась ErrViewpointNotFound, получено %v", err)
		}
	})

	t.Run("Invalid name", func(t *testing.T) {
		err := repo.Save(ctx, Viewpoint{Name: ""})
		if !errors.Is(err, ErrInvalidViewpoint) {
			t.Errorf("Ожидалась ErrInvalidViewpoint, получено %v", err)
		}
		_, _, err = repo.Load(ctx, strings.Repeat("x", MaxViewpointName+1))
		if !errors.Is(err, ErrInvalidViewpoint) {
			t.Errorf("Ожидалась ErrInvalidViewpoint для длинного имени, получено %v", err)
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := repo.Save(cancelled, Viewpoint{Name: "late"}); !errors.Is(err, context.Canceled) {
			t.Errorf("Ожидалась context.Canceled, получено %v", err)
		}
	})
}

func TestOpenViewpointRepoFallback(t *testing.T) {
	repo, err := OpenViewpointRepo(context.Background(), ViewpointOptions{Backend: "memory"})
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}
	if _, ok := repo.(*MemoryViewpointRepo); !ok {
		t.Errorf("Ожидался MemoryViewpointRepo, получен %T", repo)
	}

	repo, err = OpenViewpointRepo(context.Background(), ViewpointOptions{Backend: "etcd"})
	if err == nil {
		t.Error("Ожидалась ошибка для неизвестного бэкенда")
	}
	if _, ok := repo.(*MemoryViewpointRepo); !ok {
		t.Errorf("Fallback должен быть в памяти, получен %T", repo)
	}
}
