package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/export"
)

var (
	// ErrViewpointNotFound - точки обзора с таким именем нет
	ErrViewpointNotFound = errors.New("viewpoint not found")
	// ErrInvalidViewpoint - пустое или слишком длинное имя
	ErrInvalidViewpoint = errors.New("invalid viewpoint")
)

// MaxViewpointName - максимальная длина имени точки обзора
const MaxViewpointName = 64

// Viewpoint - именованная поза камеры, которую можно подставить в параметры кадра
type Viewpoint struct {
	Name      string            `json:"name"`
	Camera    export.CameraPose `json:"camera"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ViewpointRepo определяет интерфейс для сохранения и загрузки точек обзора.
type ViewpointRepo interface {
	// Save сохраняет или перезаписывает точку обзора.
	Save(ctx context.Context, vp Viewpoint) error

	// Load загружает точку обзора по имени.
	// Возвращает false, если точки нет.
	Load(ctx context.Context, name string) (Viewpoint, bool, error)

	// Delete удаляет точку обзора. ErrViewpointNotFound, если её не было.
	Delete(ctx context.Context, name string) error

	// List возвращает все точки обзора, отсортированные по имени.
	List(ctx context.Context) ([]Viewpoint, error)

	Close() error
}

func validateName(name string) error {
	if name == "" || len(name) > MaxViewpointName {
		return fmt.Errorf("%w: name %q", ErrInvalidViewpoint, name)
	}
	return nil
}

// Бэкенды точек обзора
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
)

// ViewpointOptions - параметры выбора бэкенда
type ViewpointOptions struct {
	Backend string
	Redis   *RedisConfig
	DSN     string
}

// OpenViewpointRepo подключает выбранный бэкенд. Если Redis или MariaDB недоступны,
// возвращает репозиторий в памяти и ошибку подключения для логов.
func OpenViewpointRepo(ctx context.Context, opts ViewpointOptions) (ViewpointRepo, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryViewpointRepo(), nil
	case BackendRedis:
		repo, err := NewRedisViewpointRepo(ctx, opts.Redis)
		if err != nil {
			return NewMemoryViewpointRepo(), err
		}
		return repo, nil
	case BackendMySQL:
		repo, err := NewMariaViewpointRepo(ctx, opts.DSN)
		if err != nil {
			return NewMemoryViewpointRepo(), err
		}
		return repo, nil
	default:
		return NewMemoryViewpointRepo(), fmt.Errorf("unknown viewpoint backend %q", opts.Backend)
	}
}
