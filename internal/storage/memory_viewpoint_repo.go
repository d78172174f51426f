package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryViewpointRepo реализует ViewpointRepo в памяти.
// Используется как fallback, когда Redis и MariaDB недоступны,
// или для CI/локальной разработки без БД.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryViewpointRepo struct {
	mu   sync.RWMutex
	data map[string]Viewpoint
}

// NewMemoryViewpointRepo создает новый репозиторий точек обзора в памяти.
func NewMemoryViewpointRepo() *MemoryViewpointRepo {
	return &MemoryViewpointRepo{
		data: make(map[string]Viewpoint),
	}
}

// Save сохраняет точку обзора в памяти.
func (r *MemoryViewpointRepo) Save(ctx context.Context, vp Viewpoint) error {
	if err := validateName(vp.Name); err != nil {
		return err
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if vp.UpdatedAt.IsZero() {
		vp.UpdatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[vp.Name] = vp
	return nil
}

// Load загружает точку обзора из памяти.
func (r *MemoryViewpointRepo) Load(ctx context.Context, name string) (Viewpoint, bool, error) {
	if err := validateName(name); err != nil {
		return Viewpoint{}, false, err
	}

	select {
	case <-ctx.Done():
		return Viewpoint{}, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	vp, exists := r.data[name]
	return vp, exists, nil
}

// Delete удаляет точку обзора из памяти.
func (r *MemoryViewpointRepo) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[name]; !exists {
		return fmt.Errorf("%q: %w", name, ErrViewpointNotFound)
	}
	delete(r.data, name)
	return nil
}

// List возвращает все точки обзора.
func (r *MemoryViewpointRepo) List(ctx context.Context) ([]Viewpoint, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Viewpoint, 0, len(r.data))
	for _, vp := range r.data {
		list = append(list, vp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// Close для памяти ничего не делает.
func (r *MemoryViewpointRepo) Close() error {
	return nil
}

// Size возвращает количество сохраненных точек (для тестов и мониторинга).
func (r *MemoryViewpointRepo) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
