package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisViewpointRepo хранит точки обзора в Redis: JSON под ключом <prefix><name>
// и множество имён под ключом <prefix>index.
type RedisViewpointRepo struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "voxel:viewpoint:",
	}
}

// NewRedisViewpointRepo создаёт Redis репозиторий и проверяет подключение
func NewRedisViewpointRepo(ctx context.Context, config *RedisConfig) (*RedisViewpointRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	storageLog.Info("🔴 Connected to Redis at %s", config.Addr)
	return &RedisViewpointRepo{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

func (r *RedisViewpointRepo) indexKey() string {
	return r.keyPrefix + "index"
}

// Save сохраняет точку обзора
func (r *RedisViewpointRepo) Save(ctx context.Context, vp Viewpoint) error {
	if err := validateName(vp.Name); err != nil {
		return err
	}
	if vp.UpdatedAt.IsZero() {
		vp.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(vp)
	if err != nil {
		return fmt.Errorf("failed to marshal viewpoint: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.keyPrefix+vp.Name, data, 0)
	pipe.SAdd(ctx, r.indexKey(), vp.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save viewpoint %q: %w", vp.Name, err)
	}
	return nil
}

// Load получает точку обзора
func (r *RedisViewpointRepo) Load(ctx context.Context, name string) (Viewpoint, bool, error) {
	if err := validateName(name); err != nil {
		return Viewpoint{}, false, err
	}

	data, err := r.client.Get(ctx, r.keyPrefix+name).Bytes()
	if err == redis.Nil {
		return Viewpoint{}, false, nil
	} else if err != nil {
		return Viewpoint{}, false, fmt.Errorf("failed to get viewpoint %q: %w", name, err)
	}

	var vp Viewpoint
	if err := json.Unmarshal(data, &vp); err != nil {
		return Viewpoint{}, false, fmt.Errorf("failed to unmarshal viewpoint %q: %w", name, err)
	}
	return vp, true, nil
}

// Delete удаляет точку обзора
func (r *RedisViewpointRepo) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.keyPrefix+name)
	pipe.SRem(ctx, r.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete viewpoint %q: %w", name, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%q: %w", name, ErrViewpointNotFound)
	}
	return nil
}

// List возвращает все точки обзора из индекса
func (r *RedisViewpointRepo) List(ctx context.Context) ([]Viewpoint, error) {
	names, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list viewpoints: %w", err)
	}
	if len(names) == 0 {
		return []Viewpoint{}, nil
	}

	// Получаем данные пайплайном
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(names))
	for i, name := range names {
		cmds[i] = pipe.Get(ctx, r.keyPrefix+name)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get viewpoints: %w", err)
	}

	list := make([]Viewpoint, 0, len(names))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err == redis.Nil {
			continue // Индекс отстал от данных
		} else if err != nil {
			storageLog.Warn("⚠️ Failed to get viewpoint %s: %v", names[i], err)
			continue
		}

		var vp Viewpoint
		if err := json.Unmarshal(data, &vp); err != nil {
			storageLog.Warn("⚠️ Failed to unmarshal viewpoint %s: %v", names[i], err)
			continue
		}
		list = append(list, vp)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// Close закрывает соединение с Redis
func (r *RedisViewpointRepo) Close() error {
	return r.client.Close()
}
