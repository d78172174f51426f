package app

import (
	"context"
	"time"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/vec"
)

const eventSource = "world-service"

// Изменения вокселей и кадра допускают потерю при переполнении шины, снимки и генерация нет
const (
	priorityLow  = 2
	priorityHigh = 7
)

const publishTimeout = 2 * time.Second

// WorldGeneratedEvent публикуется после заполнения сетки
type WorldGeneratedEvent struct {
	Mode        string        `json:"mode"`
	Seed        int64         `json:"seed"`
	Chunks      int           `json:"chunks"`
	VoxelErrors int           `json:"voxel_errors"`
	Duration    time.Duration `json:"duration"`
}

// VoxelChangedEvent - успешная запись в октодерево
type VoxelChangedEvent struct {
	Pos   vec.Vec3 `json:"pos"`
	Value uint32   `json:"value"`
	Nodes int      `json:"nodes"`
}

type SnapshotEvent struct {
	ID     string `json:"id"`
	Layout string `json:"layout,omitempty"`
}

// publish отправляет событие без удержания s.mu; ошибка шины только логируется
func (s *WorldService) publish(eventType string, priority int, payload interface{}) {
	if s.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := eventbus.PublishEvent(ctx, s.bus, eventSource, eventType, priority, payload); err != nil {
		logging.Warn("⚠️ Событие %s не опубликовано: %v", eventType, err)
	}
}
