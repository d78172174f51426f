package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/logging"
)

var busLog = logging.For("eventbus")

// ErrBusClosed - публикация в закрытую шину
var ErrBusClosed = errors.New("event bus closed")

// Бэкенды шины
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Options - параметры выбора реализации шины
type Options struct {
	Backend   string
	URL       string
	Stream    string
	Retention time.Duration
	Capacity  int
}

// Open создаёт шину по параметрам. Если NATS недоступен, возвращает шину в памяти
// и ошибку подключения для логов.
func Open(opts Options) (EventBus, error) {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = 1024
	}

	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryBus(capacity), nil
	case BackendNATS:
		bus, err := NewJetStreamBus(opts.URL, opts.Stream, opts.Retention)
		if err != nil {
			return NewMemoryBus(capacity), err
		}
		busLog.Info("📡 EventBus: JetStream %s stream=%s", opts.URL, bus.stream)
		return bus, nil
	default:
		return NewMemoryBus(capacity), fmt.Errorf("unknown event bus backend %q", opts.Backend)
	}
}

// PublishEvent упаковывает payload и публикует его; nil-шина игнорируется
func PublishEvent(ctx context.Context, bus EventBus, source, eventType string, priority int, payload interface{}) error {
	if bus == nil {
		return nil
	}
	ev, err := NewEnvelope(source, eventType, priority, payload)
	if err != nil {
		return fmt.Errorf("event %s: %w", eventType, err)
	}
	return bus.Publish(ctx, ev)
}
