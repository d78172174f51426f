package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы событий движка
const (
	TypeWorldGenerated   = "WorldGenerated"
	TypeVoxelChanged     = "VoxelChanged"
	TypeFrameChanged     = "FrameChanged"
	TypeSnapshotSaved    = "SnapshotSaved"
	TypeSnapshotRestored = "SnapshotRestored"
	TypeSnapshotDeleted  = "SnapshotDeleted"
)

// AllTypes перечисляет типы событий, которые публикует движок.
var AllTypes = []string{
	TypeWorldGenerated, TypeVoxelChanged, TypeFrameChanged,
	TypeSnapshotSaved, TypeSnapshotRestored, TypeSnapshotDeleted,
}

// DropBelow - события с приоритетом ниже отбрасываются при переполнении буфера.
const DropBelow = 5

// Envelope - событие вместе со служебными полями. Payload хранится в JSON.
type Envelope struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"` // UTC
	Source    string            `json:"source"`
	EventType string            `json:"event_type"`
	Version   int               `json:"version"`
	Priority  int               `json:"priority"` // 0..9
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope упаковывает payload.
func NewEnvelope(source, eventType string, priority int, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   raw,
	}, nil
}

func (e *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Droppable сообщает, можно ли потерять событие при нехватке места.
func (e *Envelope) Droppable() bool { return e.Priority < DropBelow }

// Filter отбирает события по типу и источнику; пустой список пропускает всё.
type Filter struct {
	Types   []string
	Sources []string
}

func (f Filter) Match(e *Envelope) bool {
	return anyOf(f.Types, e.EventType) && anyOf(f.Sources, e.Source)
}

func anyOf(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats - счётчики шины с момента создания.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus - шина событий движка.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}
