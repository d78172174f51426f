package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

const subjectPrefix = "voxel"

// DefaultStream - имя стрима, если не задано в конфигурации
const DefaultStream = "VOXEL_EVENTS"

// JetStreamBus реализует EventBus поверх NATS JetStream.
// События публикуются в subject voxel.<EventType>.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

// StreamStats - состояние стрима на сервере NATS
type StreamStats struct {
	Messages uint64
	Bytes    uint64
	FirstSeq uint64
	LastSeq  uint64
	First    time.Time
	Last     time.Time
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима.
// retention = 0 - хранить без ограничения по времени.
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = DefaultStream
	}

	nc, err := nats.Connect(url, nats.Name("voxel-engine"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subjectPrefix + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", stream, err)
		}
	}

	return &JetStreamBus{nc: nc, js: js, stream: stream}, nil
}

func subjectFor(f Filter) string {
	if len(f.Types) == 1 {
		return subjectPrefix + "." + f.Types[0]
	}
	return subjectPrefix + ".>"
}

// Publish сериализует Envelope в JSON и публикует в subject voxel.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err = jb.js.Publish(subjectPrefix+"."+ev.EventType, data, nats.Context(ctx), nats.MsgId(ev.ID)); err != nil {
		jb.dropped.Add(1)
		return err
	}
	jb.published.Add(1)
	return nil
}

// Subscribe получает только новые события через эфемерный consumer.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	return jb.subscribe(ctx, f, h, nats.DeliverNew())
}

// Replay доставляет события, сохранённые в стриме начиная с since, а затем новые.
func (jb *JetStreamBus) Replay(ctx context.Context, f Filter, since time.Time, h Handler) (Subscription, error) {
	return jb.subscribe(ctx, f, h, nats.StartTime(since))
}

func (jb *JetStreamBus) subscribe(ctx context.Context, f Filter, h Handler, deliver nats.SubOpt) (Subscription, error) {
	natSub, err := jb.js.Subscribe(subjectFor(f), func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err == nil && f.Match(&ev) {
			h(ctx, &ev)
			jb.consumed.Add(1)
		}
		_ = msg.Ack()
	}, nats.BindStream(jb.stream), deliver, nats.ManualAck(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, err
	}

	sub := &jetSub{s: natSub}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			sub.Unsubscribe()
		}()
	}
	return sub, nil
}

// jetSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type jetSub struct {
	s    *nats.Subscription
	done atomic.Bool
}

func (j *jetSub) Unsubscribe() {
	if j.done.CompareAndSwap(false, true) {
		_ = j.s.Unsubscribe()
	}
}

// StreamStats возвращает число и границы сохранённых событий
func (jb *JetStreamBus) StreamStats() (StreamStats, error) {
	info, err := jb.js.StreamInfo(jb.stream)
	if err != nil {
		return StreamStats{}, err
	}
	st := info.State
	return StreamStats{
		Messages: st.Msgs,
		Bytes:    st.Bytes,
		FirstSeq: st.FirstSeq,
		LastSeq:  st.LastSeq,
		First:    st.FirstTime,
		Last:     st.LastTime,
	}, nil
}

// Close дожидается отправки буферов и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}

// Metrics возвращает счётчики этого процесса; очередь ведёт сам JetStream.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: jb.published.Load(),
		Consumed:  jb.consumed.Load(),
		Dropped:   jb.dropped.Load(),
	}
}
