package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type voxelPayload struct {
	X, Y, Z int
}

func TestMemoryBusDelivers(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	got := make(chan *Envelope, 4)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{TypeVoxelChanged}}, func(ctx context.Context, ev *Envelope) {
		got <- ev
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, PublishEvent(ctx, bus, "test", TypeFrameChanged, 1, map[string]int{"n": 1}))
	require.NoError(t, PublishEvent(ctx, bus, "test", TypeVoxelChanged, 5, voxelPayload{1, 2, 3}))

	select {
	case ev := <-got:
		assert.Equal(t, TypeVoxelChanged, ev.EventType)
		assert.NotEmpty(t, ev.ID)
		var p voxelPayload
		require.NoError(t, ev.Decode(&p))
		assert.Equal(t, voxelPayload{1, 2, 3}, p)
	case <-time.After(2 * time.Second):
		t.Fatal("событие не доставлено")
	}

	select {
	case ev := <-got:
		t.Fatalf("фильтр пропустил лишнее событие %s", ev.EventType)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, uint64(2), bus.Metrics().Published)
}

func TestMemoryBusDropsLowPriorityWhenFull(t *testing.T) {
	mb := newMemoryBus(1)
	// диспетчер не запущен: очередь не опустошается

	ctx := context.Background()
	require.NoError(t, PublishEvent(ctx, mb, "test", TypeVoxelChanged, 1, nil))
	require.NoError(t, PublishEvent(ctx, mb, "test", TypeVoxelChanged, 1, nil))

	stats := mb.Metrics()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.InFlight)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := PublishEvent(cancelled, mb, "test", TypeSnapshotSaved, 9, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClosedBus(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := PublishEvent(context.Background(), bus, "test", TypeVoxelChanged, 1, nil)
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.NoError(t, PublishEvent(context.Background(), nil, "test", TypeVoxelChanged, 1, nil))
}

func TestOpenFallsBackToMemory(t *testing.T) {
	bus, err := Open(Options{Backend: "kafka"})
	assert.Error(t, err)
	require.NotNil(t, bus)
	bus.Close()

	bus, err = Open(Options{})
	require.NoError(t, err)
	bus.Close()
}

func TestMetricsExporterCollects(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg, time.Hour)

	require.NoError(t, PublishEvent(context.Background(), bus, "test", TypeWorldGenerated, 1, nil))
	prev := me.collect(Stats{})
	assert.Equal(t, uint64(1), prev.Published)

	var m dto.Metric
	require.NoError(t, me.published.Write(&m))
	assert.Equal(t, 1.0, m.GetCounter().GetValue())

	me.Start()
	me.Stop()
}

func TestMemoryBusKeepsOrderPerSubscriber(t *testing.T) {
	bus := NewMemoryBus(64)
	defer bus.Close()

	const n = 50
	got := make(chan int, n)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		var p voxelPayload
		if err := ev.Decode(&p); err == nil {
			got <- p.X
		}
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, PublishEvent(context.Background(), bus, "test", TypeVoxelChanged, 7, voxelPayload{X: i}))
	}
	for i := 0; i < n; i++ {
		select {
		case x := <-got:
			if x != i {
				t.Fatalf("нарушен порядок: ожидалось %d, получено %d", i, x)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("получено только %d событий из %d", i, n)
		}
	}

	sub.Unsubscribe()
	require.NoError(t, PublishEvent(context.Background(), bus, "test", TypeVoxelChanged, 7, voxelPayload{}))
	select {
	case <-got:
		t.Fatal("событие после отписки")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterMatch(t *testing.T) {
	ev := &Envelope{EventType: TypeSnapshotSaved, Source: "world-service"}
	assert.True(t, Filter{}.Match(ev))
	assert.True(t, Filter{Types: []string{TypeSnapshotSaved}}.Match(ev))
	assert.False(t, Filter{Types: []string{TypeVoxelChanged}}.Match(ev))
	assert.False(t, Filter{Sources: []string{"worldgen"}}.Match(ev))
	assert.True(t, (&Envelope{Priority: 4}).Droppable())
	assert.False(t, (&Envelope{Priority: DropBelow}).Droppable())
}
