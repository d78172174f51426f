package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// memoryBus раздаёт события внутри процесса. Общая очередь queue
// разбирается одним диспетчером; у каждого подписчика свой inbox,
// поэтому порядок событий для подписчика сохраняется.
type memoryBus struct {
	queue chan *Envelope
	done  chan struct{}
	once  sync.Once

	mu   sync.RWMutex
	subs map[uint64]*memSub
	seq  uint64

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

// NewMemoryBus создаёт in-memory шину с общей очередью на capacity событий.
func NewMemoryBus(capacity int) EventBus {
	mb := newMemoryBus(capacity)
	go mb.dispatch()
	return mb
}

func newMemoryBus(capacity int) *memoryBus {
	return &memoryBus{
		queue: make(chan *Envelope, capacity),
		done:  make(chan struct{}),
		subs:  make(map[uint64]*memSub),
	}
}

func (mb *memoryBus) closed() bool {
	select {
	case <-mb.done:
		return true
	default:
		return false
	}
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	if mb.closed() {
		return ErrBusClosed
	}

	select {
	case mb.queue <- ev:
		mb.published.Add(1)
		return nil
	default:
	}

	if ev.Droppable() {
		mb.dropped.Add(1)
		return nil
	}
	select {
	case mb.queue <- ev:
		mb.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return ErrBusClosed
	}
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if mb.closed() {
		return nil, ErrBusClosed
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &memSub{
		bus:     mb,
		filter:  f,
		handler: h,
		ctx:     sctx,
		cancel:  cancel,
		inbox:   make(chan *Envelope, cap(mb.queue)+1),
	}

	mb.mu.Lock()
	mb.seq++
	s.id = mb.seq
	mb.subs[s.id] = s
	mb.mu.Unlock()

	go s.run()
	return s, nil
}

func (mb *memoryBus) Metrics() Stats {
	return Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
		InFlight:  len(mb.queue),
	}
}

// Close останавливает диспетчер и отменяет всех подписчиков. Повторный вызов безопасен.
func (mb *memoryBus) Close() error {
	mb.once.Do(func() {
		close(mb.done)
		mb.mu.Lock()
		for id, s := range mb.subs {
			s.cancel()
			delete(mb.subs, id)
		}
		mb.mu.Unlock()
	})
	return nil
}

func (mb *memoryBus) dispatch() {
	for {
		select {
		case <-mb.done:
			return
		case ev := <-mb.queue:
			mb.fanOut(ev)
		}
	}
}

func (mb *memoryBus) fanOut(ev *Envelope) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	for _, s := range mb.subs {
		if s.filter.Match(ev) {
			s.offer(ev)
		}
	}
}

type memSub struct {
	id      uint64
	bus     *memoryBus
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	inbox   chan *Envelope
}

// offer кладёт событие в inbox; медленный подписчик теряет только droppable события.
func (s *memSub) offer(ev *Envelope) {
	select {
	case s.inbox <- ev:
		return
	default:
	}
	if ev.Droppable() {
		s.bus.dropped.Add(1)
		return
	}
	select {
	case s.inbox <- ev:
	case <-s.ctx.Done():
	case <-s.bus.done:
	}
}

func (s *memSub) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.inbox:
			s.handler(s.ctx, ev)
			s.bus.consumed.Add(1)
		}
	}
}

func (s *memSub) Unsubscribe() {
	s.cancel()
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}
