package eventbus

import (
	"context"
)

// StartLoggingListener подписывается на события и пишет их в лог на уровне DEBUG.
// Подписка живёт, пока не отменён ctx или не вызван Unsubscribe.
func StartLoggingListener(ctx context.Context, bus EventBus, types ...string) (Subscription, error) {
	sub, err := bus.Subscribe(ctx, Filter{Types: types}, func(ctx context.Context, ev *Envelope) {
		busLog.Debug("[EventBus] %s %s src=%s prio=%d %s", ev.ID, ev.EventType, ev.Source, ev.Priority, ev.Payload)
	})
	if err != nil {
		return nil, err
	}
	busLog.Info("🪵 LoggingListener: подписка на события активирована")
	return sub, nil
}
