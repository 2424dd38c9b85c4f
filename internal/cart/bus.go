package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultSubscriberBuffer = 16

// Event is one change notification. Snapshot is nil for changes relayed from another
// instance; subscribers re-read the store in that case.
type Event struct {
	CartID   string
	Origin   string
	Snapshot *Snapshot
	Remote   bool
}

// Bus fans change notifications out to subscribers of a cart id.
type Bus struct {
	logger *zap.Logger

	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]*subscriber
	forward func(context.Context, Event)
}

type subscriber struct {
	cartID string
	ch     chan Event
}

// NewBus returns an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger, subs: make(map[uint64]*subscriber)}
}

// Subscribe registers interest in cartID. The returned cancel func closes the channel.
// Slow subscribers lose events rather than blocking mutations.
func (b *Bus) Subscribe(cartID string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = &subscriber{cartID: cartID, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Forward installs a hook that receives every locally published event, used to relay
// changes to other instances.
func (b *Bus) Forward(fn func(context.Context, Event)) {
	b.mu.Lock()
	b.forward = fn
	b.mu.Unlock()
}

// Publish delivers a local event and forwards it.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.deliver(ev)

	b.mu.RLock()
	forward := b.forward
	b.mu.RUnlock()
	if forward != nil && !ev.Remote {
		forward(ctx, ev)
	}
}

// Deliver hands an event received from another instance to local subscribers only.
func (b *Bus) Deliver(ev Event) {
	ev.Remote = true
	ev.Snapshot = nil
	b.deliver(ev)
}

func (b *Bus) deliver(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.cartID != ev.CartID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debug("cart: subscriber buffer full, dropping event", zap.String("cart_id", ev.CartID))
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
