// Package broadcast relays cart change notifications between server instances so that
// subscribers on one instance see mutations applied on another.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kahramana.bh/site/internal/cart"
)

const publishTimeout = 5 * time.Second

// Change is the wire form of a cart change. It carries no cart contents; receivers
// reload the cart from the shared store.
type Change struct {
	CartID   string    `json:"cartId"`
	Origin   string    `json:"origin,omitempty"`
	Instance string    `json:"instance"`
	At       time.Time `json:"at"`
}

// Handler consumes changes received from the transport.
type Handler func(ctx context.Context, change Change)

// Broadcaster is a cross-instance transport.
type Broadcaster interface {
	Publish(ctx context.Context, change Change) error
	// Run delivers received changes to fn until ctx is cancelled.
	Run(ctx context.Context, fn Handler) error
	// Ping reports whether the transport is usable.
	Ping(ctx context.Context) error
	Close() error
}

func encode(change Change) ([]byte, error) {
	if strings.TrimSpace(change.CartID) == "" {
		return nil, errors.New("broadcast: cart id is required")
	}
	data, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("broadcast: marshal change: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Change, error) {
	var change Change
	if err := json.Unmarshal(data, &change); err != nil {
		return Change{}, fmt.Errorf("broadcast: unmarshal change: %w", err)
	}
	if strings.TrimSpace(change.CartID) == "" {
		return Change{}, errors.New("broadcast: change without cart id")
	}
	return change, nil
}

// Relay connects a local bus to a Broadcaster.
type Relay struct {
	bus         *cart.Bus
	broadcaster Broadcaster
	instance    string
	logger      *zap.Logger
	now         func() time.Time
}

// Attach forwards every local bus event to b and returns a Relay whose Run feeds remote
// changes back into the bus. Changes stamped with instance are ignored on receipt.
func Attach(bus *cart.Bus, b Broadcaster, instance string, logger *zap.Logger) (*Relay, error) {
	if bus == nil || b == nil {
		return nil, errors.New("broadcast: bus and broadcaster are required")
	}
	if strings.TrimSpace(instance) == "" {
		return nil, errors.New("broadcast: instance id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{bus: bus, broadcaster: b, instance: instance, logger: logger, now: time.Now}
	bus.Forward(r.forward)
	return r, nil
}

func (r *Relay) forward(ctx context.Context, ev cart.Event) {
	change := Change{CartID: ev.CartID, Origin: ev.Origin, Instance: r.instance, At: r.now().UTC()}
	// Publishing must not hold the cart lock or die with the request.
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := r.broadcaster.Publish(pubCtx, change); err != nil {
			r.logger.Warn("broadcast: publish failed", zap.String("cart_id", change.CartID), zap.Error(err))
		}
	}()
}

// Run blocks, delivering remote changes to the bus until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	err := r.broadcaster.Run(ctx, r.receive)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Relay) receive(_ context.Context, change Change) {
	if change.Instance == r.instance {
		return
	}
	r.bus.Deliver(cart.Event{CartID: change.CartID, Origin: change.Origin})
}
