// Package memory provides an in-process cart slot used for local development and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"kahramana.bh/site/internal/cart"
)

// Slot keeps serialized carts in a map. A positive quota caps the byte size of a single
// value; larger writes fail with cart.ErrQuotaExceeded.
type Slot struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
}

var _ cart.Slot = (*Slot)(nil)

// Option customises a Slot.
type Option func(*Slot)

// WithQuota bounds the size of each stored value.
func WithQuota(bytes int) Option {
	return func(s *Slot) {
		if bytes > 0 {
			s.quota = bytes
		}
	}
}

// NewSlot constructs an empty Slot.
func NewSlot(opts ...Option) *Slot {
	s := &Slot{data: make(map[string][]byte)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns a copy of the stored value.
func (s *Slot) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[strings.TrimSpace(key)]
	if !ok {
		return nil, cart.ErrSlotEmpty
	}
	return append([]byte(nil), v...), nil
}

// Put replaces the stored value.
func (s *Slot) Put(_ context.Context, key string, value []byte) error {
	if s.quota > 0 && len(value) > s.quota {
		return cart.ErrQuotaExceeded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[strings.TrimSpace(key)] = append([]byte(nil), value...)
	return nil
}

// Ping always succeeds.
func (s *Slot) Ping(context.Context) error { return nil }

// Len reports how many carts are stored.
func (s *Slot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
