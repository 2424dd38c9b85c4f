package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"kahramana.bh/site/internal/site"
)

type fakeSlot struct {
	mu      sync.Mutex
	data    map[string][]byte
	failPut error
	failGet error
	puts    int
}

func newFakeSlot() *fakeSlot { return &fakeSlot{data: map[string][]byte{}} }

func (f *fakeSlot) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	v, ok := f.data[key]
	if !ok {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), v...), nil
}

func (f *fakeSlot) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.failPut != nil {
		return f.failPut
	}
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeSlot) set(cartID, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[SlotKey(cartID)] = []byte(raw)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	slot  *fakeSlot
	store *Store
	bus   *Bus
	clock *fakeClock
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	slot := newFakeSlot()
	store, err := NewStore(slot, site.Default(), nil)
	require.NoError(t, err)
	bus := NewBus(nil)
	clock := &fakeClock{now: time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceDeps{
		Store:       store,
		Bus:         bus,
		Catalog:     site.Default(),
		Clock:       clock.Now,
		AddDebounce: DefaultAddDebounce,
	})
	require.NoError(t, err)
	return &fixture{slot: slot, store: store, bus: bus, clock: clock, svc: svc}
}

func bhd(s string) decimal.Decimal { return decimal.RequireFromString(s) }
