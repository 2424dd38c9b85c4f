package memory

import (
	"context"
	"errors"
	"testing"

	"kahramana.bh/site/internal/cart"
)

func TestSlotRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewSlot()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, cart.ErrSlotEmpty) {
		t.Fatalf("expected ErrSlotEmpty, got %v", err)
	}

	value := []byte(`{"items":[]}`)
	if err := s.Put(ctx, "k", value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"items":[]}` {
		t.Fatalf("stored value aliased caller buffer: %q", got)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}

func TestSlotQuota(t *testing.T) {
	t.Parallel()

	s := NewSlot(WithQuota(8))
	if err := s.Put(context.Background(), "k", []byte("0123456789")); !errors.Is(err, cart.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if err := s.Put(context.Background(), "k", []byte("small")); err != nil {
		t.Fatalf("put within quota: %v", err)
	}
}
