package firestore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/platform/config"
	pfirestore "kahramana.bh/site/internal/platform/firestore"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	if err := wrapError("op", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := wrapError("op", status.Error(codes.NotFound, "missing")); !errors.Is(err, cart.ErrSlotEmpty) {
		t.Fatalf("expected ErrSlotEmpty, got %v", err)
	}
	if err := wrapError("op", status.Error(codes.ResourceExhausted, "too big")); !errors.Is(err, cart.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if err := wrapError("op", status.Error(codes.DeadlineExceeded, "slow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	err := wrapError("slot.put", status.Error(codes.PermissionDenied, "nope"))
	if err == nil || !strings.HasPrefix(err.Error(), "slot.put: ") {
		t.Fatalf("expected op prefix, got %v", err)
	}
}

func TestSlotRejectsOversizedPayloadBeforeDialing(t *testing.T) {
	t.Parallel()

	provider := pfirestore.NewProvider(config.FirestoreConfig{})
	slot, err := NewSlot(provider, "")
	if err != nil {
		t.Fatalf("new slot: %v", err)
	}
	if slot.collection != defaultCollection {
		t.Fatalf("expected default collection, got %q", slot.collection)
	}

	big := make([]byte, maxPayloadBytes+1)
	if err := slot.Put(context.Background(), "kahramana_cart_v2:c1", big); !errors.Is(err, cart.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestNewSlotRequiresProvider(t *testing.T) {
	t.Parallel()

	if _, err := NewSlot(nil, "carts"); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
