// Package firestore stores cart slots as Firestore documents.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kahramana.bh/site/internal/cart"
	pfirestore "kahramana.bh/site/internal/platform/firestore"
)

const defaultCollection = "cartSlots"

// maxPayloadBytes stays below the 1 MiB Firestore document limit.
const maxPayloadBytes = 900 * 1024

type slotDocument struct {
	Payload   string    `firestore:"payload"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Slot persists serialized carts, one document per cart key.
type Slot struct {
	provider   *pfirestore.Provider
	collection string
	now        func() time.Time
}

var _ cart.Slot = (*Slot)(nil)

// NewSlot constructs a Firestore-backed slot. An empty collection uses "cartSlots".
func NewSlot(provider *pfirestore.Provider, collection string) (*Slot, error) {
	if provider == nil {
		return nil, errors.New("firestore slot requires firestore provider")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = defaultCollection
	}
	return &Slot{provider: provider, collection: collection, now: time.Now}, nil
}

// Get reads the payload stored under key.
func (s *Slot) Get(ctx context.Context, key string) ([]byte, error) {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, wrapError("slot.get", err)
	}
	var doc slotDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("slot.get: decode: %w", err)
	}
	if doc.Payload == "" {
		return nil, cart.ErrSlotEmpty
	}
	return []byte(doc.Payload), nil
}

// Put overwrites the payload stored under key.
func (s *Slot) Put(ctx context.Context, key string, value []byte) error {
	if len(value) > maxPayloadBytes {
		return cart.ErrQuotaExceeded
	}
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, slotDocument{Payload: string(value), UpdatedAt: s.now().UTC()})
	return wrapError("slot.put", err)
}

// Ping verifies the client can be created.
func (s *Slot) Ping(ctx context.Context) error {
	_, err := s.provider.Client(ctx)
	return err
}

func (s *Slot) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "/") {
		return nil, fmt.Errorf("firestore slot: invalid key %q", key)
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(key), nil
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return cart.ErrSlotEmpty
	case codes.ResourceExhausted:
		return fmt.Errorf("%s: %w", op, cart.ErrQuotaExceeded)
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return fmt.Errorf("%s: %w", op, err)
}
