package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kahramana.bh/site/internal/platform/observability"
)

var (
	// ErrSlotEmpty is returned by a Slot when nothing is stored under the key.
	ErrSlotEmpty = errors.New("cart: slot empty")
	// ErrQuotaExceeded is returned by a Slot that refuses a write for size reasons.
	ErrQuotaExceeded = errors.New("cart: slot quota exceeded")
)

// Slot is the persistent key/value backend holding serialized carts.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Catalog supplies site data the store needs to normalise persisted carts.
type Catalog interface {
	DefaultBranchID() string
	HasBranch(id string) bool
	FallbackPrice(id string) (decimal.Decimal, bool)
	PlaceholderImage() string
}

// SlotKey returns the persisted key for a cart id.
func SlotKey(cartID string) string {
	return StorageKey + ":" + cartID
}

// Store loads and saves carts. Neither operation fails: unreadable data loads as an
// empty cart and write failures are logged and dropped.
type Store struct {
	slot    Slot
	catalog Catalog
	logger  *zap.Logger
}

// NewStore wires a Store.
func NewStore(slot Slot, catalog Catalog, logger *zap.Logger) (*Store, error) {
	if slot == nil {
		return nil, errors.New("cart: slot is required")
	}
	if catalog == nil {
		return nil, errors.New("cart: catalog is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{slot: slot, catalog: catalog, logger: logger}, nil
}

// Load reads and normalises the cart for cartID.
func (s *Store) Load(ctx context.Context, cartID string) State {
	raw, err := s.slot.Get(ctx, SlotKey(cartID))
	if err != nil {
		if !errors.Is(err, ErrSlotEmpty) {
			s.logger.Warn("cart: load failed, using empty cart", zap.String("cart_id", observability.SanitizeKey(cartID)), zap.Error(err))
		}
		return s.Decode(nil)
	}
	return s.Decode(raw)
}

// Save writes the full state.
func (s *Store) Save(ctx context.Context, cartID string, state State) {
	raw, err := json.Marshal(state)
	if err != nil {
		s.logger.Error("cart: encode failed", zap.String("cart_id", observability.SanitizeKey(cartID)), zap.Error(err))
		return
	}
	if err := s.slot.Put(ctx, SlotKey(cartID), raw); err != nil {
		s.logger.Warn("cart: save failed", zap.String("cart_id", observability.SanitizeKey(cartID)), zap.Int("bytes", len(raw)), zap.Error(err))
	}
}

// Decode parses a persisted value. It accepts the current {items, branchId, notes}
// object, a bare array of items, and any malformed input (which yields an empty cart).
func (s *Store) Decode(raw []byte) State {
	state := State{Items: []Item{}}

	var doc any
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			doc = nil
		}
	}

	var rawItems []any
	switch v := doc.(type) {
	case []any:
		rawItems = v
	case map[string]any:
		rawItems, _ = v["items"].([]any)
		state.BranchID, _ = v["branchId"].(string)
		if notes, ok := v["notes"].(string); ok {
			state.Notes = SanitizeText(notes, MaxOrderNotesLen)
		}
	}

	for _, entry := range rawItems {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item, ok := s.decodeItem(obj)
		if !ok {
			continue
		}
		if i := state.index(item.ID); i >= 0 {
			state.Items[i].Qty = ClampQty(state.Items[i].Qty + item.Qty)
			continue
		}
		state.Items = append(state.Items, item)
	}

	if !s.catalog.HasBranch(state.BranchID) {
		state.BranchID = s.catalog.DefaultBranchID()
	}
	return state
}

func (s *Store) decodeItem(obj map[string]any) (Item, bool) {
	id := strings.TrimSpace(scalarString(obj["id"]))
	if id == "" {
		return Item{}, false
	}
	item := Item{
		ID:    id,
		Name:  SanitizeText(scalarString(obj["name"]), maxNameLen),
		Image: strings.TrimSpace(scalarString(obj["image"])),
		Notes: SanitizeText(scalarString(obj["notes"]), MaxItemNotesLen),
	}
	if len(item.Image) > maxImageLen || item.Image == "" {
		item.Image = s.catalog.PlaceholderImage()
	}

	price, ok := scalarDecimal(obj["price"])
	if !ok || price.IsNegative() {
		price, _ = s.catalog.FallbackPrice(id)
	}
	item.Price = price.Round(3)

	qty := 1
	if n, ok := scalarDecimal(obj["qty"]); ok && n.IsPositive() {
		if n.GreaterThan(decimal.NewFromInt(MaxItemQty)) {
			qty = MaxItemQty
		} else if q := int(n.IntPart()); q >= 1 {
			qty = q
		}
	}
	item.Qty = qty
	return item, true
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func scalarDecimal(v any) (decimal.Decimal, bool) {
	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return decimal.Zero, false
	}
	if text == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		d = decimal.NewFromFloat(f)
	}
	return d, true
}

// String renders a State for debug logs.
func (s State) String() string {
	return fmt.Sprintf("cart{items=%d qty=%d total=%s branch=%s}", len(s.Items), s.TotalQty(), s.Total().StringFixed(3), s.BranchID)
}
