// Package cart owns the canonical cart state: the persisted slot, the mutation API that
// enforces quantity and merge rules, and the change bus that every page surface observes.
package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	// StorageKey prefixes every persisted cart slot.
	StorageKey = "kahramana_cart_v2"
	// EventName is the change notification name surfaced to pages.
	EventName = "kahramana:cart"
	// MaxItemQty bounds the quantity of a single line item.
	MaxItemQty = 50

	MaxItemNotesLen  = 140
	MaxOrderNotesLen = 500
	maxNameLen       = 120
	maxImageLen      = 512
)

// Item is one cart line. ID is the merge key.
type Item struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Qty   int
	Image string
	Notes string
}

// LineTotal is price × qty.
func (it Item) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Qty)))
}

type itemJSON struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Qty   int         `json:"qty"`
	Image string      `json:"image"`
	Notes string      `json:"notes,omitempty"`
}

// MarshalJSON writes price as a bare number with three fractional digits.
func (it Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{
		ID:    it.ID,
		Name:  it.Name,
		Price: json.Number(it.Price.StringFixed(3)),
		Qty:   it.Qty,
		Image: it.Image,
		Notes: it.Notes,
	})
}

// State is the persisted cart.
type State struct {
	Items    []Item
	BranchID string
	Notes    string
}

type stateJSON struct {
	Items    []Item `json:"items"`
	BranchID string `json:"branchId,omitempty"`
	Notes    string `json:"notes"`
}

// MarshalJSON writes the persisted layout {items, branchId, notes}.
func (s State) MarshalJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(stateJSON{Items: items, BranchID: s.BranchID, Notes: s.Notes})
}

// Clone returns a deep copy so callers can mutate freely.
func (s State) Clone() State {
	out := s
	out.Items = append([]Item(nil), s.Items...)
	return out
}

func (s State) index(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Item returns the line with id.
func (s State) Item(id string) (Item, bool) {
	if i := s.index(id); i >= 0 {
		return s.Items[i], true
	}
	return Item{}, false
}

// Qty returns the quantity for id, zero when absent.
func (s State) Qty(id string) int {
	item, _ := s.Item(id)
	return item.Qty
}

// TotalQty sums all quantities.
func (s State) TotalQty() int {
	n := 0
	for _, it := range s.Items {
		n += it.Qty
	}
	return n
}

// Total sums price × qty across all lines.
func (s State) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Empty reports whether the cart has no items.
func (s State) Empty() bool { return len(s.Items) == 0 }

// Snapshot is the change notification payload.
type Snapshot struct {
	Qty      int
	Total    decimal.Decimal
	Items    []Item
	BranchID string
	Notes    string
}

// Snapshot captures totals and a copy of the items.
func (s State) Snapshot() Snapshot {
	return Snapshot{
		Qty:      s.TotalQty(),
		Total:    s.Total(),
		Items:    append([]Item{}, s.Items...),
		BranchID: s.BranchID,
		Notes:    s.Notes,
	}
}

type snapshotJSON struct {
	Qty      int         `json:"qty"`
	Total    json.Number `json:"total"`
	Items    []Item      `json:"items"`
	BranchID string      `json:"branchId,omitempty"`
	Notes    string      `json:"notes"`
}

// MarshalJSON writes {qty, total, items, branchId, notes}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(snapshotJSON{
		Qty:      s.Qty,
		Total:    json.Number(s.Total.StringFixed(3)),
		Items:    items,
		BranchID: s.BranchID,
		Notes:    s.Notes,
	})
}

// ItemQty returns the quantity of id in the snapshot, zero when absent.
func (s Snapshot) ItemQty(id string) int {
	for _, it := range s.Items {
		if it.ID == id {
			return it.Qty
		}
	}
	return 0
}

// Summary is the compact change notice carried in response headers: item count and
// total only, so free text never reaches a header.
type Summary struct {
	Qty   int
	Total decimal.Decimal
}

// Summary drops the lines, branch and notes from the snapshot.
func (s Snapshot) Summary() Summary {
	return Summary{Qty: s.Qty, Total: s.Total}
}

// MarshalJSON writes {qty, total} with total fixed to three fractional digits.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Qty   int         `json:"qty"`
		Total json.Number `json:"total"`
	}{Qty: s.Qty, Total: json.Number(s.Total.StringFixed(3))})
}

// ClampQty bounds q to [0, MaxItemQty]; zero means "remove".
func ClampQty(q int) int {
	switch {
	case q <= 0:
		return 0
	case q > MaxItemQty:
		return MaxItemQty
	default:
		return q
	}
}
