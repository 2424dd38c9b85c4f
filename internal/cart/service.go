package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultAddDebounce absorbs duplicate taps on add controls.
const DefaultAddDebounce = 150 * time.Millisecond

// Clock returns the current time.
type Clock func() time.Time

// MutationRecorder observes mutation outcomes, typically for metrics.
type MutationRecorder interface {
	Mutation(ctx context.Context, op string, applied bool)
}

// ServiceDeps bundles constructor inputs for Service.
type ServiceDeps struct {
	Store       *Store
	Bus         *Bus
	Catalog     Catalog
	Clock       Clock
	AddDebounce time.Duration
	Metrics     MutationRecorder
	Logger      *zap.Logger
}

// AddItemInput carries the product data rendered on the page at add time.
type AddItemInput struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Image string
}

// Result is the outcome of a mutation. Applied is false when the call was a no-op
// (debounced add, unknown id, unchanged value); nothing is persisted or published then.
type Result struct {
	Snapshot Snapshot
	Applied  bool
}

// Service is the cart mutation API. Every call runs load, mutate, save and notify
// under a per-cart lock so concurrent requests for one cart never interleave.
type Service struct {
	store    *Store
	bus      *Bus
	catalog  Catalog
	now      Clock
	debounce time.Duration
	metrics  MutationRecorder
	logger   *zap.Logger

	locks *keyedMutex

	addMu   sync.Mutex
	lastAdd map[string]time.Time
}

// NewService validates deps and builds a Service.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("cart service: store is required")
	}
	if deps.Bus == nil {
		return nil, errors.New("cart service: bus is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	debounce := deps.AddDebounce
	if debounce < 0 {
		debounce = 0
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    deps.Store,
		bus:      deps.Bus,
		catalog:  deps.Catalog,
		now:      clock,
		debounce: debounce,
		metrics:  deps.Metrics,
		logger:   logger,
		locks:    newKeyedMutex(),
		lastAdd:  make(map[string]time.Time),
	}, nil
}

// State returns the current cart.
func (s *Service) State(ctx context.Context, cartID string) State {
	return s.store.Load(ctx, cartID)
}

// Snapshot returns the current totals and items.
func (s *Service) Snapshot(ctx context.Context, cartID string) Snapshot {
	return s.store.Load(ctx, cartID).Snapshot()
}

// Qty returns the quantity of id in the cart, zero when absent.
func (s *Service) Qty(ctx context.Context, cartID, id string) int {
	return s.store.Load(ctx, cartID).Qty(strings.TrimSpace(id))
}

// AddItem appends id with qty 1, or increments an existing line by one (capped) and
// refreshes its name, price and image. Calls within the debounce window of the previous
// applied add for the same cart are ignored.
func (s *Service) AddItem(ctx context.Context, cartID string, in AddItemInput) Result {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return s.noop(ctx, "add", cartID)
	}
	name := SanitizeText(in.Name, maxNameLen)
	price := in.Price
	if price.IsNegative() {
		price = decimal.Zero
	}
	price = price.Round(3)
	image := strings.TrimSpace(in.Image)
	if image == "" || len(image) > maxImageLen {
		image = s.catalog.PlaceholderImage()
	}

	return s.mutate(ctx, "add", cartID, func(st *State) bool {
		now := s.now()
		if !s.claimAdd(cartID, now) {
			return false
		}
		if i := st.index(id); i >= 0 {
			it := &st.Items[i]
			it.Qty = ClampQty(it.Qty + 1)
			it.Name = name
			it.Price = price
			it.Image = image
			return true
		}
		st.Items = append(st.Items, Item{ID: id, Name: name, Price: price, Image: image, Qty: 1})
		return true
	})
}

// SetQty sets an absolute quantity. qty <= 0 removes the line and values above the
// maximum are clamped. An unknown id with qty > 0 creates a bare line that a later
// AddItem fills in.
func (s *Service) SetQty(ctx context.Context, cartID, id string, qty int) Result {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.noop(ctx, "set_qty", cartID)
	}
	return s.mutate(ctx, "set_qty", cartID, func(st *State) bool {
		return setQty(st, id, qty, s.catalog.PlaceholderImage())
	})
}

// UpdateQty adjusts the quantity by delta with the same rules as SetQty.
func (s *Service) UpdateQty(ctx context.Context, cartID, id string, delta int) Result {
	id = strings.TrimSpace(id)
	if id == "" || delta == 0 {
		return s.noop(ctx, "update_qty", cartID)
	}
	// A single step never moves further than the cap, so the sum cannot overflow.
	delta = max(-MaxItemQty, min(delta, MaxItemQty))
	return s.mutate(ctx, "update_qty", cartID, func(st *State) bool {
		return setQty(st, id, st.Qty(id)+delta, s.catalog.PlaceholderImage())
	})
}

// RemoveItem drops the line regardless of quantity.
func (s *Service) RemoveItem(ctx context.Context, cartID, id string) Result {
	id = strings.TrimSpace(id)
	return s.mutate(ctx, "remove", cartID, func(st *State) bool {
		i := st.index(id)
		if i < 0 {
			return false
		}
		st.Items = append(st.Items[:i], st.Items[i+1:]...)
		return true
	})
}

// Clear empties items and order notes. The branch selection is kept.
func (s *Service) Clear(ctx context.Context, cartID string) Result {
	return s.mutate(ctx, "clear", cartID, func(st *State) bool {
		if len(st.Items) == 0 && st.Notes == "" {
			return false
		}
		st.Items = []Item{}
		st.Notes = ""
		return true
	})
}

// UpdateItemNotes stores sanitised free text on a line; unknown ids are ignored.
func (s *Service) UpdateItemNotes(ctx context.Context, cartID, id, text string) Result {
	id = strings.TrimSpace(id)
	notes := SanitizeText(text, MaxItemNotesLen)
	return s.mutate(ctx, "item_notes", cartID, func(st *State) bool {
		i := st.index(id)
		if i < 0 || st.Items[i].Notes == notes {
			return false
		}
		st.Items[i].Notes = notes
		return true
	})
}

// SetBranch selects the fulfilment branch; unknown ids are ignored.
func (s *Service) SetBranch(ctx context.Context, cartID, branchID string) Result {
	branchID = strings.TrimSpace(branchID)
	if !s.catalog.HasBranch(branchID) {
		return s.noop(ctx, "branch", cartID)
	}
	return s.mutate(ctx, "branch", cartID, func(st *State) bool {
		if st.BranchID == branchID {
			return false
		}
		st.BranchID = branchID
		return true
	})
}

// SetNotes stores sanitised order-level notes.
func (s *Service) SetNotes(ctx context.Context, cartID, text string) Result {
	notes := SanitizeText(text, MaxOrderNotesLen)
	return s.mutate(ctx, "notes", cartID, func(st *State) bool {
		if st.Notes == notes {
			return false
		}
		st.Notes = notes
		return true
	})
}

func (s *Service) mutate(ctx context.Context, op, cartID string, fn func(*State) bool) Result {
	unlock := s.locks.lock(cartID)
	defer unlock()

	state := s.store.Load(ctx, cartID)
	applied := fn(&state)
	snap := state.Snapshot()
	if s.metrics != nil {
		s.metrics.Mutation(ctx, op, applied)
	}
	if !applied {
		return Result{Snapshot: snap}
	}

	s.store.Save(ctx, cartID, state)
	s.bus.Publish(ctx, Event{CartID: cartID, Origin: OriginFrom(ctx), Snapshot: &snap})
	s.logger.Debug("cart: mutated", zap.String("op", op), zap.String("cart_id", cartID), zap.Stringer("state", state))
	return Result{Snapshot: snap, Applied: true}
}

func (s *Service) noop(ctx context.Context, op, cartID string) Result {
	if s.metrics != nil {
		s.metrics.Mutation(ctx, op, false)
	}
	return Result{Snapshot: s.Snapshot(ctx, cartID)}
}

// claimAdd records an add at now unless one was recorded within the debounce window.
func (s *Service) claimAdd(cartID string, now time.Time) bool {
	s.addMu.Lock()
	defer s.addMu.Unlock()

	if last, ok := s.lastAdd[cartID]; ok && s.debounce > 0 && now.Sub(last) < s.debounce {
		return false
	}
	s.lastAdd[cartID] = now
	if len(s.lastAdd) > 4096 {
		for id, at := range s.lastAdd {
			if now.Sub(at) >= s.debounce {
				delete(s.lastAdd, id)
			}
		}
	}
	return true
}

func setQty(st *State, id string, qty int, placeholder string) bool {
	qty = ClampQty(qty)
	i := st.index(id)
	switch {
	case i < 0 && qty == 0:
		return false
	case i < 0:
		st.Items = append(st.Items, Item{ID: id, Qty: qty, Image: placeholder})
		return true
	case qty == 0:
		st.Items = append(st.Items[:i], st.Items[i+1:]...)
		return true
	case st.Items[i].Qty == qty:
		return false
	default:
		st.Items[i].Qty = qty
		return true
	}
}
