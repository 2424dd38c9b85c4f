package drawer

import (
	"time"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/format"
	"kahramana.bh/site/internal/order"
	"kahramana.bh/site/internal/site"
)

// ItemView is one rendered cart line.
type ItemView struct {
	ID           string
	Name         string
	Image        string
	UnitPrice    string
	LineTotal    string
	Qty          int
	Notes        string
	CanIncrement bool
}

// BranchOption is one entry of the branch selector.
type BranchOption struct {
	ID       string
	Label    string
	Selected bool
	OpenNow  bool
}

// View is everything the drawer template needs.
type View struct {
	Open      bool
	Empty     bool
	Items     []ItemView
	Qty       int
	Total     string
	Branches  []BranchOption
	BranchID  string
	Notes     string
	Draft     order.Draft
	Delivery  bool
	Cash      bool
	CanSubmit bool
	CanClear  bool

	MaxQty          int
	MaxItemNotesLen int
	MaxNotesLen     int
	MaxNameLen      int
	MaxAddressLen   int
}

// Build renders snap for lang. now decides which branches show as open.
func Build(snap cart.Snapshot, catalog *site.Catalog, lang string, draft order.Draft, state State, now time.Time) View {
	draft = draft.Normalize()
	v := View{
		Open:            state.Open,
		Empty:           len(snap.Items) == 0,
		Qty:             snap.Qty,
		Total:           format.BHD(snap.Total),
		BranchID:        snap.BranchID,
		Notes:           snap.Notes,
		Draft:           draft,
		Delivery:        draft.OrderType == order.Delivery,
		Cash:            draft.Payment == order.Cash,
		MaxQty:          cart.MaxItemQty,
		MaxItemNotesLen: cart.MaxItemNotesLen,
		MaxNotesLen:     cart.MaxOrderNotesLen,
		MaxNameLen:      order.MaxNameLen,
		MaxAddressLen:   order.MaxAddressLen,
	}
	v.CanClear = !v.Empty
	v.CanSubmit = !v.Empty

	placeholder := ""
	if catalog != nil {
		placeholder = catalog.PlaceholderImage()
	}
	for _, it := range snap.Items {
		name := it.Name
		if name == "" {
			name = it.ID
		}
		image := it.Image
		if image == "" {
			image = placeholder
		}
		v.Items = append(v.Items, ItemView{
			ID:           it.ID,
			Name:         name,
			Image:        image,
			UnitPrice:    format.BHD(it.Price),
			LineTotal:    format.BHD(it.LineTotal()),
			Qty:          it.Qty,
			Notes:        it.Notes,
			CanIncrement: it.Qty < cart.MaxItemQty,
		})
	}

	if catalog != nil {
		for _, b := range catalog.Branches() {
			v.Branches = append(v.Branches, BranchOption{
				ID:       b.ID,
				Label:    b.Name.In(lang),
				Selected: b.ID == snap.BranchID,
				OpenNow:  b.IsOpenNow(now),
			})
		}
	}
	return v
}
