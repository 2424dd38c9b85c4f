package order

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/format"
)

type labels struct {
	Header    string
	OrderID   string
	Branch    string
	Note      string
	Total     string
	Name      string
	Address   string
	OrderType string
	Payment   string
	Notes     string
	Closing   string
	Types     map[OrderType]string
	Payments  map[Payment]string
}

var messageLabels = map[string]labels{
	"en": {
		Header:    "New order from website",
		OrderID:   "Order: ",
		Branch:    "Branch: ",
		Note:      "Note: ",
		Total:     "Total: ",
		Name:      "Name: ",
		Address:   "Address: ",
		OrderType: "Order type: ",
		Payment:   "Payment: ",
		Notes:     "Notes:",
		Closing:   "Thank you!",
		Types:     map[OrderType]string{Delivery: "Delivery", Pickup: "Pickup"},
		Payments:  map[Payment]string{Cash: "Cash", Benefit: "BenefitPay"},
	},
	"ar": {
		Header:    "طلب جديد من الموقع",
		OrderID:   "رقم الطلب: ",
		Branch:    "الفرع: ",
		Note:      "ملاحظة: ",
		Total:     "الإجمالي: ",
		Name:      "الاسم: ",
		Address:   "العنوان: ",
		OrderType: "نوع الطلب: ",
		Payment:   "الدفع: ",
		Notes:     "ملاحظات:",
		Closing:   "شكراً لكم!",
		Types:     map[OrderType]string{Delivery: "توصيل", Pickup: "استلام من الفرع"},
		Payments:  map[Payment]string{Cash: "نقداً", Benefit: "بنفت باي"},
	},
}

func labelsFor(lang string) labels {
	if l, ok := messageLabels[strings.ToLower(lang)]; ok {
		return l
	}
	return messageLabels["ar"]
}

// BranchLabeler resolves a branch id to its display name.
type BranchLabeler interface {
	BranchLabel(id, lang string) string
}

// Message is a formatted order.
type Message struct {
	ID    string
	Lang  string
	Lines []string
	Total decimal.Decimal
}

// Text joins the lines with newlines.
func (m Message) Text() string { return strings.Join(m.Lines, "\n") }

// Formatter renders carts into order messages.
type Formatter struct {
	branches BranchLabeler
	nextID   func() string
}

// NewFormatter builds a Formatter. A nil nextID uses a default IDGenerator.
func NewFormatter(branches BranchLabeler, nextID func() string) *Formatter {
	if nextID == nil {
		nextID = NewIDGenerator(nil, nil).Next
	}
	return &Formatter{branches: branches, nextID: nextID}
}

// Format builds the message for state and draft in lang. Free text is re-sanitised so a
// note can never start a new line or forge an item bullet.
func (f *Formatter) Format(state cart.State, d Draft, lang string) Message {
	l := labelsFor(lang)
	d = d.Normalize()

	branch := state.BranchID
	if f.branches != nil {
		branch = f.branches.BranchLabel(state.BranchID, lang)
	}

	msg := Message{ID: f.nextID(), Lang: lang, Total: state.Total()}
	add := func(line string) { msg.Lines = append(msg.Lines, line) }

	add(l.Header)
	add(l.OrderID + msg.ID)
	add(l.Branch + branch)
	add("")

	for _, it := range state.Items {
		name := cart.SanitizeText(it.Name, 0)
		if name == "" {
			name = it.ID
		}
		var b strings.Builder
		b.WriteString("• ")
		b.WriteString(name)
		b.WriteString(" × ")
		b.WriteString(strconv.Itoa(it.Qty))
		b.WriteString(" @ ")
		b.WriteString(format.BHD(it.Price))
		b.WriteString(" — ")
		b.WriteString(format.Price(it.LineTotal()))
		add(b.String())
		if note := cart.SanitizeText(it.Notes, cart.MaxItemNotesLen); note != "" {
			add("  ↳ " + l.Note + note)
		}
	}

	add("")
	add(l.Total + format.Price(msg.Total))
	add("")
	add(l.Name + d.Name)
	add(l.Address + d.Address)
	add(l.OrderType + l.Types[d.OrderType])
	add(l.Payment + l.Payments[d.Payment])

	if notes := cart.SanitizeText(state.Notes, cart.MaxOrderNotesLen); notes != "" {
		add("")
		add(l.Notes)
		add(notes)
	}

	add("")
	add(l.Closing)
	return msg
}
