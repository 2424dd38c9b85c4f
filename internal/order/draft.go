// Package order turns a cart into a chat order message and a deep link addressed to the
// selected branch.
package order

import (
	"errors"
	"strings"

	"kahramana.bh/site/internal/cart"
)

// OrderType is the fulfilment mode chosen in the drawer.
type OrderType string

const (
	Delivery OrderType = "delivery"
	Pickup   OrderType = "pickup"
)

// Payment is the payment method chosen in the drawer.
type Payment string

const (
	Cash    Payment = "cash"
	Benefit Payment = "benefit"
)

const (
	MaxNameLen    = 80
	MaxAddressLen = 300
)

var (
	ErrEmptyCart      = errors.New("order: cart is empty")
	ErrMissingName    = errors.New("order: customer name is required")
	ErrMissingAddress = errors.New("order: address is required")
	ErrMissingBranch  = errors.New("order: branch is required")
)

// ParseOrderType maps form input to an OrderType, defaulting to delivery.
func ParseOrderType(s string) OrderType {
	if OrderType(strings.ToLower(strings.TrimSpace(s))) == Pickup {
		return Pickup
	}
	return Delivery
}

// ParsePayment maps form input to a Payment, defaulting to cash.
func ParsePayment(s string) Payment {
	if Payment(strings.ToLower(strings.TrimSpace(s))) == Benefit {
		return Benefit
	}
	return Cash
}

// Draft holds the submission-only fields collected by the drawer form.
type Draft struct {
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	OrderType OrderType `json:"orderType"`
	Payment   Payment   `json:"payment"`
}

// Normalize sanitises free text and fills defaults. It is idempotent.
func (d Draft) Normalize() Draft {
	return Draft{
		Name:      cart.SanitizeText(d.Name, MaxNameLen),
		Address:   cart.SanitizeText(d.Address, MaxAddressLen),
		OrderType: ParseOrderType(string(d.OrderType)),
		Payment:   ParsePayment(string(d.Payment)),
	}
}

// BranchChecker reports whether a branch id is known.
type BranchChecker interface {
	HasBranch(id string) bool
}

// Validate checks the preconditions for dispatch and returns the first violation in
// the order: empty cart, name, address, branch.
func Validate(state cart.State, d Draft, branches BranchChecker) error {
	switch {
	case state.Empty():
		return ErrEmptyCart
	case strings.TrimSpace(d.Name) == "":
		return ErrMissingName
	case strings.TrimSpace(d.Address) == "":
		return ErrMissingAddress
	case strings.TrimSpace(state.BranchID) == "" || (branches != nil && !branches.HasBranch(state.BranchID)):
		return ErrMissingBranch
	}
	return nil
}

// Outcome names a validation result for metrics and notices.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrMissingName):
		return "missing_name"
	case errors.Is(err, ErrMissingAddress):
		return "missing_address"
	case errors.Is(err, ErrMissingBranch):
		return "missing_branch"
	default:
		return "error"
	}
}
