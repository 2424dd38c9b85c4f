package order

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/site"
)

const deepLinkBase = "https://wa.me/"

// ErrNoRecipient is returned when no contact number is configured for the branch.
var ErrNoRecipient = errors.New("order: no recipient number")

// DeepLink builds the chat link for digits with text pre-filled.
func DeepLink(digits, text string) (string, error) {
	digits = site.Digits(digits)
	if digits == "" {
		return "", ErrNoRecipient
	}
	return deepLinkBase + digits + "?text=" + encodeURIComponent(text), nil
}

// encodeURIComponent escapes spaces as %20 rather than "+".
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Catalog is the site data the dispatcher needs.
type Catalog interface {
	BranchChecker
	BranchLabeler
	ContactDigits(branchID string) string
}

// SubmissionRecorder observes submission outcomes, typically for metrics.
type SubmissionRecorder interface {
	Submission(ctx context.Context, outcome string)
}

// Submission is a validated, formatted order ready to open.
type Submission struct {
	Message  Message
	BranchID string
	To       string
	URL      string
}

// Dispatcher validates a cart and draft, formats the message and addresses it to the
// selected branch. Opening the link is left to the client; delivery is not tracked.
type Dispatcher struct {
	catalog   Catalog
	formatter *Formatter
	metrics   SubmissionRecorder
	logger    *zap.Logger
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(catalog Catalog, formatter *Formatter, metrics SubmissionRecorder, logger *zap.Logger) (*Dispatcher, error) {
	if catalog == nil {
		return nil, errors.New("order dispatcher: catalog is required")
	}
	if formatter == nil {
		formatter = NewFormatter(catalog, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{catalog: catalog, formatter: formatter, metrics: metrics, logger: logger}, nil
}

// Prepare returns the submission or the first validation error. Nothing is produced on
// failure.
func (d *Dispatcher) Prepare(ctx context.Context, state cart.State, draft Draft, lang string) (Submission, error) {
	draft = draft.Normalize()
	if err := Validate(state, draft, d.catalog); err != nil {
		d.record(ctx, Outcome(err))
		return Submission{}, err
	}

	msg := d.formatter.Format(state, draft, lang)
	to := d.catalog.ContactDigits(state.BranchID)
	link, err := DeepLink(to, msg.Text())
	if err != nil {
		d.record(ctx, "no_recipient")
		return Submission{}, err
	}

	d.record(ctx, Outcome(nil))
	d.logger.Info("order: prepared",
		zap.String("order_id", msg.ID),
		zap.String("branch_id", state.BranchID),
		zap.Int("items", len(state.Items)),
		zap.String("total", msg.Total.StringFixed(3)),
	)
	return Submission{Message: msg, BranchID: state.BranchID, To: to, URL: link}, nil
}

func (d *Dispatcher) record(ctx context.Context, outcome string) {
	if d.metrics != nil {
		d.metrics.Submission(ctx, outcome)
	}
}
