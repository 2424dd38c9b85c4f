// Package health probes the service's dependencies (cart slot backend, change
// broadcaster) for readiness checks.
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// Status values reported per check and overall.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Check describes a dependency probe executed during readiness checks.
type Check struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// Result is the outcome of one probe.
type Result struct {
	Status    string        `json:"status"`
	Detail    string        `json:"detail"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checkedAt"`
}

// Report aggregates all probe results.
type Report struct {
	Status      string            `json:"status"`
	Checks      map[string]Result `json:"checks"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Option customises a Checker.
type Option func(*Checker)

// WithTimeout overrides the default timeout applied when a check omits its own timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		if timeout > 0 {
			c.defaultTimeout = timeout
		}
	}
}

// WithClock injects a custom clock primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Checker) {
		if clock != nil {
			c.now = clock
		}
	}
}

// Checker runs the configured probes concurrently.
type Checker struct {
	checks         []Check
	defaultTimeout time.Duration
	now            func() time.Time
}

// NewChecker validates checks and builds a Checker.
func NewChecker(checks []Check, opts ...Option) (*Checker, error) {
	if len(checks) == 0 {
		return nil, errors.New("health: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health: dependency %s missing check function", check.Name)
		}
	}
	c := &Checker{
		checks:         append([]Check(nil), checks...),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Collect runs every probe and returns the aggregated report. An error probe makes the
// report an error; any other failure only degrades it.
func (c *Checker) Collect(ctx context.Context) Report {
	results := make(map[string]Result, len(c.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range c.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.run(ctx, check)
			mu.Lock()
			results[check.Name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusOK
	for _, res := range results {
		if res.Status == StatusError {
			status = StatusError
			break
		}
		if res.Status != StatusOK {
			status = StatusDegraded
		}
	}
	return Report{Status: status, Checks: results, GeneratedAt: c.now()}
}

func (c *Checker) run(ctx context.Context, check Check) Result {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := c.now()
	err := check.Check(checkCtx)
	end := c.now()

	res := Result{Status: StatusOK, Detail: "ok", Latency: end.Sub(start), CheckedAt: end}
	switch {
	case err == nil && checkCtx.Err() != nil:
		err = checkCtx.Err()
		res.Status, res.Detail = StatusError, err.Error()
	case err == nil:
		return res
	case errors.Is(err, context.Canceled):
		res.Status, res.Detail = StatusError, "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		res.Status, res.Detail = StatusError, "timeout"
	default:
		res.Status, res.Detail = StatusDegraded, err.Error()
	}
	res.Error = err.Error()
	return res
}
