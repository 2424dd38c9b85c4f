package broadcast

import "context"

// Local is the single-instance transport: nothing leaves the process.
type Local struct{}

// NewLocal returns a no-op broadcaster.
func NewLocal() *Local { return &Local{} }

// Publish discards the change.
func (*Local) Publish(context.Context, Change) error { return nil }

// Run waits for ctx.
func (*Local) Run(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

// Ping always succeeds.
func (*Local) Ping(context.Context) error { return nil }

// Close is a no-op.
func (*Local) Close() error { return nil }
