package cart

import "context"

type originKey struct{}

// WithOrigin tags ctx with the browser tab that triggered a mutation so the event
// stream for that same tab can skip the echo.
func WithOrigin(ctx context.Context, tabID string) context.Context {
	if tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, tabID)
}

// OriginFrom returns the tab id stored by WithOrigin.
func OriginFrom(ctx context.Context) string {
	v, _ := ctx.Value(originKey{}).(string)
	return v
}
