package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "kahramana.bh/site/cart"

// CartMetrics records cart activity. Counters are no-ops until a MeterProvider is installed.
type CartMetrics struct {
	mutations   metric.Int64Counter
	submissions metric.Int64Counter
}

// NewCartMetrics builds counters from the supplied meter, or the global one when nil.
func NewCartMetrics(meter metric.Meter) (*CartMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	mutations, err := meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutation calls by operation"),
	)
	if err != nil {
		return nil, err
	}
	submissions, err := meter.Int64Counter("cart.submissions",
		metric.WithDescription("Order submission attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &CartMetrics{mutations: mutations, submissions: submissions}, nil
}

// Mutation counts one cart operation; applied is false for debounced or no-op calls.
func (m *CartMetrics) Mutation(ctx context.Context, op string, applied bool) {
	if m == nil {
		return
	}
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("applied", applied),
	))
}

// Submission counts one order submission attempt.
func (m *CartMetrics) Submission(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// ObserveSubscribers reports the live change-stream subscriptions as a gauge read from
// count at collection time.
func ObserveSubscribers(meter metric.Meter, count func() int) error {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	_, err := meter.Int64ObservableGauge("cart.stream.subscribers",
		metric.WithDescription("Open cart change streams"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}),
	)
	return err
}
