package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type gaugeMeter struct {
	noop.Meter
	name string
	cfg  metric.Int64ObservableGaugeConfig
}

func (m *gaugeMeter) Int64ObservableGauge(name string, opts ...metric.Int64ObservableGaugeOption) (metric.Int64ObservableGauge, error) {
	m.name = name
	m.cfg = metric.NewInt64ObservableGaugeConfig(opts...)
	return noop.Int64ObservableGauge{}, nil
}

type recordingObserver struct {
	noop.Int64Observer
	got int64
}

func (o *recordingObserver) Observe(v int64, _ ...metric.ObserveOption) { o.got = v }

func TestObserveSubscribersReadsCountOnCollection(t *testing.T) {
	meter := &gaugeMeter{}
	n := 0
	if err := ObserveSubscribers(meter, func() int { return n }); err != nil {
		t.Fatalf("register gauge: %v", err)
	}
	if meter.name != "cart.stream.subscribers" {
		t.Fatalf("unexpected instrument %q", meter.name)
	}
	callbacks := meter.cfg.Callbacks()
	if len(callbacks) != 1 {
		t.Fatalf("expected one callback, got %d", len(callbacks))
	}

	n = 3
	obs := &recordingObserver{}
	if err := callbacks[0](context.Background(), obs); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if obs.got != 3 {
		t.Fatalf("expected 3 subscribers, got %d", obs.got)
	}
}
