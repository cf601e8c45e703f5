package core

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/otterscale/otterscale-watch/internal/core"

// WatchMetrics records watch stream activity through an OpenTelemetry
// meter. A nil *WatchMetrics is valid and records nothing.
type WatchMetrics struct {
	events   metric.Int64Counter
	connects metric.Int64Counter
	failures metric.Int64Counter
}

// NewWatchMetrics creates the watch counters on the given provider.
// When mp is nil the global provider is used.
func NewWatchMetrics(mp metric.MeterProvider) (*WatchMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	events, err := meter.Int64Counter("otterscale.watch.events",
		metric.WithDescription("Data events delivered by watch streams."))
	if err != nil {
		return nil, err
	}

	connects, err := meter.Int64Counter("otterscale.watch.connects",
		metric.WithDescription("Watch stream connection attempts."))
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("otterscale.watch.failures",
		metric.WithDescription("Watch stream failures that scheduled a retry."))
	if err != nil {
		return nil, err
	}

	return &WatchMetrics{
		events:   events,
		connects: connects,
		failures: failures,
	}, nil
}

func (m *WatchMetrics) event(t WatchEventType) {
	if m == nil {
		return
	}
	m.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", string(t))))
}

func (m *WatchMetrics) connect() {
	if m == nil {
		return
	}
	m.connects.Add(context.Background(), 1)
}

func (m *WatchMetrics) failure() {
	if m == nil {
		return
	}
	m.failures.Add(context.Background(), 1)
}
