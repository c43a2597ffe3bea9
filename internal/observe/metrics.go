// Package observe wires OpenTelemetry metrics and the zap logger.
//
// Metrics are recorded through the OTel metrics API and exported for
// Prometheus scraping by [InitProvider]. Tests should build a [Metrics] with
// [NewMetrics] over a ManualReader-backed provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/zhouzirui/lowerlands/backend"

// Turn outcomes recorded on the turns counter.
const (
	OutcomeOK              = "ok"
	OutcomeRepaired        = "repaired"
	OutcomeEmpty           = "empty"
	OutcomeUpstreamFailure = "upstream_failure"
)

// Metrics holds the turn engine instruments. A nil *Metrics records nothing.
type Metrics struct {
	// Turns counts finished turns by outcome.
	Turns metric.Int64Counter

	// CompletionDuration tracks completion service latency, status ok|error.
	CompletionDuration metric.Float64Histogram

	// PersistFailures counts turn pairs that could not be stored.
	PersistFailures metric.Int64Counter
}

var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var (
		met = &Metrics{}
		err error
	)

	if met.Turns, err = m.Int64Counter("lowerlands.turns",
		metric.WithDescription("Finished game turns by outcome."),
	); err != nil {
		return nil, err
	}
	if met.CompletionDuration, err = m.Float64Histogram("lowerlands.completion.duration",
		metric.WithDescription("Latency of the completion service call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PersistFailures, err = m.Int64Counter("lowerlands.turns.persist_failures",
		metric.WithDescription("Turn pairs that failed to persist."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordTurn counts one finished turn.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// ObserveCompletion records the latency of one completion call.
func (m *Metrics) ObserveCompletion(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CompletionDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordPersistFailure counts one failed turn write.
func (m *Metrics) RecordPersistFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.PersistFailures.Add(ctx, 1)
}
