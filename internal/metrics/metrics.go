// Package metrics defines the metrics-sink capability the governance engine
// reports into. The sink is injected at construction so tests can substitute
// a recording or no-op implementation; a failure to record can never fail the
// governed operation.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/veritas-legal/factgate/internal/telemetry"
)

// Sink receives compliance and governance observations.
type Sink interface {
	// CitationCheck records the outcome of one citation policy evaluation.
	CitationCheck(ctx context.Context, passed bool)
	// HallucinationBlock records an AI fact rejected by the citation gate.
	HallucinationBlock(ctx context.Context)
	// SignOff records a sign-off by resulting status.
	SignOff(ctx context.Context, status string)
	// OperationDuration records how long a governance operation took.
	OperationDuration(ctx context.Context, op string, elapsed time.Duration)
}

// Nop discards all observations. Useful as a default and in tests.
type Nop struct{}

func (Nop) CitationCheck(context.Context, bool)                      {}
func (Nop) HallucinationBlock(context.Context)                       {}
func (Nop) SignOff(context.Context, string)                          {}
func (Nop) OperationDuration(context.Context, string, time.Duration) {}

// OTELSink reports observations through the global OpenTelemetry meter.
type OTELSink struct {
	citationChecks     metric.Int64Counter
	hallucinationBlock metric.Int64Counter
	signOffs           metric.Int64Counter
	opDuration         metric.Float64Histogram
}

// NewOTELSink creates a sink backed by the factgate/governance meter.
// Instrument creation errors yield no-op instruments, so recording is
// always safe.
func NewOTELSink() *OTELSink {
	meter := telemetry.Meter("factgate/governance")
	citations, _ := meter.Int64Counter("factgate.citation_checks",
		metric.WithDescription("Citation policy evaluations by result"),
	)
	blocks, _ := meter.Int64Counter("factgate.hallucination_blocks",
		metric.WithDescription("AI facts rejected for failing the citation policy"),
	)
	signOffs, _ := meter.Int64Counter("factgate.sign_offs",
		metric.WithDescription("Fact sign-offs by status"),
	)
	opDur, _ := meter.Float64Histogram("factgate.operation.duration",
		metric.WithDescription("Governance operation duration (ms)"),
		metric.WithUnit("ms"),
	)
	return &OTELSink{
		citationChecks:     citations,
		hallucinationBlock: blocks,
		signOffs:           signOffs,
		opDuration:         opDur,
	}
}

func (s *OTELSink) CitationCheck(ctx context.Context, passed bool) {
	result := "failure"
	if passed {
		result = "success"
	}
	s.citationChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (s *OTELSink) HallucinationBlock(ctx context.Context) {
	s.hallucinationBlock.Add(ctx, 1)
}

func (s *OTELSink) SignOff(ctx context.Context, status string) {
	s.signOffs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (s *OTELSink) OperationDuration(ctx context.Context, op string, elapsed time.Duration) {
	s.opDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(attribute.String("operation", op)))
}
