package occupancy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// instruments holds the metrics recorded by the service
type instruments struct {
	operations  metric.Int64Counter
	repairs     metric.Int64Counter
	divergences metric.Int64Counter
	txDuration  metric.Float64Histogram
}

func newInstruments(m metric.Meter) *instruments {
	if m == nil {
		m = noop.NewMeterProvider().Meter("occupancy")
	}
	inst, err := buildInstruments(m)
	if err != nil {
		// fall back to no-op instruments
		inst, _ = buildInstruments(noop.NewMeterProvider().Meter("occupancy"))
	}
	return inst
}

func buildInstruments(m metric.Meter) (*instruments, error) {
	operations, err := m.Int64Counter("occupancy.operations",
		metric.WithDescription("Assignment operations by kind and result"))
	if err != nil {
		return nil, err
	}
	repairs, err := m.Int64Counter("occupancy.repairs",
		metric.WithDescription("Occupancy pointers and leases repaired by maintenance jobs"))
	if err != nil {
		return nil, err
	}
	divergences, err := m.Int64Counter("occupancy.divergences",
		metric.WithDescription("Divergences detected between leases and occupancy pointers"))
	if err != nil {
		return nil, err
	}
	txDuration, err := m.Float64Histogram("occupancy.tx.duration",
		metric.WithDescription("Duration of assignment transactions"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &instruments{
		operations:  operations,
		repairs:     repairs,
		divergences: divergences,
		txDuration:  txDuration,
	}, nil
}

func (i *instruments) recordOperation(ctx context.Context, op string, err error) {
	i.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", resultLabel(err)),
	))
}

func (i *instruments) recordRepairs(ctx context.Context, job string, n int) {
	if n <= 0 {
		return
	}
	i.repairs.Add(ctx, int64(n), metric.WithAttributes(attribute.String("job", job)))
}

func (i *instruments) recordDivergence(ctx context.Context, kind DivergenceKind) {
	i.divergences.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (i *instruments) recordTx(ctx context.Context, op string, d time.Duration) {
	i.txDuration.Record(ctx, float64(d.Microseconds())/1000.0, metric.WithAttributes(attribute.String("op", op)))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsNotFound(err):
		return "not_found"
	case IsValidation(err):
		return "validation"
	case IsConflict(err):
		return "conflict"
	default:
		return "transaction"
	}
}
