package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const scope = "github.com/rentwise/rentwise/internal/occupancy"

// TestPurpose: Validates that instruments can be created from a disabled provider.
// Scope: Unit Test
// Expected: Counter and histogram creation succeed, recording is a no-op, Shutdown returns nil.
// Test Case ID: OBS-03
func TestProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{Enabled: false})
	require.NoError(t, err)
	m := p.Meter(scope)

	counter, err := m.Int64Counter("occupancy.operations")
	require.NoError(t, err)
	hist, err := m.Float64Histogram("occupancy.tx.duration")
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		counter.Add(ctx, 1)
		hist.Record(ctx, 1.5)
	})
	assert.NoError(t, p.Shutdown(ctx))
}

// TestPurpose: Validates that an SDK-backed provider actually records measurements.
// Scope: Unit Test
// Expected: A counter added twice is collected under the occupancy scope with a sum of 3.
// Test Case ID: OBS-04
func TestProvider_RecordsMeasurements(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	p := NewWithReader(reader, nil)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	counter, err := p.Meter(scope).Int64Counter("occupancy.operations")
	require.NoError(t, err)
	counter.Add(ctx, 1)
	counter.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, scope, rm.ScopeMetrics[0].Scope.Name)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	got := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "occupancy.operations", got.Name)
	sum, ok := got.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}
