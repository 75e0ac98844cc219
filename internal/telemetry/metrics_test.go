package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/telemetry"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := telemetry.NewMetrics(mp)
	require.NoError(t, err)

	m.TaskStarted(ctx)
	m.TaskStarted(ctx)
	m.TaskCompleted(ctx, telemetry.OutcomePassed, 0, time.Second)
	m.TaskCompleted(ctx, telemetry.OutcomeFailed, 3, time.Second)
	m.LaunchAttempt(ctx, false)
	m.LaunchAttempt(ctx, true)
	m.ReleaseError(ctx, "context")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := make(map[string]int64)
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if s, ok := md.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range s.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
	}
	require.Equal(t, int64(2), sums["inspector.tasks.started"])
	require.Equal(t, int64(2), sums["inspector.tasks.completed"])
	require.Equal(t, int64(0), sums["inspector.tasks.in_flight"])
	require.Equal(t, int64(3), sums["inspector.findings"])
	require.Equal(t, int64(2), sums["inspector.resource.launch_attempts"])
	require.Equal(t, int64(1), sums["inspector.resource.release_errors"])
}

func TestSetupNoop(t *testing.T) {
	t.Parallel()
	p, err := telemetry.Setup(t.Context(), model.Telemetry{}, "test")
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())
	require.NotNil(t, telemetry.Noop())
	require.NoError(t, p.Shutdown(t.Context()))
}
