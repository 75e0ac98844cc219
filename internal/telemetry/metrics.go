package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const namespace = "inspector"

// Outcome of a task as recorded in metrics.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

// Metrics holds the instruments of a batch run.
type Metrics struct {
	tasksStarted   metric.Int64Counter
	tasksCompleted metric.Int64Counter
	tasksInFlight  metric.Int64UpDownCounter
	taskDuration   metric.Float64Histogram
	findings       metric.Int64Counter
	launchAttempts metric.Int64Counter
	releaseErrors  metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(Metrics)
	var err error

	if m.tasksStarted, err = meter.Int64Counter(
		"inspector.tasks.started",
		metric.WithDescription("Number of targets started"),
	); err != nil {
		return nil, err
	}

	if m.tasksCompleted, err = meter.Int64Counter(
		"inspector.tasks.completed",
		metric.WithDescription("Number of targets completed, by outcome"),
	); err != nil {
		return nil, err
	}

	if m.tasksInFlight, err = meter.Int64UpDownCounter(
		"inspector.tasks.in_flight",
		metric.WithDescription("Number of targets being inspected"),
	); err != nil {
		return nil, err
	}

	if m.taskDuration, err = meter.Float64Histogram(
		"inspector.tasks.duration",
		metric.WithDescription("Time taken to inspect a target"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.findings, err = meter.Int64Counter(
		"inspector.findings",
		metric.WithDescription("Number of findings reported by the inspector"),
	); err != nil {
		return nil, err
	}

	if m.launchAttempts, err = meter.Int64Counter(
		"inspector.resource.launch_attempts",
		metric.WithDescription("Number of attempts to launch the shared resource"),
	); err != nil {
		return nil, err
	}

	if m.releaseErrors, err = meter.Int64Counter(
		"inspector.resource.release_errors",
		metric.WithDescription("Number of failures closing a resource or an isolated context"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// Noop returns Metrics which record nothing.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) TaskStarted(ctx context.Context) {
	m.tasksStarted.Add(ctx, 1)
	m.tasksInFlight.Add(ctx, 1)
}

func (m *Metrics) TaskCompleted(ctx context.Context, outcome string, findings int, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.tasksInFlight.Add(ctx, -1)
	m.tasksCompleted.Add(ctx, 1, attrs)
	m.taskDuration.Record(ctx, took.Seconds(), attrs)
	if findings > 0 {
		m.findings.Add(ctx, int64(findings))
	}
}

func (m *Metrics) LaunchAttempt(ctx context.Context, ok bool) {
	m.launchAttempts.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

func (m *Metrics) ReleaseError(ctx context.Context, kind string) {
	m.releaseErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
