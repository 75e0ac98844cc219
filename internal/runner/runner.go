package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/CZERTAINLY/Inspector/internal/log"
	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/observer"
	"github.com/CZERTAINLY/Inspector/internal/report"
	"github.com/CZERTAINLY/Inspector/internal/resource"
	"github.com/CZERTAINLY/Inspector/internal/telemetry"
)

// Inspector inspects a single target. cfg.Resource holds the resource handle
// the inspection must use.
type Inspector interface {
	Inspect(ctx context.Context, id string, cfg model.Config) (model.Inspection, error)
}

type InspectorFunc func(ctx context.Context, id string, cfg model.Config) (model.Inspection, error)

func (f InspectorFunc) Inspect(ctx context.Context, id string, cfg model.Config) (model.Inspection, error) {
	return f(ctx, id, cfg)
}

// Runner executes the lifecycle of one target: notify, resolve the effective
// configuration, inspect, notify again and record the outcome.
type Runner struct {
	opts      model.Options
	inspector Inspector
	resources *resource.Manager
	observer  observer.Observer
	agg       *report.Aggregator
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
}

func New(opts model.Options, inspector Inspector, resources *resource.Manager, obs observer.Observer, agg *report.Aggregator) *Runner {
	return &Runner{
		opts:      opts.Clone(),
		inspector: inspector,
		resources: resources,
		observer:  obs,
		agg:       agg,
		metrics:   telemetry.Noop(),
		tracer:    noop.NewTracerProvider().Tracer("runner"),
	}
}

func (r *Runner) WithTelemetry(metrics *telemetry.Metrics, tracer trace.Tracer) *Runner {
	if metrics != nil {
		r.metrics = metrics
	}
	if tracer != nil {
		r.tracer = tracer
	}
	return r
}

// Run processes target. Failures of the target itself end up in the report;
// the returned error comes from an observer only.
func (r *Runner) Run(ctx context.Context, target model.Target) error {
	id := target.ID
	ctx = log.ContextAttrs(ctx, slog.String("target", id))

	if err := r.observer.Begin(ctx, id); err != nil {
		return err
	}

	ctx, span := r.tracer.Start(ctx, "inspect", trace.WithAttributes(attribute.String("target", id)))
	defer span.End()
	start := time.Now()
	r.metrics.TaskStarted(ctx)

	opts, err := model.Merge(model.Defaults(), &r.opts, target.Overrides)
	if err != nil {
		return r.fail(ctx, span, start, err, id, model.Config{Options: r.opts.Clone()})
	}
	cfg := model.Config{Options: opts}

	if cfg.Isolated() {
		isolated, err := r.resources.SpawnIsolated(ctx)
		if err != nil {
			return r.fail(ctx, span, start, err, id, cfg)
		}
		defer r.resources.Release(ctx, isolated, resource.KindContext)
		cfg.Resource = isolated
	} else {
		cfg.Resource = r.resources.Root()
	}

	inspection, err := r.inspect(ctx, id, cfg)
	if err != nil {
		return r.fail(ctx, span, start, err, id, cfg)
	}

	hookErr := r.observer.Results(ctx, inspection, cfg)
	_, passed := r.agg.Record(id, inspection.Issues, cfg)

	outcome := telemetry.OutcomeFailed
	if passed {
		outcome = telemetry.OutcomePassed
	}
	span.SetAttributes(attribute.Int("findings", len(inspection.Issues)), attribute.Bool("passed", passed))
	r.metrics.TaskCompleted(ctx, outcome, len(inspection.Issues), time.Since(start))
	slog.DebugContext(ctx, "target inspected", "findings", len(inspection.Issues), "passed", passed)
	return hookErr
}

func (r *Runner) fail(ctx context.Context, span trace.Span, start time.Time, err error, id string, cfg model.Config) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	slog.DebugContext(ctx, "target failed", "err", err)

	hookErr := r.observer.Error(ctx, err, id, cfg)
	r.agg.Record(id, []model.Finding{err}, cfg)
	r.metrics.TaskCompleted(ctx, telemetry.OutcomeError, 0, time.Since(start))
	return hookErr
}

func (r *Runner) inspect(ctx context.Context, id string, cfg model.Config) (ret model.Inspection, err error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", model.ErrInspection, p)
		}
	}()
	return r.inspector.Inspect(ctx, id, cfg)
}
