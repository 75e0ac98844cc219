// Package batch runs a batch of inspections against a shared resource.
package batch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/CZERTAINLY/Inspector/internal/log"
	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/observer"
	"github.com/CZERTAINLY/Inspector/internal/parallel"
	"github.com/CZERTAINLY/Inspector/internal/report"
	"github.com/CZERTAINLY/Inspector/internal/resource"
	"github.com/CZERTAINLY/Inspector/internal/runner"
	"github.com/CZERTAINLY/Inspector/internal/telemetry"
)

// Deps are the collaborators of a batch run.
type Deps struct {
	Inspector runner.Inspector
	Provider  resource.Provider
	// Root, when set, is used instead of launching a resource through
	// Provider. It is left open when the batch ends.
	Root      resource.Resource
	Launch    model.Launch
	Observers []observer.Observer
	// HookPolicy defaults to model.HookAbort.
	HookPolicy model.HookPolicy
	Metrics    *telemetry.Metrics
	Tracer     trace.Tracer
}

// Run inspects every target with at most opts.Concurrency targets in flight
// and returns the aggregated report.
//
// Per-target failures are part of the report. Run itself fails when the
// shared resource can't be launched, when an observer fails under the abort
// policy or when ctx is canceled.
func Run(ctx context.Context, targets []model.Target, opts model.Options, deps Deps) (*model.Report, error) {
	runID := uuid.NewString()
	ctx = log.ContextAttrs(ctx, slog.String("run_id", runID))

	batchOpts, err := model.Merge(model.Defaults(), &opts)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateOptions(batchOpts); err != nil {
		return nil, err
	}
	if deps.Inspector == nil {
		return nil, errors.New("batch: no inspector")
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.Noop()
	}
	targets = append([]model.Target(nil), targets...)

	hub := observer.NewHub(deps.HookPolicy, deps.Observers...)
	resources := resource.NewManager(deps.Provider, deps.Metrics)
	if deps.Root != nil {
		resources.Adopt(deps.Root)
	} else {
		if deps.Provider == nil {
			return nil, errors.New("batch: no resource provider")
		}
		if _, err := resources.Acquire(ctx, deps.Launch); err != nil {
			return nil, err
		}
	}
	defer resources.Close(ctx)

	slog.InfoContext(ctx, "batch started", "targets", len(targets), "concurrency", batchOpts.Concurrency)
	if err := hub.BeforeAll(ctx, targets); err != nil {
		return nil, err
	}

	agg := report.NewAggregator(len(targets))
	run := runner.New(opts, deps.Inspector, resources, hub, agg).WithTelemetry(deps.Metrics, deps.Tracer)

	queue := parallel.NewQueue(batchOpts.Concurrency, run.Run)
	queue.OnDrain(func() { resources.Close(ctx) })
	if err := queue.Run(ctx, targets); err != nil {
		return nil, err
	}

	final := agg.Report()
	stats := queue.Stats()
	slog.InfoContext(ctx, "batch finished",
		"total", final.Total,
		"passes", final.Passes,
		"errors", final.Errors,
		"max_in_flight", stats.MaxInFlight,
	)

	if err := hub.AfterAll(ctx, final.Clone(), batchOpts); err != nil {
		return nil, err
	}
	return final, nil
}
