// Package observer defines the hooks a batch run notifies and the Hub which
// dispatches them.
package observer

import (
	"context"

	"github.com/CZERTAINLY/Inspector/internal/model"
)

// Observer receives lifecycle notifications of a batch run. Hooks of one
// target are called in order, but hooks of different targets may overlap, so
// implementations must be safe for concurrent use. A returned error is handled
// by the Hub's policy.
type Observer interface {
	// BeforeAll is called once, after the shared resource is up and before
	// any target starts.
	BeforeAll(ctx context.Context, targets []model.Target) error
	// Begin is called when a target starts.
	Begin(ctx context.Context, id string) error
	// Results is called when an inspection succeeded.
	Results(ctx context.Context, inspection model.Inspection, cfg model.Config) error
	// Error is called when a target failed.
	Error(ctx context.Context, err error, id string, cfg model.Config) error
	// AfterAll is called once with the final report, after every target is
	// done and the shared resource was released.
	AfterAll(ctx context.Context, report *model.Report, opts model.Options) error
}

// Base implements every hook as a no-op. Embed it to implement only the hooks
// of interest.
type Base struct{}

func (Base) BeforeAll(context.Context, []model.Target) error               { return nil }
func (Base) Begin(context.Context, string) error                           { return nil }
func (Base) Results(context.Context, model.Inspection, model.Config) error { return nil }
func (Base) Error(context.Context, error, string, model.Config) error      { return nil }
func (Base) AfterAll(context.Context, *model.Report, model.Options) error  { return nil }

var _ Observer = Base{}
