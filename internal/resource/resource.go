// Package resource manages the lifecycle of the expensive resource shared by
// all tasks of a batch and of the isolated contexts spawned from it.
package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/telemetry"
)

// Provider launches shared resources.
type Provider interface {
	Launch(ctx context.Context, cfg model.Launch) (Resource, error)
}

// Resource is the shared root resource. Tasks either use it directly or work
// in an isolated context spawned from it.
type Resource interface {
	SpawnIsolated(ctx context.Context) (Context, error)
	io.Closer
}

// Context is an isolated context of a Resource. It shares no state with other
// contexts of the same resource.
type Context interface {
	io.Closer
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(ctx context.Context, cfg model.Launch) (Resource, error)

func (f ProviderFunc) Launch(ctx context.Context, cfg model.Launch) (Resource, error) {
	return f(ctx, cfg)
}

const (
	KindRoot    = "root"
	KindContext = "context"
)

// launchRetries is the number of relaunches after a failed first launch.
const launchRetries = 1

// Manager owns the root resource of a batch.
type Manager struct {
	provider Provider
	metrics  *telemetry.Metrics

	root      Resource
	owned     bool
	closeOnce sync.Once
}

func NewManager(provider Provider, metrics *telemetry.Metrics) *Manager {
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	return &Manager{
		provider: provider,
		metrics:  metrics,
	}
}

// Acquire launches the root resource. A failed launch is retried once with the
// same configuration; when the retry fails too, the returned error wraps
// model.ErrResourceUnavailable.
func (m *Manager) Acquire(ctx context.Context, cfg model.Launch) (Resource, error) {
	var attempt int
	var root Resource
	op := func() error {
		attempt++
		r, err := m.provider.Launch(ctx, cfg)
		m.metrics.LaunchAttempt(ctx, err == nil)
		if err != nil {
			return err
		}
		root = r
		return nil
	}
	notify := func(err error, _ time.Duration) {
		slog.WarnContext(ctx, "launching resource failed, retrying", "attempt", attempt, "err", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, launchRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		slog.ErrorContext(ctx, "launching resource failed", "attempts", attempt, "err", err)
		return nil, fmt.Errorf("%w after %d attempts: %w", model.ErrResourceUnavailable, attempt, err)
	}

	slog.DebugContext(ctx, "resource launched", "attempts", attempt)
	m.root = root
	m.owned = true
	return root, nil
}

// Adopt uses a resource launched by the caller as the root. An adopted
// resource is never closed by the Manager.
func (m *Manager) Adopt(root Resource) Resource {
	m.root = root
	m.owned = false
	return root
}

func (m *Manager) Root() Resource {
	return m.root
}

// SpawnIsolated creates a new isolated context of the root resource. The
// returned error wraps model.ErrIsolatedContextUnavailable.
func (m *Manager) SpawnIsolated(ctx context.Context) (Context, error) {
	if m.root == nil {
		return nil, fmt.Errorf("%w: no root resource", model.ErrIsolatedContextUnavailable)
	}
	c, err := m.root.SpawnIsolated(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrIsolatedContextUnavailable, err)
	}
	return c, nil
}

// Release closes c. A failure is logged and counted, never returned.
func (m *Manager) Release(ctx context.Context, c io.Closer, kind string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.WarnContext(ctx, "releasing resource failed", "kind", kind, "err", err)
		m.metrics.ReleaseError(ctx, kind)
	}
}

// Close releases the root resource if the Manager launched it. It is safe to
// call more than once; only the first call has an effect.
func (m *Manager) Close(ctx context.Context) {
	m.closeOnce.Do(func() {
		if m.root == nil || !m.owned {
			return
		}
		m.Release(ctx, m.root, KindRoot)
	})
}
