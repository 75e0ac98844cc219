package observer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/CZERTAINLY/Inspector/internal/model"
)

// Hub fans a notification out to the registered observers in registration
// order. Notifications of different targets are delivered concurrently, so
// observers must be safe for concurrent use.
type Hub struct {
	policy    model.HookPolicy
	observers []Observer
	detached  []atomic.Bool
}

func NewHub(policy model.HookPolicy, observers ...Observer) *Hub {
	if policy == "" {
		policy = model.HookAbort
	}
	return &Hub{
		policy:    policy,
		observers: observers,
		detached:  make([]atomic.Bool, len(observers)),
	}
}

func (h *Hub) BeforeAll(ctx context.Context, targets []model.Target) error {
	return h.notify(ctx, "beforeAll", func(o Observer) error {
		return o.BeforeAll(ctx, targets)
	})
}

func (h *Hub) Begin(ctx context.Context, id string) error {
	return h.notify(ctx, "begin", func(o Observer) error {
		return o.Begin(ctx, id)
	})
}

func (h *Hub) Results(ctx context.Context, inspection model.Inspection, cfg model.Config) error {
	return h.notify(ctx, "results", func(o Observer) error {
		return o.Results(ctx, inspection, cfg)
	})
}

func (h *Hub) Error(ctx context.Context, err error, id string, cfg model.Config) error {
	return h.notify(ctx, "error", func(o Observer) error {
		return o.Error(ctx, err, id, cfg)
	})
}

func (h *Hub) AfterAll(ctx context.Context, report *model.Report, opts model.Options) error {
	return h.notify(ctx, "afterAll", func(o Observer) error {
		return o.AfterAll(ctx, report, opts)
	})
}

func (h *Hub) notify(ctx context.Context, hook string, call func(Observer) error) error {
	for i, o := range h.observers {
		if h.detached[i].Load() {
			continue
		}
		err := safeCall(o, call)
		if err == nil {
			continue
		}
		err = fmt.Errorf("%w: %s: observer %d (%T): %w", model.ErrObserverHook, hook, i, o, err)
		switch h.policy {
		case model.HookLog:
			slog.WarnContext(ctx, "observer hook failed", "hook", hook, "err", err)
		case model.HookDetach:
			slog.WarnContext(ctx, "observer hook failed, detaching", "hook", hook, "err", err)
			h.detached[i].Store(true)
		default:
			return err
		}
	}
	return nil
}

func safeCall(o Observer, call func(Observer) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return call(o)
}

var _ Observer = (*Hub)(nil)
