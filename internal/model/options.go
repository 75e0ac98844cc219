package model

import (
	"fmt"
	"maps"
	"time"

	"dario.cat/mergo"
)

// Options are the recognized knobs of a batch. The same type carries the
// built-in defaults, the batch level options and per target overrides.
// Zero values and nil pointers mean "not set".
type Options struct {
	// Concurrency is the maximum number of targets inspected at once.
	Concurrency int `yaml:"concurrency,omitempty" validate:"omitempty,min=1"`
	// UseIsolatedContext gives every task its own isolated context of the
	// shared resource instead of the resource itself.
	UseIsolatedContext *bool `yaml:"useIsolatedContext,omitempty"`
	// Threshold is the number of findings a target may have and still pass.
	Threshold *int `yaml:"threshold,omitempty" validate:"omitempty,min=0"`
	// Timeout bounds a single inspection. Zero waits forever.
	Timeout time.Duration `yaml:"timeout,omitempty" validate:"min=0"`
	// Extra is passed through to the inspector untouched.
	Extra map[string]any `yaml:",inline"`
}

// Config is the effective configuration of one task.
type Config struct {
	Options
	// Resource is the handle the inspector works with: the shared root
	// resource or the isolated context spawned for the task.
	Resource any
}

func Defaults() Options {
	return Options{
		Concurrency:        1,
		UseIsolatedContext: Ptr(true),
	}
}

func Ptr[T any](v T) *T {
	return &v
}

// Isolated reports whether the task gets its own isolated context. Unset
// means yes.
func (o Options) Isolated() bool {
	return o.UseIsolatedContext == nil || *o.UseIsolatedContext
}

// ThresholdValue returns the threshold and whether it was set.
func (o Options) ThresholdValue() (int, bool) {
	if o.Threshold == nil {
		return 0, false
	}
	return *o.Threshold, true
}

// Clone returns a deep copy, so the result can be modified without touching o.
func (o Options) Clone() Options {
	ret := o
	if o.UseIsolatedContext != nil {
		ret.UseIsolatedContext = Ptr(*o.UseIsolatedContext)
	}
	if o.Threshold != nil {
		ret.Threshold = Ptr(*o.Threshold)
	}
	ret.Extra = cloneMap(o.Extra)
	return ret
}

// Merge layers the given options over base, each layer taking precedence over
// the previous ones. Extra maps are merged recursively. Neither base nor any
// layer is modified.
func Merge(base Options, layers ...*Options) (Options, error) {
	out := base.Clone()
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		src := layer.Clone()
		if src.Concurrency != 0 {
			out.Concurrency = src.Concurrency
		}
		if src.UseIsolatedContext != nil {
			out.UseIsolatedContext = src.UseIsolatedContext
		}
		if src.Threshold != nil {
			out.Threshold = src.Threshold
		}
		if src.Timeout != 0 {
			out.Timeout = src.Timeout
		}
		if len(src.Extra) == 0 {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(src.Extra))
		}
		if err := mergo.Merge(&out.Extra, src.Extra, mergo.WithOverride); err != nil {
			return Options{}, fmt.Errorf("merging options: %w", err)
		}
	}
	return out, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	ret := maps.Clone(m)
	for k, v := range ret {
		ret[k] = cloneValue(v)
	}
	return ret
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		ret := make([]any, len(x))
		for i := range x {
			ret[i] = cloneValue(x[i])
		}
		return ret
	default:
		return v
	}
}
