// Package reporter contains the built-in observers selected by the
// reporters section of the configuration.
package reporter

import (
	"fmt"
	"io"

	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/observer"
)

// New returns the reporter named by spec. out is used by reporters writing
// to standard output.
func New(spec model.ReporterSpec, out io.Writer) (observer.Observer, error) {
	switch spec.Name {
	case model.ReporterLog:
		return NewLog(nil), nil
	case model.ReporterJSON:
		path, err := stringOption(spec.Options, "path")
		if err != nil {
			return nil, err
		}
		return NewJSON(path, out), nil
	default:
		return nil, fmt.Errorf("unknown reporter %q", spec.Name)
	}
}

// All builds the reporters in the order given.
func All(specs []model.ReporterSpec, out io.Writer) ([]observer.Observer, error) {
	ret := make([]observer.Observer, 0, len(specs))
	for _, s := range specs {
		r, err := New(s, out)
		if err != nil {
			return nil, fmt.Errorf("reporter %s: %w", s.Name, err)
		}
		ret = append(ret, r)
	}
	return ret, nil
}

func stringOption(opts map[string]any, key string) (string, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %s must be a string, got %T", key, v)
	}
	return s, nil
}
