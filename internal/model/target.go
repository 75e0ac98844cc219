package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Target is one unit of work of a batch. It is either a bare identifier or
// an identifier with option overrides; both forms are resolved once, when the
// target is created or decoded.
type Target struct {
	ID        string `validate:"required"`
	Overrides *Options
}

func Simple(id string) Target {
	return Target{ID: id}
}

func WithOverrides(id string, overrides Options) Target {
	o := overrides.Clone()
	return Target{ID: id, Overrides: &o}
}

func Targets(ids ...string) []Target {
	ret := make([]Target, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, Simple(id))
	}
	return ret
}

func (t Target) String() string {
	return t.ID
}

// UnmarshalYAML accepts either a bare identifier or a mapping with a url (or
// id) key and option overrides:
//
//	targets:
//	  - https://example.com
//	  - url: https://example.com/login
//	    threshold: 2
func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var id string
		if err := node.Decode(&id); err != nil {
			return err
		}
		*t = Simple(id)
		return nil
	case yaml.MappingNode:
		var o Options
		if err := node.Decode(&o); err != nil {
			return err
		}
		id, err := popString(o.Extra, "url", "id")
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if len(o.Extra) == 0 {
			o.Extra = nil
		}
		*t = Target{ID: id, Overrides: &o}
		return nil
	default:
		return fmt.Errorf("line %d: target must be a string or a mapping", node.Line)
	}
}

func popString(m map[string]any, keys ...string) (string, error) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		delete(m, k)
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("target %s must be a string, got %T", k, v)
		}
		return s, nil
	}
	return "", fmt.Errorf("target mapping requires one of %v", keys)
}
