package model

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/Inspector/internal/log"
)

// HookPolicy says what happens when an observer hook fails.
type HookPolicy string

const (
	// HookAbort stops the batch on the first failing hook.
	HookAbort HookPolicy = "abort"
	// HookLog logs the failure and carries on with the next observer.
	HookLog HookPolicy = "log"
	// HookDetach logs the failure and stops notifying that observer.
	HookDetach HookPolicy = "detach"
)

const (
	ReporterLog  = "log"
	ReporterJSON = "json"
)

// File is the content of an inspector.yaml file.
type File struct {
	Defaults   Options        `yaml:"defaults"`
	Targets    []Target       `yaml:"targets" validate:"dive"`
	URLs       []Target       `yaml:"urls" validate:"dive"` // alias of targets
	Reporters  []ReporterSpec `yaml:"reporters" validate:"dive"`
	HookPolicy HookPolicy     `yaml:"hookPolicy,omitempty" validate:"omitempty,oneof=abort log detach"`
	Launch     Launch         `yaml:"launch"`
	Sitemap    *Sitemap       `yaml:"sitemap,omitempty"`
	Log        log.Config     `yaml:"log"`
	Telemetry  Telemetry      `yaml:"telemetry"`
}

// Launch configures the shared resource.
type Launch struct {
	UserAgent         string        `yaml:"userAgent,omitempty"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond,omitempty" validate:"min=0"`
	Burst             int           `yaml:"burst,omitempty" validate:"min=0"`
	Timeout           time.Duration `yaml:"timeout,omitempty" validate:"min=0"`
	// MaxBodyBytes caps the size of a fetched document, 0 means 16 MiB.
	MaxBodyBytes int64 `yaml:"maxBodyBytes,omitempty" validate:"min=0"`
}

// Sitemap adds the pages listed in a sitemap to the targets.
type Sitemap struct {
	URL     string `yaml:"url" validate:"required,url"`
	Find    string `yaml:"find,omitempty"`
	Replace string `yaml:"replace,omitempty"`
	Exclude string `yaml:"exclude,omitempty"`
}

// Telemetry enables OTLP export of metrics and traces.
type Telemetry struct {
	Endpoint string `yaml:"endpoint,omitempty" validate:"omitempty,hostname_port"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// ReporterSpec selects a built-in reporter. In YAML it is either a name or a
// mapping with a name and reporter options.
type ReporterSpec struct {
	Name    string `validate:"required,oneof=log json"`
	Options map[string]any
}

func (r *ReporterSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&r.Name)
	case yaml.MappingNode:
		var m map[string]any
		if err := node.Decode(&m); err != nil {
			return err
		}
		name, err := popString(m, "name")
		if err != nil {
			return fmt.Errorf("line %d: reporter: %w", node.Line, err)
		}
		r.Name = name
		if len(m) > 0 {
			r.Options = m
		}
		return nil
	default:
		return fmt.Errorf("line %d: reporter must be a string or a mapping", node.Line)
	}
}

// AllTargets returns targets followed by urls.
func (f File) AllTargets() []Target {
	ret := make([]Target, 0, len(f.Targets)+len(f.URLs))
	ret = append(ret, f.Targets...)
	return append(ret, f.URLs...)
}

func DefaultFile() File {
	return File{
		Defaults:   Defaults(),
		Reporters:  []ReporterSpec{{Name: ReporterLog}},
		HookPolicy: HookAbort,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig decodes a YAML (or JSON) config and validates it. Missing
// fields are taken from DefaultFile.
func LoadConfig(r io.Reader) (File, error) {
	cfg := DefaultFile()
	cfg.Reporters = nil

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decoding config: %w", err)
	}
	if len(cfg.Reporters) == 0 {
		cfg.Reporters = DefaultFile().Reporters
	}
	if cfg.HookPolicy == "" {
		cfg.HookPolicy = HookAbort
	}

	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

func (f File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// UnknownKeys lists the inline option keys of defaults and targets which are
// not in known, e.g. "targets[1].treshold". Such keys are passed to the
// inspector untouched, so they are usually typos.
func (f File) UnknownKeys(known ...string) []string {
	var ret []string
	collect := func(prefix string, o *Options) {
		if o == nil {
			return
		}
		for _, k := range slices.Sorted(maps.Keys(o.Extra)) {
			if !slices.Contains(known, k) {
				ret = append(ret, prefix+"."+k)
			}
		}
	}
	collect("defaults", &f.Defaults)
	for i, t := range f.Targets {
		collect(fmt.Sprintf("targets[%d]", i), t.Overrides)
	}
	return ret
}

// ValidateOptions checks options assembled outside of a config file, e.g. from
// command line flags.
func ValidateOptions(o Options) error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("validating options: %w", err)
	}
	return nil
}
