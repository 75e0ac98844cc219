package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/Inspector/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

const alphaConfig = `
defaults:
  concurrency: 4
  threshold: 2
  timeout: 30s
  standard: WCAG2AA
targets:
  - https://example.com
  - url: https://example.com/login
    useIsolatedContext: false
    threshold: 0
    ignore:
      - missing-alt
urls:
  - https://example.com/legacy
reporters:
  - log
  - name: json
    path: report.json
launch:
  userAgent: inspector-test
  requestsPerSecond: 2.5
log:
  verbose: true
  format: text
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	cfg, err := model.LoadConfig(strings.NewReader(alphaConfig))
	require.NoError(t, err)

	require.Equal(t, 4, cfg.Defaults.Concurrency)
	threshold, ok := cfg.Defaults.ThresholdValue()
	require.True(t, ok)
	require.Equal(t, 2, threshold)
	require.Equal(t, 30*time.Second, cfg.Defaults.Timeout)
	require.Equal(t, "WCAG2AA", cfg.Defaults.Extra["standard"])
	require.True(t, cfg.Defaults.Isolated())

	targets := cfg.AllTargets()
	require.Len(t, targets, 3)
	require.Equal(t, model.Simple("https://example.com"), targets[0])
	require.Equal(t, "https://example.com/login", targets[1].ID)
	require.NotNil(t, targets[1].Overrides)
	require.False(t, targets[1].Overrides.Isolated())
	require.Equal(t, []any{"missing-alt"}, targets[1].Overrides.Extra["ignore"])
	require.NotContains(t, targets[1].Overrides.Extra, "url")
	require.Equal(t, "https://example.com/legacy", targets[2].ID)

	require.Equal(t, []model.ReporterSpec{
		{Name: "log"},
		{Name: "json", Options: map[string]any{"path": "report.json"}},
	}, cfg.Reporters)
	require.Equal(t, model.HookAbort, cfg.HookPolicy)
	require.Equal(t, "inspector-test", cfg.Launch.UserAgent)
	require.Equal(t, 2.5, cfg.Launch.RequestsPerSecond)
	require.True(t, cfg.Log.Verbose)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := model.LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, model.DefaultFile(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		then     string
	}{
		{"unknown field", "nope: 1\n", "field nope not found"},
		{"negative concurrency", "defaults:\n  concurrency: -1\n", "Concurrency"},
		{"negative threshold", "defaults:\n  threshold: -1\n", "Threshold"},
		{"unknown reporter", "reporters: [xml]\n", "Name"},
		{"target without url", "targets:\n  - threshold: 1\n", "requires one of"},
		{"target url not a string", "targets:\n  - url: [a]\n", "must be a string"},
		{"empty target", "targets:\n  - ''\n", "ID"},
		{"bad hook policy", "hookPolicy: ignore\n", "HookPolicy"},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tt.given))
			require.Error(t, err)
			require.ErrorContains(t, err, tt.then)
		})
	}

	t.Run("validation errors", func(t *testing.T) {
		t.Parallel()
		_, err := model.LoadConfig(strings.NewReader("defaults:\n  concurrency: -3\n"))
		var verr validator.ValidationErrors
		require.ErrorAs(t, err, &verr)
	})
}

func TestMerge(t *testing.T) {
	t.Parallel()

	batch := model.Options{
		Concurrency: 3,
		Threshold:   model.Ptr(5),
		Extra: map[string]any{
			"standard": "WCAG2AA",
			"ignore":   []any{"a"},
		},
	}
	overrides := model.Options{
		UseIsolatedContext: model.Ptr(false),
		Threshold:          model.Ptr(0),
		Extra: map[string]any{
			"ignore": []any{"b"},
			"wait":   500,
		},
	}

	eff, err := model.Merge(model.Defaults(), &batch, nil, &overrides)
	require.NoError(t, err)

	require.Equal(t, 3, eff.Concurrency)
	require.False(t, eff.Isolated())
	threshold, ok := eff.ThresholdValue()
	require.True(t, ok)
	require.Equal(t, 0, threshold)
	require.Equal(t, "WCAG2AA", eff.Extra["standard"])
	require.Equal(t, []any{"b"}, eff.Extra["ignore"])
	require.Equal(t, 500, eff.Extra["wait"])

	t.Run("inputs untouched", func(t *testing.T) {
		eff.Extra["standard"] = "changed"
		*eff.Threshold = 42
		require.Equal(t, "WCAG2AA", batch.Extra["standard"])
		require.Equal(t, []any{"a"}, batch.Extra["ignore"])
		require.NotContains(t, batch.Extra, "wait")
		require.Equal(t, 5, *batch.Threshold)
		require.Equal(t, 0, *overrides.Threshold)
		require.Nil(t, batch.UseIsolatedContext)
		require.True(t, model.Defaults().Isolated())
	})

	t.Run("defaults only", func(t *testing.T) {
		eff, err := model.Merge(model.Defaults())
		require.NoError(t, err)
		require.Equal(t, 1, eff.Concurrency)
		require.True(t, eff.Isolated())
		_, ok := eff.ThresholdValue()
		require.False(t, ok)
	})
}

func TestUnknownKeys(t *testing.T) {
	t.Parallel()
	const given = `
defaults:
  ignore: [image-alt]
targets:
  - https://example.com
  - url: https://example.com/login
    treshold: 2
    ignore: [link-name]
`
	cfg, err := model.LoadConfig(strings.NewReader(given))
	require.NoError(t, err)
	require.Equal(t, []string{"targets[1].treshold"}, cfg.UnknownKeys("ignore"))

	cfg, err = model.LoadConfig(strings.NewReader(alphaConfig))
	require.NoError(t, err)
	require.Equal(t, []string{"defaults.standard"}, cfg.UnknownKeys("ignore"))
	require.Empty(t, cfg.UnknownKeys("ignore", "standard"))
}

func TestValidateOptions(t *testing.T) {
	t.Parallel()
	require.NoError(t, model.ValidateOptions(model.Defaults()))
	require.Error(t, model.ValidateOptions(model.Options{Concurrency: -1}))
	require.Error(t, model.ValidateOptions(model.Options{Threshold: model.Ptr(-2)}))
}

func TestReportClone(t *testing.T) {
	t.Parallel()
	r := model.NewReport(1)
	r.Results["a"] = []model.Finding{"x"}
	c := r.Clone()
	c.Results["a"][0] = "y"
	c.Results["b"] = nil
	require.Equal(t, "x", r.Results["a"][0])
	require.NotContains(t, r.Results, "b")
	require.False(t, r.Passed())
}
