package reporter_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/Inspector/internal/inspect"
	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/reporter"

	"github.com/stretchr/testify/require"
)

func sampleReport() *model.Report {
	r := model.NewReport(3)
	r.Passes = 1
	r.Errors = 2
	r.Results["a"] = []model.Finding{}
	r.Results["b"] = []model.Finding{inspect.Issue{Code: inspect.CodeLang, Type: inspect.TypeError, Message: "no lang", Selector: "html"}}
	r.Results["c"] = []model.Finding{errors.New("connection refused")}
	return r
}

const expectedJSON = `{
  "total": 3,
  "passes": 1,
  "errors": 2,
  "passed": false,
  "results": {
    "a": [],
    "b": [{"code": "html-lang", "type": "error", "message": "no lang", "selector": "html"}],
    "c": [{"type": "error", "message": "connection refused"}]
  }
}`

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("stdout", func(t *testing.T) {
		var buf bytes.Buffer
		r, err := reporter.New(model.ReporterSpec{Name: model.ReporterJSON}, &buf)
		require.NoError(t, err)
		require.NoError(t, r.AfterAll(t.Context(), sampleReport(), model.Defaults()))
		require.JSONEq(t, expectedJSON, buf.String())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.json")
		var buf bytes.Buffer
		r, err := reporter.New(model.ReporterSpec{Name: model.ReporterJSON, Options: map[string]any{"path": path}}, &buf)
		require.NoError(t, err)
		require.NoError(t, r.AfterAll(t.Context(), sampleReport(), model.Defaults()))
		require.Zero(t, buf.Len())

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		require.JSONEq(t, expectedJSON, string(b))
	})
}

func TestLog(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := reporter.NewLog(logger)
	ctx := t.Context()
	cfg := model.Config{Options: model.Defaults()}

	require.NoError(t, r.BeforeAll(ctx, model.Targets("a", "b")))
	require.NoError(t, r.Begin(ctx, "a"))
	require.NoError(t, r.Results(ctx, model.Inspection{PageURL: "a"}, cfg))
	require.NoError(t, r.Results(ctx, model.Inspection{PageURL: "b", Issues: []model.Finding{"x"}}, cfg))
	require.NoError(t, r.Error(ctx, errors.New("boom"), "c", cfg))
	require.NoError(t, r.AfterAll(ctx, sampleReport(), model.Defaults()))

	var msgs []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))
		require.Equal(t, model.ReporterLog, rec["reporter"])
		msgs = append(msgs, rec["msg"].(string))
	}
	require.Equal(t, []string{
		"inspecting",
		"target started",
		"target passed",
		"target failed",
		"issue",
		"target errored",
		"inspection finished",
	}, msgs)
}

func TestNew(t *testing.T) {
	t.Parallel()
	all, err := reporter.All([]model.ReporterSpec{{Name: model.ReporterLog}, {Name: model.ReporterJSON}}, os.Stdout)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = reporter.New(model.ReporterSpec{Name: "xml"}, os.Stdout)
	require.ErrorContains(t, err, "unknown reporter")

	_, err = reporter.All([]model.ReporterSpec{{Name: model.ReporterJSON, Options: map[string]any{"path": 1}}}, os.Stdout)
	require.ErrorContains(t, err, "must be a string")
}
