package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/observer"
)

// JSON writes the final report as a JSON document, to a file when path is
// set and to out otherwise.
type JSON struct {
	observer.Base
	path string
	out  io.Writer
}

func NewJSON(path string, out io.Writer) *JSON {
	return &JSON{path: path, out: out}
}

type errorFinding struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jsonReport struct {
	Total   int              `json:"total"`
	Passes  int              `json:"passes"`
	Errors  int              `json:"errors"`
	Passed  bool             `json:"passed"`
	Results map[string][]any `json:"results"`
}

func (j *JSON) AfterAll(_ context.Context, r *model.Report, _ model.Options) error {
	doc := jsonReport{
		Total:   r.Total,
		Passes:  r.Passes,
		Errors:  r.Errors,
		Passed:  r.Passed(),
		Results: make(map[string][]any, len(r.Results)),
	}
	for key, findings := range r.Results {
		out := make([]any, 0, len(findings))
		for _, f := range findings {
			if err, ok := f.(error); ok {
				f = errorFinding{Type: "error", Message: err.Error()}
			}
			out = append(out, f)
		}
		doc.Results[key] = out
	}

	if j.path == "" {
		return encode(j.out, doc)
	}

	f, err := os.Create(j.path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", j.path, err)
	}
	if err := encode(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encode(w io.Writer, doc jsonReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
