// Package inspect checks HTML documents for common accessibility problems.
package inspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/net/html"

	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/resource/httpres"
)

var (
	ErrNoFetcher = errors.New("resource can't fetch documents")
	ErrStatus    = errors.New("unexpected status")
)

// OptionKeys are the inline option keys the Inspector understands.
var OptionKeys = []string{"ignore"}

// Issue is a single finding.
type Issue struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Selector string `json:"selector"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.Code, i.Message, i.Selector)
}

// Inspector fetches a page through the task's resource and runs every rule
// over it. Rules listed in the "ignore" option are skipped.
type Inspector struct {
	rules []rule
}

func New() *Inspector {
	return &Inspector{rules: defaultRules}
}

// Codes lists the codes of all rules.
func (in *Inspector) Codes() []string {
	ret := make([]string, 0, len(in.rules))
	for _, r := range in.rules {
		ret = append(ret, r.code)
	}
	return ret
}

func (in *Inspector) Inspect(ctx context.Context, id string, cfg model.Config) (model.Inspection, error) {
	fetcher, ok := cfg.Resource.(httpres.Fetcher)
	if !ok {
		return model.Inspection{}, fmt.Errorf("%w: %T", ErrNoFetcher, cfg.Resource)
	}

	resp, err := fetcher.Get(ctx, id)
	if err != nil {
		return model.Inspection{}, fmt.Errorf("fetching %s: %w", id, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Inspection{}, fmt.Errorf("%w: %s returned %d", ErrStatus, id, resp.StatusCode)
	}

	issues, err := in.Check(resp.Body, ignored(cfg.Extra))
	if err != nil {
		return model.Inspection{}, err
	}

	findings := make([]model.Finding, 0, len(issues))
	for _, i := range issues {
		findings = append(findings, i)
	}
	return model.Inspection{PageURL: resp.URL, Issues: findings}, nil
}

// Check parses document and returns the issues found, skipping the rules
// whose codes are in ignore.
func (in *Inspector) Check(document []byte, ignore []string) ([]Issue, error) {
	root, err := html.Parse(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	var issues []Issue
	for _, r := range in.rules {
		if slices.Contains(ignore, r.code) {
			continue
		}
		issues = append(issues, r.check(root)...)
	}
	return issues, nil
}

func ignored(extra map[string]any) []string {
	switch v := extra["ignore"].(type) {
	case []string:
		return v
	case []any:
		ret := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				ret = append(ret, s)
			}
		}
		return ret
	case string:
		return []string{v}
	default:
		return nil
	}
}
