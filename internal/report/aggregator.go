package report

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/CZERTAINLY/Inspector/internal/model"
)

// Aggregator classifies task outcomes and folds them into a single report.
// It is safe for concurrent use.
type Aggregator struct {
	mx       sync.Mutex
	report   *model.Report
	registry map[string]int
}

func NewAggregator(total int) *Aggregator {
	return &Aggregator{
		report:   model.NewReport(total),
		registry: make(map[string]int),
	}
}

// Record stores the findings of target id under a unique display key and
// updates the counters. It returns the key used and whether the target passed.
//
// A target passes when it has no findings, or when a threshold is set and the
// number of findings does not exceed it. Passing targets are stored with an
// empty list.
func (a *Aggregator) Record(id string, findings []model.Finding, cfg model.Config) (string, bool) {
	a.mx.Lock()
	defer a.mx.Unlock()

	key := a.displayKey(id)
	if Passes(len(findings), cfg.Options) {
		a.report.Passes++
		a.report.Results[key] = []model.Finding{}
		return key, true
	}

	a.report.Errors += len(findings)
	a.report.Results[key] = append(make([]model.Finding, 0, len(findings)), findings...)
	return key, false
}

// Report returns a snapshot of the report.
func (a *Aggregator) Report() *model.Report {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.report.Clone()
}

// Passes is the classification rule used by Record.
func Passes(count int, opts model.Options) bool {
	if count == 0 {
		return true
	}
	threshold, ok := opts.ThresholdValue()
	return ok && count <= threshold
}

// displayKey must be called with a.mx held.
func (a *Aggregator) displayKey(id string) string {
	if _, ok := a.report.Results[id]; !ok {
		return id
	}

	n, ok := a.registry[id]
	if !ok {
		n = 1
	}
	for {
		n++
		key := fmt.Sprintf("%s (%d)", id, n)
		if _, taken := a.report.Results[key]; !taken {
			a.registry[id] = n
			return key
		}
		// a literal target id such as "x (2)" already holds the key
		slog.Warn("display key taken, trying next", "id", id, "key", key)
		a.registry[id] = n
	}
}
