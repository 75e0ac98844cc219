package model

// Finding is one unit of inspector output. The engine counts, stores and
// forwards findings without looking inside.
type Finding = any

// Inspection is what the inspector returns for one target.
type Inspection struct {
	PageURL string    `json:"pageUrl"`
	Issues  []Finding `json:"issues"`
}

// Report is the outcome of a batch.
type Report struct {
	Total   int                  `json:"total"`
	Passes  int                  `json:"passes"`
	Errors  int                  `json:"errors"`
	Results map[string][]Finding `json:"results"`
}

func NewReport(total int) *Report {
	return &Report{
		Total:   total,
		Results: make(map[string][]Finding, total),
	}
}

// Passed reports whether every target of the batch passed.
func (r *Report) Passed() bool {
	return r.Passes == r.Total
}

// Clone returns a copy sharing no maps or slices with r.
func (r *Report) Clone() *Report {
	ret := &Report{
		Total:   r.Total,
		Passes:  r.Passes,
		Errors:  r.Errors,
		Results: make(map[string][]Finding, len(r.Results)),
	}
	for k, v := range r.Results {
		ret.Results[k] = append(make([]Finding, 0, len(v)), v...)
	}
	return ret
}
