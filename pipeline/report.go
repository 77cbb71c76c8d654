package pipeline

import (
	"errors"
	"time"

	"github.com/maruishi/recolte/aggregate"
	"github.com/maruishi/recolte/extract"
)

// Report is the structured outcome of one run. It is always complete:
// every planned record type has an entry, failed or not.
type Report struct {
	RunID      string
	Strategy   Strategy
	StartedAt  time.Time
	FinishedAt time.Time

	Types []*TypeReport

	PhaseSummary *aggregate.PhaseSummary
	Daily        *aggregate.DailyTable

	// Err is set for failures preceding any extraction, like an invalid
	// plan.
	Err error
}

// TypeReport is one record type's outcome within a run.
type TypeReport struct {
	RunID string
	Type  extract.RecordType

	// Records holds what was extracted or loaded, including partial
	// results from an aborted extraction.
	Records []extract.NormalizedRecord

	Extracted int
	Excluded  int
	Skipped   int
	Pages     int

	// Aborted and LastPage are set when extraction ended early; LastPage
	// lets a rerun scope itself to the missing tail.
	Aborted  bool
	LastPage int

	Err        error
	ExportErrs []error
}

func (r *Report) add(typ extract.RecordType) *TypeReport {
	tr := &TypeReport{Type: typ, RunID: r.RunID}
	r.Types = append(r.Types, tr)
	return tr
}

func (tr *TypeReport) recordFailure(err error) {
	tr.Err = err
	var abort *extract.AbortError
	if errors.As(err, &abort) {
		tr.Aborted = true
		tr.LastPage = abort.LastPage
	}
}

// Failed reports whether anything in the run went wrong.
func (r *Report) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, tr := range r.Types {
		if tr.Err != nil || len(tr.ExportErrs) > 0 {
			return true
		}
	}
	return false
}

// Counts summarises extracted record counts per type, for notifications.
func (r *Report) Counts() map[string]int {
	out := make(map[string]int, len(r.Types))
	for _, tr := range r.Types {
		out[string(tr.Type)] = tr.Extracted
	}
	return out
}

// Errors summarises failures per type, for notifications. The plan-level
// error, if any, appears under "plan".
func (r *Report) Errors() map[string]string {
	out := make(map[string]string)
	if r.Err != nil {
		out["plan"] = r.Err.Error()
	}
	for _, tr := range r.Types {
		if tr.Err != nil {
			out[string(tr.Type)] = tr.Err.Error()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
