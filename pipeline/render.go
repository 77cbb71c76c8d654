package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/maruishi/recolte/aggregate"
)

// Render writes the report as human-readable tables.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "run %s (%s) %s\n", r.RunID, r.Strategy,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Err != nil {
		fmt.Fprintf(w, "error: %v\n", r.Err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Type", "Records", "Excluded", "Skipped", "Pages", "Status"})
	for _, tr := range r.Types {
		t.AppendRow(table.Row{
			tr.Type, tr.Extracted, tr.Excluded, tr.Skipped, tr.Pages, typeStatus(tr),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if r.PhaseSummary != nil {
		renderPhases(w, r.PhaseSummary)
	}
	if r.Daily != nil {
		renderDaily(w, r.Daily)
	}
}

func typeStatus(tr *TypeReport) string {
	switch {
	case tr.Aborted:
		return fmt.Sprintf("aborted at page %d: %v", tr.LastPage, tr.Err)
	case tr.Err != nil:
		return tr.Err.Error()
	case len(tr.ExportErrs) > 0:
		return fmt.Sprintf("export failed: %v", tr.ExportErrs[0])
	default:
		return "ok"
	}
}

func renderPhases(w io.Writer, s *aggregate.PhaseSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Phase", aggregate.OverallChannel})
	for _, phase := range s.Overall.Keys() {
		t.AppendRow(table.Row{phase, s.Overall[phase]})
	}
	t.AppendFooter(table.Row{"excluded", s.Excluded})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func renderDaily(w io.Writer, d *aggregate.DailyTable) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Date", "ID", "Name", "Company", "Process", "Owner"})
	for _, row := range d.Rows() {
		t.AppendRow(table.Row{
			row.Date, row.ID, row.Name,
			fmt.Sprintf("%s %s", row.CompanyCode, row.CompanyName),
			row.Process, row.Owner,
		})
	}
	t.AppendFooter(table.Row{"excluded incomplete", d.ExcludedIncomplete})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
