package aggregate

import (
	"sort"

	"github.com/maruishi/recolte/extract"
)

// DailyRow is the fixed projection of one selection-process record.
type DailyRow struct {
	Date        string
	ID          string
	Name        string
	CompanyCode string
	CompanyName string
	Process     string
	Owner       string
}

// key is the duplicate-collapse identity, matching what the downstream
// sheet treats as the same process.
func (r DailyRow) key() [5]string {
	return [5]string{r.ID, r.Process, r.Date, r.CompanyCode, r.CompanyName}
}

// DailyTable is the daily entry-process aggregation, keyed by the process
// date carried on each record, not the extraction date.
type DailyTable struct {
	rows map[[5]string]DailyRow

	// ExcludedIncomplete counts records dropped for missing required
	// fields or a missing process date.
	ExcludedIncomplete int

	// Duplicates counts records collapsed into an already-seen row.
	Duplicates int

	Total int
}

// NewDailyTable returns an empty table.
func NewDailyTable() *DailyTable {
	return &DailyTable{rows: make(map[[5]string]DailyRow)}
}

// BuildDaily aggregates selection-process records into a daily table.
func BuildDaily(records []extract.NormalizedRecord) *DailyTable {
	t := NewDailyTable()
	for _, rec := range records {
		t.add(rec)
	}
	return t
}

func (t *DailyTable) add(rec extract.NormalizedRecord) {
	t.Total++
	if !rec.Valid {
		t.ExcludedIncomplete++
		return
	}
	row := DailyRow{
		Date:        canon(rec.Fields[extract.FieldProcessDate]),
		ID:          rec.ID,
		Name:        canon(rec.Fields[extract.FieldName]),
		CompanyCode: canon(rec.Fields[extract.FieldCompanyCode]),
		CompanyName: canon(rec.Fields[extract.FieldCompanyName]),
		Process:     canon(rec.Fields[extract.FieldProcess]),
		Owner:       canon(rec.Fields[extract.FieldOwner]),
	}
	if row.Date == "" {
		t.ExcludedIncomplete++
		return
	}
	k := row.key()
	if _, dup := t.rows[k]; dup {
		t.Duplicates++
		return
	}
	t.rows[k] = row
}

// Rows returns the deduplicated rows in a deterministic order: by date,
// then identifier, company code and process stage.
func (t *DailyTable) Rows() []DailyRow {
	rows := make([]DailyRow, 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.CompanyCode != b.CompanyCode {
			return a.CompanyCode < b.CompanyCode
		}
		return a.Process < b.Process
	})
	return rows
}

// CountsByDate buckets the deduplicated rows by process date.
func (t *DailyTable) CountsByDate() Buckets {
	b := make(Buckets)
	for _, r := range t.rows {
		b.Add(r.Date)
	}
	return b
}

// Len reports the deduplicated row count.
func (t *DailyTable) Len() int { return len(t.rows) }
