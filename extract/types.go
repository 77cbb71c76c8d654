// Package extract pulls normalized records out of paginated list views.
//
// Extraction is a lazy, forward-only stream: records are produced page by
// page, transient row failures are retried with backoff, and a page that
// keeps failing is skipped with a warning rather than sinking the whole
// extraction. A fresh extraction always re-reads from page 1.
package extract

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// RecordType identifies one of the scraped entity kinds.
type RecordType string

const (
	TypeCandidate    RecordType = "candidate"
	TypeEntryProcess RecordType = "entryprocess"
)

// RawRecord is one row exactly as scraped.
type RawRecord struct {
	Fields      map[string]string
	Page        int
	ExtractedAt time.Time
}

// NormalizedRecord is a RawRecord validated against its type's schema.
// Invalid records are kept and reportable but excluded from aggregation.
type NormalizedRecord struct {
	Type    RecordType
	ID      string
	Fields  map[string]string
	Page    int
	Valid   bool
	Missing []string
}

// Schema is the fixed field layout of a record type.
type Schema struct {
	// IDField is the designated identifier column, matched against target
	// filters.
	IDField string

	// Required fields must be present and non-empty or the record is
	// marked invalid.
	Required []string

	// Columns is the export order.
	Columns []string
}

// Normalize validates raw against the schema. Field values are NFC
// normalized and trimmed; the scraped UI mixes half- and full-width forms
// of the same strings.
func (s Schema) Normalize(t RecordType, raw RawRecord) NormalizedRecord {
	fields := make(map[string]string, len(raw.Fields))
	for k, v := range raw.Fields {
		fields[normalizeValue(k)] = normalizeValue(v)
	}

	var missing []string
	for _, req := range s.Required {
		if fields[req] == "" {
			missing = append(missing, req)
		}
	}

	return NormalizedRecord{
		Type:    t,
		ID:      fields[s.IDField],
		Fields:  fields,
		Page:    raw.Page,
		Valid:   len(missing) == 0,
		Missing: missing,
	}
}

func normalizeValue(v string) string {
	return norm.NFC.String(strings.TrimSpace(v))
}
