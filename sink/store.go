// Package sink holds the export collaborators: the SQLite record store,
// the CSV writer and the failure-notification webhook. The core packages
// hand it finished record sequences and reports; nothing here reaches
// back into extraction.
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maruishi/recolte/dbopen"
	"github.com/maruishi/recolte/extract"
)

// ErrNoExport is returned when the store holds no prior export for a
// record type.
var ErrNoExport = errors.New("sink: no exported records for type")

const storeSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	strategy    TEXT NOT NULL,
	ok          INTEGER NOT NULL DEFAULT 0,
	summary     TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS records (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	record_type  TEXT NOT NULL,
	record_id    TEXT NOT NULL,
	page         INTEGER NOT NULL,
	valid        INTEGER NOT NULL,
	fields       TEXT NOT NULL,
	extracted_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_type_run ON records(record_type, run_id);
`

// Store persists exported records and the run history. It also feeds
// skip-extraction runs with the most recent export per record type.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed creates) the store at path.
func OpenStore(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(storeSchema))
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-opened database. The caller must have applied
// the store schema.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Schema returns the store's DDL, for callers opening the database
// themselves.
func Schema() string { return storeSchema }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// StartRun records the beginning of a run.
func (s *Store) StartRun(ctx context.Context, runID, strategy string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, strategy) VALUES (?, ?, ?)`,
		runID, startedAt.UTC().Format(time.RFC3339), strategy)
	if err != nil {
		return fmt.Errorf("sink: start run: %w", err)
	}
	return nil
}

// FinishRun records the run's outcome.
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time, ok bool, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, ok = ?, summary = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339), boolToInt(ok), summary, runID)
	if err != nil {
		return fmt.Errorf("sink: finish run: %w", err)
	}
	return nil
}

// SaveRecords persists one record type's extraction under a run. The run
// must have been started first.
func (s *Store) SaveRecords(ctx context.Context, runID string, typ extract.RecordType, records []extract.NormalizedRecord) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
			(run_id, record_type, record_id, page, valid, fields, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("sink: prepare: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC().Format(time.RFC3339)
		for _, rec := range records {
			fields, err := json.Marshal(rec.Fields)
			if err != nil {
				return fmt.Errorf("sink: encode fields: %w", err)
			}
			_, err = stmt.ExecContext(ctx,
				runID, string(typ), rec.ID, rec.Page, boolToInt(rec.Valid), string(fields), now)
			if err != nil {
				return fmt.Errorf("sink: insert record: %w", err)
			}
		}
		return nil
	})
}

// LoadRecords returns the records of the most recent run that exported
// the given type, in their original extraction order.
func (s *Store) LoadRecords(ctx context.Context, typ extract.RecordType) ([]extract.NormalizedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record_id, page, valid, fields
		FROM records
		WHERE record_type = ? AND run_id = (
			SELECT run_id FROM records WHERE record_type = ? ORDER BY rowid DESC LIMIT 1)
		ORDER BY rowid`, string(typ), string(typ))
	if err != nil {
		return nil, fmt.Errorf("sink: load records: %w", err)
	}
	defer rows.Close()

	var out []extract.NormalizedRecord
	for rows.Next() {
		var (
			rec    extract.NormalizedRecord
			valid  int
			fields string
		)
		if err := rows.Scan(&rec.ID, &rec.Page, &valid, &fields); err != nil {
			return nil, fmt.Errorf("sink: scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
			return nil, fmt.Errorf("sink: decode fields: %w", err)
		}
		rec.Type = typ
		rec.Valid = valid != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sink: load records: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExport, typ)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
