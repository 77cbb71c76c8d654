package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruishi/recolte/dbopen"
	"github.com/maruishi/recolte/extract"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(dbopen.OpenMemory(t, dbopen.WithSchema(Schema())))
}

func candidateRecords() []extract.NormalizedRecord {
	return []extract.NormalizedRecord{
		{
			Type: extract.TypeCandidate, ID: "1001", Page: 1, Valid: true,
			Fields: map[string]string{
				extract.FieldID: "1001", extract.FieldName: "候補者1001",
				extract.FieldPhase: "終了", extract.FieldChannel: "LINE",
			},
		},
		{
			Type: extract.TypeCandidate, ID: "", Page: 2, Valid: false,
			Fields: map[string]string{extract.FieldName: "名前だけ"},
		},
	}
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := s.StartRun(ctx, "run-1", "separate", time.Now()); err != nil {
		t.Fatal(err)
	}
	want := candidateRecords()
	if err := s.SaveRecords(ctx, "run-1", extract.TypeCandidate, want); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadRecords(ctx, extract.TypeCandidate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("records: got %d, want %d", len(got), len(want))
	}
	if got[0].ID != "1001" || got[0].Fields[extract.FieldPhase] != "終了" {
		t.Errorf("record 0: %+v", got[0])
	}
	if got[1].Valid {
		t.Error("invalid record came back valid")
	}
}

func TestStoreLoadsMostRecentRun(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	for _, runID := range []string{"run-1", "run-2"} {
		if err := s.StartRun(ctx, runID, "separate", time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	old := []extract.NormalizedRecord{{Type: extract.TypeCandidate, ID: "old", Valid: true,
		Fields: map[string]string{extract.FieldID: "old"}}}
	recent := []extract.NormalizedRecord{{Type: extract.TypeCandidate, ID: "new", Valid: true,
		Fields: map[string]string{extract.FieldID: "new"}}}
	if err := s.SaveRecords(ctx, "run-1", extract.TypeCandidate, old); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRecords(ctx, "run-2", extract.TypeCandidate, recent); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadRecords(ctx, extract.TypeCandidate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("got %+v, want the run-2 export", got)
	}
}

func TestStoreLoadWithoutExport(t *testing.T) {
	s := testStore(t)
	_, err := s.LoadRecords(context.Background(), extract.TypeEntryProcess)
	if !errors.Is(err, ErrNoExport) {
		t.Fatalf("got %v, want ErrNoExport", err)
	}
}

func TestStoreRunHistory(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := s.StartRun(ctx, "run-1", "shared", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishRun(ctx, "run-1", time.Now(), false, "session lost"); err != nil {
		t.Fatal(err)
	}
	// Restarting the same run ID is a caller bug and must fail.
	if err := s.StartRun(ctx, "run-1", "shared", time.Now()); err == nil {
		t.Fatal("duplicate run ID accepted")
	}
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, extract.Candidates().Schema, candidateRecords()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines: got %d, want 3", len(lines))
	}
	if lines[0] != strings.Join(extract.Candidates().Schema.Columns, ",") {
		t.Errorf("header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1001,候補者1001,終了,LINE") {
		t.Errorf("row 1: %q", lines[1])
	}
}

func TestCSVWriterWritesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(filepath.Join(dir, "exports"))
	w.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	path, err := w.Write(extract.Candidates(), candidateRecords())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "candidate_20260830_120000.csv" {
		t.Errorf("filename: %q", filepath.Base(path))
	}
}

func TestNotifierPostsNotice(t *testing.T) {
	var got RunNotice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type: %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	err := n.Notify(context.Background(), RunNotice{RunID: "run-1", Status: "ok"})
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" || got.Status != "ok" {
		t.Errorf("payload: %+v", got)
	}
}

func TestNotifierExhaustsRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, WithNotifierRetries(0))
	err := n.Notify(context.Background(), RunNotice{RunID: "run-1", Status: "failed"})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if attempts != 1 {
		t.Errorf("attempts: got %d, want 1", attempts)
	}
}
