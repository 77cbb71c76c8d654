package aggregate

import (
	"reflect"
	"testing"

	"github.com/maruishi/recolte/extract"
)

func candidate(id, phase, channel string) extract.NormalizedRecord {
	return extract.NormalizedRecord{
		Type: extract.TypeCandidate,
		ID:   id,
		Fields: map[string]string{
			extract.FieldID:      id,
			extract.FieldPhase:   phase,
			extract.FieldChannel: channel,
		},
		Valid: true,
	}
}

func TestSummarizePhasesWithCustomRules(t *testing.T) {
	c := NewClassifier([]Rule{
		{Field: "status", Equals: "entry_new", Phase: "新規エントリー"},
		{Field: "status", Equals: "interview_set", Phase: "面談設定済"},
	})
	records := []extract.NormalizedRecord{
		{ID: "1", Fields: map[string]string{"status": "entry_new"}, Valid: true},
		{ID: "2", Fields: map[string]string{"status": "interview_set"}, Valid: true},
		{ID: "3", Fields: map[string]string{"status": ""}, Valid: true},
	}

	s := SummarizePhases(records, c)
	want := Buckets{"新規エントリー": 1, "面談設定済": 1}
	if !reflect.DeepEqual(s.Overall, want) {
		t.Errorf("buckets: got %v, want %v", s.Overall, want)
	}
	if s.Excluded != 1 {
		t.Errorf("excluded: got %d, want 1", s.Excluded)
	}
}

func TestSummarizePhasesDefaultRules(t *testing.T) {
	c := NewClassifier(DefaultRules())
	records := []extract.NormalizedRecord{
		candidate("1", "相談前×推薦前(新規エントリー)", "LINE"),
		candidate("2", "面談設定済", "LINE"),
		candidate("3", "面談設定済", "Indeed"),
		candidate("4", "引退", "LINE"), // not in the label set
		candidate("5", "", "LINE"),
		{ID: "6", Fields: map[string]string{extract.FieldPhase: "終了"}, Valid: false},
	}

	s := SummarizePhases(records, c)
	if got := s.Overall["面談設定済"]; got != 2 {
		t.Errorf("面談設定済: got %d, want 2", got)
	}
	if got := s.Overall[Unclassified]; got != 1 {
		t.Errorf("unclassified: got %d, want 1", got)
	}
	// Empty status and invalid records are excluded, not bucketed.
	if s.Excluded != 2 {
		t.Errorf("excluded: got %d, want 2", s.Excluded)
	}
	if got := s.ByChannel["LINE"]["面談設定済"]; got != 1 {
		t.Errorf("LINE/面談設定済: got %d, want 1", got)
	}
	if got := s.ByChannel["Indeed"]["面談設定済"]; got != 1 {
		t.Errorf("Indeed/面談設定済: got %d, want 1", got)
	}
}

// Bucket totals plus the excluded count must always account for every
// input record.
func TestPhaseTotalsAccountForAllRecords(t *testing.T) {
	c := NewClassifier(DefaultRules())
	records := []extract.NormalizedRecord{
		candidate("1", "終了", "LINE"),
		candidate("2", "なにか別の状態", ""),
		candidate("3", "", ""),
		{ID: "4", Valid: false},
		candidate("5", "推薦済(仮エントリー)", "Indeed"),
	}

	s := SummarizePhases(records, c)
	if got := s.Overall.Total() + s.Excluded; got != len(records) {
		t.Errorf("buckets(%d)+excluded(%d) = %d, want %d",
			s.Overall.Total(), s.Excluded, got, len(records))
	}
	if s.Total != len(records) {
		t.Errorf("total: got %d, want %d", s.Total, len(records))
	}
}

func TestSummarizeIsOrderIndependent(t *testing.T) {
	c := NewClassifier(DefaultRules())
	records := []extract.NormalizedRecord{
		candidate("1", "終了", "LINE"),
		candidate("2", "面談設定済", "Indeed"),
		candidate("3", "終了", "LINE"),
	}
	reversed := []extract.NormalizedRecord{records[2], records[1], records[0]}

	a := SummarizePhases(records, c)
	b := SummarizePhases(reversed, c)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("order changed the summary:\n%+v\n%+v", a, b)
	}
}

func TestRulePrecedenceFirstMatchWins(t *testing.T) {
	c := NewClassifier([]Rule{
		{Field: extract.FieldPhase, Equals: "終了", Phase: "closed"},
		{Field: extract.FieldPhase, Equals: "終了", Phase: "shadowed"},
	})
	phase, ok := c.Classify(map[string]string{extract.FieldPhase: "終了"})
	if !ok || phase != "closed" {
		t.Errorf("got (%q, %v), want (closed, true)", phase, ok)
	}
}

func TestClassifyNormalizesBeforeMatching(t *testing.T) {
	c := NewClassifier(DefaultRules())
	// Composed vs decomposed forms of 済 paired with surrounding space.
	phase, ok := c.Classify(map[string]string{extract.FieldPhase: " 面談設定済 "})
	if !ok || phase != "面談設定済" {
		t.Errorf("got (%q, %v)", phase, ok)
	}
}

func TestMergeCommutativeAndAssociative(t *testing.T) {
	a := Buckets{"終了": 2, "面談設定済": 1}
	b := Buckets{"終了": 1, Unclassified: 3}
	c := Buckets{"面談設定済": 4}

	if !reflect.DeepEqual(Merge(a, b), Merge(b, a)) {
		t.Error("merge is not commutative")
	}
	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))
	if !reflect.DeepEqual(left, right) {
		t.Errorf("merge is not associative: %v vs %v", left, right)
	}
	// Inputs stay untouched.
	if a["終了"] != 2 || b[Unclassified] != 3 {
		t.Error("merge mutated an input")
	}
}

func TestMergeSummaries(t *testing.T) {
	c := NewClassifier(DefaultRules())
	a := SummarizePhases([]extract.NormalizedRecord{
		candidate("1", "終了", "LINE"),
		candidate("2", "", ""),
	}, c)
	b := SummarizePhases([]extract.NormalizedRecord{
		candidate("3", "終了", "LINE"),
		candidate("4", "面談設定済", "Indeed"),
	}, c)

	m := MergeSummaries(a, b)
	if m.Overall["終了"] != 2 || m.Excluded != 1 || m.Total != 4 {
		t.Errorf("merged: %+v", m)
	}
	if m.ByChannel["LINE"]["終了"] != 2 {
		t.Errorf("LINE breakdown: %v", m.ByChannel["LINE"])
	}
}
