// Package aggregate turns extracted record sequences into summary tables.
// Everything here is pure accumulation: no resources, no ordering
// assumptions, identical output for the same logical record set.
package aggregate

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/maruishi/recolte/extract"
)

// Unclassified collects records whose status is present but matches no
// classification rule. It is always reported, never silently dropped.
const Unclassified = "未分類"

// OverallChannel is the breakdown key holding every record regardless of
// registration channel.
const OverallChannel = "全体"

// Buckets is an accumulator keyed by category or date.
type Buckets map[string]int

// Add increments one key.
func (b Buckets) Add(key string) { b[key]++ }

// Total sums all keys.
func (b Buckets) Total() int {
	n := 0
	for _, v := range b {
		n += v
	}
	return n
}

// Clone copies the accumulator.
func (b Buckets) Clone() Buckets {
	out := make(Buckets, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Keys returns the bucket keys in sorted order.
func (b Buckets) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Rule maps one status field value to a phase label. Rules are evaluated
// in order and the first match wins, so ambiguous statuses resolve by
// table position rather than by an implicit default.
type Rule struct {
	Field  string
	Equals string
	Phase  string
}

// DefaultRules matches the five phase labels the target UI renders in its
// フェーズ column.
func DefaultRules() []Rule {
	phases := []string{
		"相談前×推薦前(新規エントリー)",
		"相談済×推薦前(open)",
		"推薦済(仮エントリー)",
		"面談設定済",
		"終了",
	}
	rules := make([]Rule, 0, len(phases))
	for _, p := range phases {
		rules = append(rules, Rule{Field: extract.FieldPhase, Equals: p, Phase: p})
	}
	return rules
}

// Classifier applies an ordered rule table to a record's fields.
type Classifier struct {
	rules  []Rule
	phases []string
}

// NewClassifier builds a classifier. The phase label set is derived from
// the rules in first-appearance order.
func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]Rule, len(rules))}
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		r.Equals = canon(r.Equals)
		c.rules[i] = r
		if !seen[r.Phase] {
			seen[r.Phase] = true
			c.phases = append(c.phases, r.Phase)
		}
	}
	return c
}

// Phases returns the declared phase labels in rule order.
func (c *Classifier) Phases() []string {
	return append([]string(nil), c.phases...)
}

// Classify maps a record's fields to a phase label. ok is false when every
// rule field is empty; a non-empty status that matches no rule classifies
// as Unclassified.
func (c *Classifier) Classify(fields map[string]string) (phase string, ok bool) {
	any := false
	for _, r := range c.rules {
		v := canon(fields[r.Field])
		if v == "" {
			continue
		}
		any = true
		if v == r.Equals {
			return r.Phase, true
		}
	}
	if !any {
		return "", false
	}
	return Unclassified, true
}

func canon(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// PhaseSummary is the phase-summary aggregation: overall phase counts plus
// an independent per-registration-channel breakdown.
type PhaseSummary struct {
	Overall   Buckets
	ByChannel map[string]Buckets
	Excluded  int
	Total     int
}

// SummarizePhases classifies each record into exactly one phase bucket.
// Invalid records and records with no status at all are counted excluded,
// so the bucket totals plus Excluded always equal Total.
func SummarizePhases(records []extract.NormalizedRecord, c *Classifier) *PhaseSummary {
	s := &PhaseSummary{
		Overall:   make(Buckets),
		ByChannel: make(map[string]Buckets),
		Total:     len(records),
	}
	for _, rec := range records {
		if !rec.Valid {
			s.Excluded++
			continue
		}
		phase, ok := c.Classify(rec.Fields)
		if !ok {
			s.Excluded++
			continue
		}
		s.Overall.Add(phase)
		if ch := canon(rec.Fields[extract.FieldChannel]); ch != "" {
			if s.ByChannel[ch] == nil {
				s.ByChannel[ch] = make(Buckets)
			}
			s.ByChannel[ch].Add(phase)
		}
	}
	return s
}
