package aggregate

// Merge returns the key-wise sum of two accumulators. The operation is
// commutative and associative, so partial results from independent
// extractions can be combined in any order. Inputs are not modified.
func Merge(a, b Buckets) Buckets {
	out := a.Clone()
	for k, v := range b {
		out[k] += v
	}
	return out
}

// MergeAll folds any number of accumulators.
func MergeAll(bs ...Buckets) Buckets {
	out := make(Buckets)
	for _, b := range bs {
		for k, v := range b {
			out[k] += v
		}
	}
	return out
}

// MergeSummaries combines two phase summaries key-wise.
func MergeSummaries(a, b *PhaseSummary) *PhaseSummary {
	out := &PhaseSummary{
		Overall:   Merge(a.Overall, b.Overall),
		ByChannel: make(map[string]Buckets, len(a.ByChannel)+len(b.ByChannel)),
		Excluded:  a.Excluded + b.Excluded,
		Total:     a.Total + b.Total,
	}
	for ch, buckets := range a.ByChannel {
		out.ByChannel[ch] = buckets.Clone()
	}
	for ch, buckets := range b.ByChannel {
		if existing, ok := out.ByChannel[ch]; ok {
			out.ByChannel[ch] = Merge(existing, buckets)
		} else {
			out.ByChannel[ch] = buckets.Clone()
		}
	}
	return out
}

// MergeDaily combines two daily tables, collapsing rows that appear in
// both under the same duplicate identity.
func MergeDaily(a, b *DailyTable) *DailyTable {
	out := NewDailyTable()
	out.ExcludedIncomplete = a.ExcludedIncomplete + b.ExcludedIncomplete
	out.Duplicates = a.Duplicates + b.Duplicates
	out.Total = a.Total + b.Total
	for _, t := range []*DailyTable{a, b} {
		for k, row := range t.rows {
			if _, dup := out.rows[k]; dup {
				out.Duplicates++
				continue
			}
			out.rows[k] = row
		}
	}
	return out
}
