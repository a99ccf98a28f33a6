package coverage

import (
	"math"
	"sort"

	"github.com/grailbio/genecov/encoding/psl"
)

// Pairs is the ordered collection of alignment records for one dataset.
// Insertion order is preserved for reproducible downstream ordering.  Built
// once per run and read-only afterward, so it is safe to share across
// goroutines.
type Pairs struct {
	Label string
	Recs  []psl.Record
}

// NewPairs wraps recs under the given dataset label.
func NewPairs(label string, recs []psl.Record) Pairs {
	return Pairs{Label: label, Recs: recs}
}

type span struct{ start, end int }

// unionLen returns the total length of the union of the given intervals,
// merging overlaps.  spans is reordered in place.
func unionLen(spans []span) int {
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	total := 0
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.start > cur.end {
			total += cur.end - cur.start
			cur = s
			continue
		}
		if s.end > cur.end {
			cur.end = s.end
		}
	}
	return total + cur.end - cur.start
}

func recordSpans(dst []span, r psl.Record) []span {
	for i, size := range r.BlockSizes {
		dst = append(dst, span{r.QStarts[i], r.QStarts[i] + size})
	}
	return dst
}

// CoveredBases returns the number of distinct query bases covered by the
// record's aligned blocks.  Overlapping blocks (common in repetitive
// regions) are merged, never double-counted.
func CoveredBases(r psl.Record) int {
	return unionLen(recordSpans(nil, r))
}

// MatchFraction returns matches / coveredBases for the record, the
// match-quality measure used for threshold filtering.  countRepMatches adds
// repeat-space matches to the numerator.  NaN when the record covers no
// bases.
func MatchFraction(r psl.Record, countRepMatches bool) float64 {
	covered := CoveredBases(r)
	if covered == 0 {
		return math.NaN()
	}
	m := r.Matches
	if countRepMatches {
		m += r.RepMatches
	}
	return float64(m) / float64(covered)
}

// CoverageFraction returns coveredBases / queryLength for a single record.
// NaN when the query length was not resolved from the metadata table.
func CoverageFraction(r psl.Record) float64 {
	if !r.HasQueryLen || r.QueryLen == 0 {
		return math.NaN()
	}
	return float64(CoveredBases(r)) / float64(r.QueryLen)
}

// GroupByQuery returns all records keyed by transcript name, the unit of
// coverage aggregation.  Within each group the collection order is
// preserved.
func (p Pairs) GroupByQuery() map[string][]psl.Record {
	groups := make(map[string][]psl.Record)
	for _, r := range p.Recs {
		groups[r.QName] = append(groups[r.QName], r)
	}
	return groups
}

// FilterByMatchFraction returns the subset of records whose match fraction
// is at least threshold.  Records with an undefined match fraction are
// excluded.
func (p Pairs) FilterByMatchFraction(threshold float64, countRepMatches bool) Pairs {
	var recs []psl.Record
	for _, r := range p.Recs {
		if MatchFraction(r, countRepMatches) >= threshold { // NaN compares false
			recs = append(recs, r)
		}
	}
	return Pairs{Label: p.Label, Recs: recs}
}
