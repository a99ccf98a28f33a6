package coverage

import (
	"fmt"
	"math"
	"sort"
)

// SummaryRow is one cell of the gene-body coverage summary: how many
// transcripts reach the coverage cutoff at the given match threshold.
type SummaryRow struct {
	MatchThreshold float64
	Cutoff         float64
	Covered        int
	Total          int
}

// InconsistentTotalError reports an externally supplied total transcript
// count smaller than the number of transcripts actually observed.  It
// signals a caller bug, not bad data, and fails the dataset's
// summarization.
type InconsistentTotalError struct {
	Label    string
	Supplied int
	Observed int
}

func (e *InconsistentTotalError) Error() string {
	return fmt.Sprintf("dataset %s: supplied transcript total %d < observed %d",
		e.Label, e.Supplied, e.Observed)
}

// QueryCoverages computes, for every transcript observed in the collection,
// the fraction of its length covered by the union of its records passing the
// match threshold.  Transcripts all of whose records fail the threshold map
// to 0 so they still count toward summary denominators.  Transcripts whose
// length could not be resolved map to NaN and are excluded from every cutoff
// bucket.
func (p Pairs) QueryCoverages(matchThreshold float64, countRepMatches bool) map[string]float64 {
	cov := make(map[string]float64)
	for _, r := range p.Recs {
		if _, ok := cov[r.QName]; ok {
			continue
		}
		if r.HasQueryLen && r.QueryLen > 0 {
			cov[r.QName] = 0
		} else {
			cov[r.QName] = math.NaN()
		}
	}
	filtered := p.FilterByMatchFraction(matchThreshold, countRepMatches)
	for q, recs := range filtered.GroupByQuery() {
		if !recs[0].HasQueryLen || recs[0].QueryLen == 0 {
			continue // stays NaN
		}
		var spans []span
		for _, r := range recs {
			spans = recordSpans(spans, r)
		}
		cov[q] = float64(unionLen(spans)) / float64(recs[0].QueryLen)
	}
	return cov
}

// Summarize sweeps the coverage cutoffs at one match threshold.  cutoffs
// must be ascending, which makes the returned counts non-increasing by
// construction.  totalOverride, when positive, replaces the observed
// transcript count as the denominator; it must be at least the observed
// count.
func (p Pairs) Summarize(matchThreshold float64, cutoffs []float64, totalOverride int, countRepMatches bool) ([]SummaryRow, error) {
	cov := p.QueryCoverages(matchThreshold, countRepMatches)
	total := len(cov)
	if totalOverride > 0 {
		if totalOverride < total {
			return nil, &InconsistentTotalError{Label: p.Label, Supplied: totalOverride, Observed: total}
		}
		total = totalOverride
	}
	rows := make([]SummaryRow, 0, len(cutoffs))
	for _, c := range cutoffs {
		n := 0
		for _, v := range cov {
			if v >= c { // NaN compares false
				n++
			}
		}
		rows = append(rows, SummaryRow{MatchThreshold: matchThreshold, Cutoff: c, Covered: n, Total: total})
	}
	return rows, nil
}

// QueryRow is one cell of the per-transcript coverage table.
type QueryRow struct {
	Query          string
	MatchThreshold float64
	Cutoff         float64
	Covered        bool
}

// QueryTable expands per-transcript coverages into one boolean row per
// (transcript, cutoff), sorted by transcript name for reproducible output.
func (p Pairs) QueryTable(matchThreshold float64, cutoffs []float64, countRepMatches bool) []QueryRow {
	cov := p.QueryCoverages(matchThreshold, countRepMatches)
	names := make([]string, 0, len(cov))
	for q := range cov {
		names = append(names, q)
	}
	sort.Strings(names)
	rows := make([]QueryRow, 0, len(names)*len(cutoffs))
	for _, q := range names {
		for _, c := range cutoffs {
			rows = append(rows, QueryRow{
				Query:          q,
				MatchThreshold: matchThreshold,
				Cutoff:         c,
				Covered:        cov[q] >= c,
			})
		}
	}
	return rows
}
