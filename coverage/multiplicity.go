package coverage

import "sort"

// MultiplicityRow records how many transcripts meeting a coverage cutoff were
// reconstructed from a given number of distinct contigs.  A well-assembled
// genome concentrates the distribution at Subjects == 1.
type MultiplicityRow struct {
	Cutoff   float64
	Subjects int
	Count    int
}

// SubjectsByCoverage tabulates, for each coverage cutoff, the frequency
// distribution of distinct subjects contributing to the covered span of each
// transcript meeting that cutoff.  The match threshold is fixed across the
// sweep.  Rows are ordered by cutoff, then by subject multiplicity.
func (p Pairs) SubjectsByCoverage(matchThreshold float64, cutoffs []float64, countRepMatches bool) []MultiplicityRow {
	cov := p.QueryCoverages(matchThreshold, countRepMatches)
	groups := p.FilterByMatchFraction(matchThreshold, countRepMatches).GroupByQuery()

	// Distinct contigs per transcript, over the records that survived the
	// match filter (only those contribute covered span).
	nSubjects := make(map[string]int, len(groups))
	for q, recs := range groups {
		subjects := make(map[string]struct{}, len(recs))
		for _, r := range recs {
			subjects[r.TName] = struct{}{}
		}
		nSubjects[q] = len(subjects)
	}

	var rows []MultiplicityRow
	for _, c := range cutoffs {
		freq := make(map[int]int)
		for q, v := range cov {
			if !(v >= c) { // NaN compares false
				continue
			}
			if n := nSubjects[q]; n > 0 {
				freq[n]++
			}
		}
		mults := make([]int, 0, len(freq))
		for n := range freq {
			mults = append(mults, n)
		}
		sort.Ints(mults)
		for _, n := range mults {
			rows = append(rows, MultiplicityRow{Cutoff: c, Subjects: n, Count: freq[n]})
		}
	}
	return rows
}
