package coverage

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestStatsMerge(t *testing.T) {
	a := Stats{Records: 2, SkippedLines: 1, MissingMetadata: 3, LengthMismatches: 1, Queries: 2, Subjects: 1}
	b := Stats{Records: 5, Queries: 1, Subjects: 4}
	expect.EQ(t, a.Merge(b), Stats{
		Records:          7,
		SkippedLines:     1,
		MissingMetadata:  3,
		LengthMismatches: 1,
		Queries:          3,
		Subjects:         5,
	})
	// Value receiver: the operands are unchanged.
	expect.EQ(t, a.Records, 2)
	expect.EQ(t, b.Records, 5)
	expect.EQ(t, Stats{}.Merge(Stats{}), Stats{})
}
