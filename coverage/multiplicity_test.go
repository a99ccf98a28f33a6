package coverage

import (
	"testing"

	"github.com/grailbio/genecov/encoding/psl"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestSubjectsByCoverageScenario(t *testing.T) {
	// T1 is jointly reconstructed from two contigs: multiplicity 2 at every
	// cutoff it meets.
	rows := scenarioPairs().SubjectsByCoverage(0.9, testCutoffs, false)
	assert.EQ(t, len(rows), 3) // cutoffs 0.5, 0.7, 0.8; nothing at 0.9, 0.95
	for i, c := range []float64{0.5, 0.7, 0.8} {
		expect.EQ(t, rows[i], MultiplicityRow{Cutoff: c, Subjects: 2, Count: 1})
	}
}

func TestSubjectsByCoverageDistribution(t *testing.T) {
	p := NewPairs("asm1", []psl.Record{
		// T1: fully covered by one contig.
		testRec("T1", 1000, "C1", 1000, [2]int{0, 1000}),
		// T2: covered 0.6 by two contigs.
		testRec("T2", 1000, "C1", 300, [2]int{0, 300}),
		testRec("T2", 1000, "C2", 300, [2]int{300, 300}),
		// T3: covered 0.6 by one contig, duplicate alignments to it.
		testRec("T3", 1000, "C3", 300, [2]int{0, 300}),
		testRec("T3", 1000, "C3", 300, [2]int{300, 300}),
	})
	rows := p.SubjectsByCoverage(0.9, []float64{0.5, 0.9}, false)
	// At 0.5: T1 has 1 contig, T2 has 2, T3 has 1 (distinct names, not
	// records).  At 0.9: only T1.
	assert.EQ(t, len(rows), 3)
	expect.EQ(t, rows[0], MultiplicityRow{Cutoff: 0.5, Subjects: 1, Count: 2})
	expect.EQ(t, rows[1], MultiplicityRow{Cutoff: 0.5, Subjects: 2, Count: 1})
	expect.EQ(t, rows[2], MultiplicityRow{Cutoff: 0.9, Subjects: 1, Count: 1})
}

func TestSubjectsByCoverageOnlyFilteredRecordsContribute(t *testing.T) {
	p := NewPairs("asm1", []psl.Record{
		testRec("T1", 1000, "C1", 600, [2]int{0, 600}),   // passes
		testRec("T1", 1000, "C2", 100, [2]int{600, 400}), // fails the threshold
	})
	rows := p.SubjectsByCoverage(0.9, []float64{0.5}, false)
	// C2's failing alignment contributes no covered span, so multiplicity
	// is 1.
	assert.EQ(t, len(rows), 1)
	expect.EQ(t, rows[0], MultiplicityRow{Cutoff: 0.5, Subjects: 1, Count: 1})
}
