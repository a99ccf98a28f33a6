package coverage

import (
	"fmt"
	"runtime"
)

// Opts configures the coverage engine.
type Opts struct {
	// MatchThresholds is the set of match-quality thresholds swept by the
	// summarizer.  A record passes a threshold when matches / coveredBases is
	// at least the threshold.  Each value must be in (0, 1].
	MatchThresholds []float64
	// CoverageCutoffs is the ascending set of coverage-fraction cutoffs, each
	// in [0, 1].
	CoverageCutoffs []float64
	// CountRepMatches includes repeat-space matches in the match-fraction
	// numerator.  Default false: a repeat-masked match is weaker evidence of
	// recovery than a clean match.
	CountRepMatches bool
	// MultiplicityThreshold is the fixed match-quality threshold used for the
	// subject-multiplicity table.
	MultiplicityThreshold float64
	// Strict fails a dataset when an alignment references a sequence absent
	// from its metadata table, instead of retaining the record with undefined
	// coverage.
	Strict bool
	// Parallelism bounds the number of datasets processed concurrently.
	Parallelism int
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	MatchThresholds:       []float64{0.9, 0.95},
	CoverageCutoffs:       []float64{0.5, 0.7, 0.8, 0.9, 0.95},
	CountRepMatches:       false,
	MultiplicityThreshold: 0.95,
	Strict:                false,
	Parallelism:           runtime.NumCPU(),
}

// Validate reports the first structurally invalid option.
func (o Opts) Validate() error {
	if len(o.MatchThresholds) == 0 {
		return fmt.Errorf("no match thresholds")
	}
	for _, m := range o.MatchThresholds {
		if m <= 0 || m > 1 {
			return fmt.Errorf("match threshold %v outside (0,1]", m)
		}
	}
	if len(o.CoverageCutoffs) == 0 {
		return fmt.Errorf("no coverage cutoffs")
	}
	prev := -1.0
	for _, c := range o.CoverageCutoffs {
		if c < 0 || c > 1 {
			return fmt.Errorf("coverage cutoff %v outside [0,1]", c)
		}
		if c <= prev {
			return fmt.Errorf("coverage cutoffs must be strictly ascending, got %v after %v", c, prev)
		}
		prev = c
	}
	if o.MultiplicityThreshold <= 0 || o.MultiplicityThreshold > 1 {
		return fmt.Errorf("multiplicity threshold %v outside (0,1]", o.MultiplicityThreshold)
	}
	if o.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", o.Parallelism)
	}
	return nil
}
