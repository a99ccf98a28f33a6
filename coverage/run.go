package coverage

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Run processes the datasets through the full pipeline with a bounded worker
// pool.  Datasets share no mutable state, so each worker owns its dataset
// exclusively; a dataset's failure is recorded in its Result and never aborts
// siblings.  Results are returned in manifest order.
func Run(ctx context.Context, datasets []Dataset, opts Opts) ([]*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	results := make([]*Result, len(datasets))
	parallelism := opts.Parallelism
	if parallelism > len(datasets) {
		parallelism = len(datasets)
	}
	err := traverse.Each(parallelism, func(job int) error {
		for i := job; i < len(datasets); i += parallelism {
			ds := datasets[i]
			log.Printf("dataset %s: start (%s)", ds.Label, ds.AlignmentPath)
			r := Process(ctx, ds, opts)
			results[i] = r
			if r.Err != nil {
				log.Printf("dataset %s: failed: %v", ds.Label, r.Err)
			} else {
				log.Printf("dataset %s: %d records, %d transcripts, %d contigs, %d warnings",
					ds.Label, r.Stats.Records, r.Stats.Queries, r.Stats.Subjects, len(r.Warnings))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
