package coverage

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/genecov/encoding/psl"
	"github.com/grailbio/genecov/encoding/seqlen"
	"github.com/pkg/errors"
)

// Dataset describes one assembly/transcript-set pair to evaluate.
type Dataset struct {
	// Label identifies the dataset in all output tables.  Unique per run.
	Label string
	// AlignmentPath is the PSL-style alignment file (transcripts vs. the
	// assembly).
	AlignmentPath string
	// AssemblyPath holds contig lengths (FASTA or length index).  Optional.
	AssemblyPath string
	// TranscriptPath holds transcript lengths (FASTA or length index).
	// Optional.
	TranscriptPath string
	// TotalTranscripts, when positive, overrides the observed transcript
	// count as the summary denominator.  It must be at least the observed
	// count.
	TotalTranscripts int
}

// Result is the outcome of one dataset's pipeline.  When Err is nil the
// tables are complete; Warnings may still hold recoverable problems
// (malformed lines, degraded metadata).
type Result struct {
	Label        string
	Pairs        Pairs
	Summary      []SummaryRow
	Multiplicity []MultiplicityRow
	PerQuery     []QueryRow
	Stats        Stats
	Warnings     []error
	Err          error
}

// loadTable loads a metadata table for one role, degrading an unrecognized
// file to an empty table with a warning.  Unreadable paths are fatal for the
// dataset.
func loadTable(ctx context.Context, path string) (*seqlen.Table, error, error) {
	t, err := seqlen.Load(ctx, path)
	if err == nil {
		return t, nil, nil
	}
	if _, ok := err.(*seqlen.FormatError); ok {
		return nil, err, nil
	}
	return nil, nil, err
}

// Process runs the full pipeline for one dataset: metadata load, alignment
// ingestion, coverage summarization, and subject-multiplicity counting.
// Failures are recorded in Result.Err rather than returned, so sibling
// datasets proceed independently.
func Process(ctx context.Context, ds Dataset, opts Opts) *Result {
	res := &Result{Label: ds.Label}

	subject, warn, err := loadTable(ctx, ds.AssemblyPath)
	if err != nil {
		res.Err = err
		return res
	}
	if warn != nil {
		res.Warnings = append(res.Warnings, warn)
	}
	query, warn, err := loadTable(ctx, ds.TranscriptPath)
	if err != nil {
		res.Err = err
		return res
	}
	if warn != nil {
		res.Warnings = append(res.Warnings, warn)
	}

	in, err := file.Open(ctx, ds.AlignmentPath)
	if err != nil {
		res.Err = errors.Wrapf(err, "open %s", ds.AlignmentPath)
		return res
	}
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	pr := psl.NewReader(r, ds.AlignmentPath, subject, query)
	var recs []psl.Record
	for pr.Scan() {
		recs = append(recs, pr.Record())
	}
	scanErr := pr.Err()
	if err := in.Close(ctx); err != nil && scanErr == nil {
		scanErr = err
	}
	if scanErr != nil {
		res.Err = errors.Wrapf(scanErr, "read %s", ds.AlignmentPath)
		return res
	}

	res.Warnings = append(res.Warnings, pr.ParseErrors()...)
	res.Stats = Stats{
		Records:          len(recs),
		SkippedLines:     len(pr.ParseErrors()),
		MissingMetadata:  pr.MissingMeta(),
		LengthMismatches: pr.LengthMismatches(),
	}
	queries := map[string]struct{}{}
	subjects := map[string]struct{}{}
	for _, rec := range recs {
		queries[rec.QName] = struct{}{}
		subjects[rec.TName] = struct{}{}
	}
	res.Stats.Queries = len(queries)
	res.Stats.Subjects = len(subjects)

	if opts.Strict && pr.MissingMeta() > 0 {
		res.Err = fmt.Errorf("dataset %s: %d alignments reference sequences absent from the metadata tables",
			ds.Label, pr.MissingMeta())
		return res
	}

	res.Pairs = NewPairs(ds.Label, recs)
	for _, m := range opts.MatchThresholds {
		rows, err := res.Pairs.Summarize(m, opts.CoverageCutoffs, ds.TotalTranscripts, opts.CountRepMatches)
		if err != nil {
			res.Err = err
			return res
		}
		res.Summary = append(res.Summary, rows...)
		res.PerQuery = append(res.PerQuery, res.Pairs.QueryTable(m, opts.CoverageCutoffs, opts.CountRepMatches)...)
	}
	res.Multiplicity = res.Pairs.SubjectsByCoverage(opts.MultiplicityThreshold, opts.CoverageCutoffs, opts.CountRepMatches)
	return res
}
