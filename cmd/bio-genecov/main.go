// Command bio-genecov evaluates genome-assembly quality by measuring how
// completely annotated transcripts are recovered when aligned back against
// the assembly.
//
// It consumes a CSV manifest with one row per dataset:
//
//	label, alignment file, assembly fasta/index, transcript fasta/index[, total transcripts]
//
// and produces, under -output-dir:
//
//	<label>.transcripts.tsv   per-transcript covered booleans per cutoff
//	coverage_summary.tsv      gene-body coverage counts across datasets
//	subject_multiplicity.tsv  contig-fragmentation histogram across datasets
//
// Datasets are processed independently by a bounded worker pool; a failed
// dataset is reported and skipped without aborting its siblings.  The exit
// status is nonzero when any dataset wholly failed.
//
// Example:
//
//	bio-genecov -manifest assemblies.csv -output-dir eval \
//	    -match-thresholds 0.9,0.95 -coverage-cutoffs 0.5,0.7,0.8,0.9,0.95
package main

import (
	"context"
	"flag"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/genecov/coverage"
	"github.com/grailbio/hts/bgzf"
)

const maxLoggedWarnings = 10

type genecovFlags struct {
	manifestPath string
	outputDir    string
	bgzip        bool

	matchThresholds string
	coverageCutoffs string
}

func parseFloatList(s, name string) []float64 {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			log.Fatalf("-%s: bad value %q: %v", name, part, err)
		}
		out = append(out, v)
	}
	return out
}

// createTSV opens a TSV writer for path, optionally bgzip-compressed (".gz"
// is appended to the path in that case).  The returned closer flushes and
// closes the whole stack.
func createTSV(ctx context.Context, path string, bgzip bool, parallelism int) (*tsv.Writer, func() error, string) {
	if bgzip {
		path = path + ".gz"
	}
	dst, err := file.Create(ctx, path)
	if err != nil {
		log.Fatalf("create %s: %v", path, err)
	}
	var (
		w     io.Writer = dst.Writer(ctx)
		bgzfw *bgzf.Writer
	)
	if bgzip {
		bgzfw = bgzf.NewWriter(w, parallelism)
		w = bgzfw
	}
	tsvw := tsv.NewWriter(w)
	closer := func() error {
		if err := tsvw.Flush(); err != nil {
			return err
		}
		if bgzfw != nil {
			if err := bgzfw.Close(); err != nil {
				return err
			}
		}
		return dst.Close(ctx)
	}
	return tsvw, closer, path
}

func writeFloat(w *tsv.Writer, v float64) {
	w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

func writeQueryTable(ctx context.Context, flags genecovFlags, res *coverage.Result, parallelism int) {
	path := filepath.Join(flags.outputDir, res.Label+".transcripts.tsv")
	w, closer, path := createTSV(ctx, path, flags.bgzip, parallelism)
	w.WriteString("transcript\tmatch_threshold\tcoverage_cutoff\tcovered")
	if err := w.EndLine(); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	for _, row := range res.PerQuery {
		w.WriteString(row.Query)
		writeFloat(w, row.MatchThreshold)
		writeFloat(w, row.Cutoff)
		w.WriteString(strconv.FormatBool(row.Covered))
		if err := w.EndLine(); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
	}
	if err := closer(); err != nil {
		log.Fatalf("close %s: %v", path, err)
	}
	log.Printf("wrote %d rows to %s", len(res.PerQuery), path)
}

func writeSummary(ctx context.Context, flags genecovFlags, results []*coverage.Result, parallelism int) {
	path := filepath.Join(flags.outputDir, "coverage_summary.tsv")
	w, closer, path := createTSV(ctx, path, flags.bgzip, parallelism)
	w.WriteString("dataset\tmatch_threshold\tcoverage_cutoff\tcovered_transcripts\ttotal_transcripts")
	if err := w.EndLine(); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, row := range res.Summary {
			w.WriteString(res.Label)
			writeFloat(w, row.MatchThreshold)
			writeFloat(w, row.Cutoff)
			w.WriteInt64(int64(row.Covered))
			w.WriteInt64(int64(row.Total))
			if err := w.EndLine(); err != nil {
				log.Fatalf("write %s: %v", path, err)
			}
		}
	}
	if err := closer(); err != nil {
		log.Fatalf("close %s: %v", path, err)
	}
	log.Printf("wrote %s", path)
}

func writeMultiplicity(ctx context.Context, flags genecovFlags, results []*coverage.Result, parallelism int) {
	path := filepath.Join(flags.outputDir, "subject_multiplicity.tsv")
	w, closer, path := createTSV(ctx, path, flags.bgzip, parallelism)
	w.WriteString("dataset\tcoverage_cutoff\tsubjects\ttranscripts")
	if err := w.EndLine(); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, row := range res.Multiplicity {
			w.WriteString(res.Label)
			writeFloat(w, row.Cutoff)
			w.WriteInt64(int64(row.Subjects))
			w.WriteInt64(int64(row.Count))
			if err := w.EndLine(); err != nil {
				log.Fatalf("write %s: %v", path, err)
			}
		}
	}
	if err := closer(); err != nil {
		log.Fatalf("close %s: %v", path, err)
	}
	log.Printf("wrote %s", path)
}

func reportWarnings(res *coverage.Result) {
	for i, warn := range res.Warnings {
		if i == maxLoggedWarnings {
			log.Printf("dataset %s: ... and %d more warnings", res.Label, len(res.Warnings)-i)
			break
		}
		log.Printf("dataset %s: warning: %v", res.Label, warn)
	}
	if s := res.Stats; s.MissingMetadata > 0 || s.LengthMismatches > 0 {
		log.Printf("dataset %s: %d missing-metadata lookups, %d length mismatches",
			res.Label, s.MissingMetadata, s.LengthMismatches)
	}
}

func main() {
	opts := coverage.DefaultOpts
	flags := genecovFlags{}
	flag.StringVar(&flags.manifestPath, "manifest", "", "CSV manifest: label, alignment file, assembly fasta/index, transcript fasta/index[, total transcripts]. Required.")
	flag.StringVar(&flags.outputDir, "output-dir", ".", "Directory for output tables.")
	flag.BoolVar(&flags.bgzip, "bgzip", false, "bgzip-compress the output tables.")
	flag.StringVar(&flags.matchThresholds, "match-thresholds", "0.9,0.95", "Comma-separated match-quality thresholds, each in (0,1].")
	flag.StringVar(&flags.coverageCutoffs, "coverage-cutoffs", "0.5,0.7,0.8,0.9,0.95", "Comma-separated ascending coverage-fraction cutoffs, each in [0,1].")
	flag.BoolVar(&opts.CountRepMatches, "count-repeat-matches", coverage.DefaultOpts.CountRepMatches, "Count repeat-space matches toward the match fraction.")
	flag.Float64Var(&opts.MultiplicityThreshold, "multiplicity-threshold", coverage.DefaultOpts.MultiplicityThreshold, "Match threshold for the subject-multiplicity table.")
	flag.BoolVar(&opts.Strict, "strict", coverage.DefaultOpts.Strict, "Fail a dataset when an alignment references a sequence absent from its metadata table.")
	flag.IntVar(&opts.Parallelism, "parallelism", coverage.DefaultOpts.Parallelism, "Number of datasets processed concurrently.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if flags.manifestPath == "" {
		log.Fatalf("-manifest is required")
	}
	opts.MatchThresholds = parseFloatList(flags.matchThresholds, "match-thresholds")
	opts.CoverageCutoffs = parseFloatList(flags.coverageCutoffs, "coverage-cutoffs")
	if err := opts.Validate(); err != nil {
		log.Fatalf("bad options: %v", err)
	}

	datasets, err := coverage.ReadManifest(ctx, flags.manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}
	log.Printf("%d datasets in %s", len(datasets), flags.manifestPath)

	results, err := coverage.Run(ctx, datasets, opts)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	var merged coverage.Stats
	nFailed := 0
	for _, res := range results {
		reportWarnings(res)
		if res.Err != nil {
			nFailed++
			continue
		}
		merged = merged.Merge(res.Stats)
		writeQueryTable(ctx, flags, res, opts.Parallelism)
	}
	writeSummary(ctx, flags, results, opts.Parallelism)
	writeMultiplicity(ctx, flags, results, opts.Parallelism)
	log.Printf("totals: %d records, %d transcripts, %d contigs, %d skipped lines, %d missing-metadata lookups",
		merged.Records, merged.Queries, merged.Subjects, merged.SkippedLines, merged.MissingMetadata)

	if nFailed > 0 {
		log.Fatalf("%d of %d datasets failed", nFailed, len(results))
	}
	log.Printf("all %d datasets succeeded", len(results))
}
