package coverage

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/genecov/encoding/psl"
	"github.com/stretchr/testify/require"
)

const scenarioPSL = `T1 1000 0 800 C1 5000 100 500 + 380 20 0 0 0 0 0 1 400 0 100
T1 1000 350 800 C2 5000 600 1050 + 420 30 0 0 0 0 0 1 450 350 600
T1 1000 500 400 C1 5000 100 200 + 10 0 0 0 0 0 0 1 10 500 100
`

func writeTestFiles(t *testing.T) (dir string, ds Dataset) {
	t.Helper()
	dir, err := ioutil.TempDir("", "genecov")
	require.NoError(t, err)
	write := func(name, data string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
		return path
	}
	ds = Dataset{
		Label:          "asm1",
		AlignmentPath:  write("asm1.psl", scenarioPSL),
		AssemblyPath:   write("asm1.fai", "C1\t5000\nC2\t5000\n"),
		TranscriptPath: write("transcripts.fai", "T1\t1000\n"),
	}
	return dir, ds
}

func testOpts() Opts {
	opts := DefaultOpts
	opts.MatchThresholds = []float64{0.9}
	opts.CoverageCutoffs = []float64{0.5, 0.7, 0.8, 0.9, 0.95}
	opts.MultiplicityThreshold = 0.9
	opts.Parallelism = 2
	return opts
}

func TestProcess(t *testing.T) {
	ctx := vcontext.Background()
	dir, ds := writeTestFiles(t)
	defer os.RemoveAll(dir) // nolint: errcheck

	res := Process(ctx, ds, testOpts())
	require.NoError(t, res.Err)

	// The malformed third line (end <= start) is a warning, not a failure.
	require.Len(t, res.Warnings, 1)
	_, ok := res.Warnings[0].(*psl.ParseError)
	require.True(t, ok, "want ParseError, got %v", res.Warnings[0])

	require.Equal(t, 2, res.Stats.Records)
	require.Equal(t, 1, res.Stats.SkippedLines)
	require.Equal(t, 0, res.Stats.MissingMetadata)
	require.Equal(t, 1, res.Stats.Queries)
	require.Equal(t, 2, res.Stats.Subjects)

	require.Len(t, res.Summary, 5)
	wantCovered := []int{1, 1, 1, 0, 0}
	for i, row := range res.Summary {
		require.Equal(t, 0.9, row.MatchThreshold)
		require.Equal(t, wantCovered[i], row.Covered, "cutoff %v", row.Cutoff)
		require.Equal(t, 1, row.Total)
	}

	require.Len(t, res.PerQuery, 5)
	require.Equal(t, "T1", res.PerQuery[0].Query)

	require.Len(t, res.Multiplicity, 3)
	for _, row := range res.Multiplicity {
		require.Equal(t, 2, row.Subjects)
		require.Equal(t, 1, row.Count)
	}
}

func TestProcessStrict(t *testing.T) {
	ctx := vcontext.Background()
	dir, ds := writeTestFiles(t)
	defer os.RemoveAll(dir) // nolint: errcheck

	// Drop T1 from the transcript table: lenient mode retains the records
	// with undefined coverage, strict mode fails the dataset.
	require.NoError(t, ioutil.WriteFile(ds.TranscriptPath, []byte("T2\t500\n"), 0644))

	opts := testOpts()
	res := Process(ctx, ds, opts)
	require.NoError(t, res.Err)
	require.Equal(t, 2, res.Stats.MissingMetadata)
	for _, row := range res.Summary {
		require.Equal(t, 0, row.Covered)
		require.Equal(t, 1, row.Total)
	}

	opts.Strict = true
	res = Process(ctx, ds, opts)
	require.Error(t, res.Err)
}

func TestProcessUnreadableAlignment(t *testing.T) {
	ctx := vcontext.Background()
	dir, ds := writeTestFiles(t)
	defer os.RemoveAll(dir) // nolint: errcheck

	ds.AlignmentPath = filepath.Join(dir, "nonexistent.psl")
	res := Process(ctx, ds, testOpts())
	require.Error(t, res.Err)
}

func TestProcessDegradedMetadata(t *testing.T) {
	ctx := vcontext.Background()
	dir, ds := writeTestFiles(t)
	defer os.RemoveAll(dir) // nolint: errcheck

	// An unrecognized metadata file degrades to an empty table with a
	// warning; the dataset still runs.
	require.NoError(t, ioutil.WriteFile(ds.TranscriptPath, []byte("not fasta, not an index\n"), 0644))
	res := Process(ctx, ds, testOpts())
	require.NoError(t, res.Err)
	require.NotEmpty(t, res.Warnings)
	require.Equal(t, 2, res.Stats.MissingMetadata)
}

func TestProcessTotalOverride(t *testing.T) {
	ctx := vcontext.Background()
	dir, ds := writeTestFiles(t)
	defer os.RemoveAll(dir) // nolint: errcheck

	ds.TotalTranscripts = 4
	res := Process(ctx, ds, testOpts())
	require.NoError(t, res.Err)
	for _, row := range res.Summary {
		require.Equal(t, 4, row.Total)
	}
}

func TestProcessInconsistentTotal(t *testing.T) {
	ctx := vcontext.Background()
	dir, err := ioutil.TempDir("", "genecov")
	require.NoError(t, err)
	defer os.RemoveAll(dir) // nolint: errcheck

	data := ""
	for _, q := range []string{"T1", "T2"} {
		data += q + " 1000 0 400 C1 5000 100 500 + 400 0 0 0 0 0 0 1 400 0 100\n"
	}
	alignment := filepath.Join(dir, "a.psl")
	require.NoError(t, ioutil.WriteFile(alignment, []byte(data), 0644))
	ds := Dataset{Label: "asm1", AlignmentPath: alignment, TotalTranscripts: 1}

	res := Process(ctx, ds, testOpts())
	require.Error(t, res.Err)
	_, ok := res.Err.(*InconsistentTotalError)
	require.True(t, ok, "want InconsistentTotalError, got %v", res.Err)
}

func TestReadManifest(t *testing.T) {
	ctx := vcontext.Background()
	dir, err := ioutil.TempDir("", "genecov")
	require.NoError(t, err)
	defer os.RemoveAll(dir) // nolint: errcheck

	path := filepath.Join(dir, "manifest.csv")
	require.NoError(t, ioutil.WriteFile(path, []byte(
		"label,alignment,assembly,transcripts,total\n"+
			"asm1,a1.psl,a1.fa,tr.fa,\n"+
			"asm2,a2.psl,,tr.fa,1500\n"), 0644))
	datasets, err := ReadManifest(ctx, path)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	require.Equal(t, Dataset{Label: "asm1", AlignmentPath: "a1.psl", AssemblyPath: "a1.fa", TranscriptPath: "tr.fa"}, datasets[0])
	require.Equal(t, Dataset{Label: "asm2", AlignmentPath: "a2.psl", TranscriptPath: "tr.fa", TotalTranscripts: 1500}, datasets[1])

	// Duplicate labels are rejected.
	require.NoError(t, ioutil.WriteFile(path, []byte(
		"asm1,a1.psl,,\nasm1,a2.psl,,\n"), 0644))
	_, err = ReadManifest(ctx, path)
	require.Error(t, err)

	// Wrong column count is rejected.
	require.NoError(t, ioutil.WriteFile(path, []byte("asm1,a1.psl\n"), 0644))
	_, err = ReadManifest(ctx, path)
	require.Error(t, err)
}

func TestRunIsolatesFailures(t *testing.T) {
	ctx := vcontext.Background()
	dir, ds := writeTestFiles(t)
	defer os.RemoveAll(dir) // nolint: errcheck

	bad := Dataset{Label: "broken", AlignmentPath: filepath.Join(dir, "missing.psl")}
	results, err := Run(ctx, []Dataset{ds, bad}, testOpts())
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Results keep manifest order; the broken dataset does not abort its
	// sibling.
	require.Equal(t, "asm1", results[0].Label)
	require.NoError(t, results[0].Err)
	require.NotEmpty(t, results[0].Summary)
	require.Equal(t, "broken", results[1].Label)
	require.Error(t, results[1].Err)
}
