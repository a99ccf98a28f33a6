package coverage

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// ReadManifest reads the run manifest, a CSV file with one row per dataset:
//
//	label, alignment path, assembly path, transcript path[, total transcripts]
//
// The two metadata paths may be empty (see seqlen.Load).  A header row whose
// first cell is "label" or "dataset" is skipped.  Labels must be unique.
func ReadManifest(ctx context.Context, path string) (datasets []Dataset, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)

	r := csv.NewReader(in.Reader(ctx))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}

	seen := map[string]bool{}
	for i, row := range rows {
		if i == 0 && len(row) > 0 &&
			(strings.EqualFold(row[0], "label") || strings.EqualFold(row[0], "dataset")) {
			continue
		}
		if len(row) < 4 || len(row) > 5 {
			return nil, fmt.Errorf("%s: row %d: want 4 or 5 columns, got %d", path, i+1, len(row))
		}
		ds := Dataset{
			Label:          strings.TrimSpace(row[0]),
			AlignmentPath:  strings.TrimSpace(row[1]),
			AssemblyPath:   strings.TrimSpace(row[2]),
			TranscriptPath: strings.TrimSpace(row[3]),
		}
		if ds.Label == "" {
			return nil, fmt.Errorf("%s: row %d: empty dataset label", path, i+1)
		}
		if seen[ds.Label] {
			return nil, fmt.Errorf("%s: row %d: duplicate dataset label %q", path, i+1, ds.Label)
		}
		seen[ds.Label] = true
		if ds.AlignmentPath == "" {
			return nil, fmt.Errorf("%s: row %d: empty alignment path", path, i+1)
		}
		if len(row) == 5 && strings.TrimSpace(row[4]) != "" {
			total, err := strconv.Atoi(strings.TrimSpace(row[4]))
			if err != nil || total < 0 {
				return nil, fmt.Errorf("%s: row %d: bad transcript total %q", path, i+1, row[4])
			}
			ds.TotalTranscripts = total
		}
		datasets = append(datasets, ds)
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("%s: no datasets", path)
	}
	return datasets, nil
}
