// Package psl parses PSL-style pairwise alignment tables, the format produced
// by aligning transcripts (queries) against assembly contigs (subjects).
//
// Each line holds exactly 20 whitespace-separated columns:
//
//	qName qSize qStart qEnd tName tSize tStart tEnd strand
//	matches misMatches repMatches
//	qNumInsert qBaseInsert tNumInsert tBaseInsert
//	blockCount blockSizes qStarts tStarts
//
// The last three columns are comma-separated lists of blockCount entries (a
// trailing comma is accepted).  All coordinates stored in a Record are
// forward-strand, 0-based, half-open, regardless of the strand encoding in
// the file: reverse-strand per-block query starts, which the format gives
// relative to the end of the query, are rewritten at parse time.
package psl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/genecov/encoding/seqlen"
)

// Strand is the orientation of the query relative to the subject.
type Strand int8

const (
	// Forward means the query aligns in its own orientation.
	Forward Strand = iota
	// Reverse means the reverse complement of the query aligns.
	Reverse
)

func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// Record is one pairwise alignment.  Block coordinates are normalized per the
// package comment; for reverse-strand records QStarts ascend and TStarts
// consequently descend, with BlockSizes[i], QStarts[i], TStarts[i] always
// describing the same aligned block.
type Record struct {
	QName          string
	QSize          int
	QStart, QEnd   int
	TName          string
	TSize          int
	TStart, TEnd   int
	Strand         Strand
	Matches        int
	Mismatches     int
	RepMatches     int
	QNumInsert     int
	QBaseInsert    int
	TNumInsert     int
	TBaseInsert    int
	BlockSizes     []int
	QStarts        []int
	TStarts        []int

	// Lengths resolved from the sequence metadata tables at parse time.
	// Zero, with the Has flag false, when the name is absent from its table
	// (or the table is empty); coverage fractions derived from such records
	// are undefined and excluded from every cutoff bucket.
	QueryLen      int
	SubjectLen    int
	HasQueryLen   bool
	HasSubjectLen bool
}

// ParseError reports one malformed alignment line.  It is collected by the
// Reader and never aborts the file.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NumColumns is the exact column count of the supported format.
const NumColumns = 20

// Reader streams Records from an alignment file.  Usage follows
// bufio.Scanner: Scan, Record, then Err once Scan returns false.  Malformed
// lines are skipped and reported through ParseErrors.
type Reader struct {
	path     string
	sc       *bufio.Scanner
	subject  *seqlen.Table
	query    *seqlen.Table
	rec      Record
	nLine    int
	inHeader bool
	err      error
	parseErr []error

	missingMeta      int
	lengthMismatches int
}

// NewReader returns a Reader over r.  path is used in error messages only.
// subject and query resolve contig and transcript lengths; either may be
// empty.
func NewReader(r io.Reader, path string, subject, query *seqlen.Table) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 4*1024*1024)
	return &Reader{path: path, sc: sc, subject: subject, query: query}
}

// Scan advances to the next well-formed record.  It returns false at end of
// input or on an I/O error (see Err).  Blank lines, '#' comments, and the
// five-line psLayout preamble that BLAT emits by default are skipped without
// a warning.
func (r *Reader) Scan() bool {
	for r.sc.Scan() {
		r.nLine++
		line := strings.TrimSpace(r.sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if strings.HasPrefix(line, "psLayout") {
			r.inHeader = true
			continue
		}
		if strings.Trim(line, "-") == "" {
			// The dashed rule ends the preamble.
			r.inHeader = false
			continue
		}
		if r.inHeader {
			continue
		}
		rec, err := Parse(line)
		if err != nil {
			r.parseErr = append(r.parseErr, &ParseError{Path: r.path, Line: r.nLine, Err: err})
			continue
		}
		r.resolveLengths(&rec)
		r.rec = rec
		return true
	}
	r.err = r.sc.Err()
	return false
}

// Record returns the record read by the last successful Scan.
func (r *Reader) Record() Record { return r.rec }

// Err returns the I/O error that terminated scanning, if any.
func (r *Reader) Err() error { return r.err }

// ParseErrors returns the malformed-line errors collected so far, in file
// order.
func (r *Reader) ParseErrors() []error { return r.parseErr }

// MissingMeta returns the number of length lookups that failed because a
// name was absent from its metadata table.
func (r *Reader) MissingMeta() int { return r.missingMeta }

// LengthMismatches returns the number of records whose in-file size column
// disagreed with the metadata table.  The table value wins.
func (r *Reader) LengthMismatches() int { return r.lengthMismatches }

func (r *Reader) resolveLengths(rec *Record) {
	if n, ok := r.query.Lookup(rec.QName); ok {
		rec.QueryLen, rec.HasQueryLen = n, true
		if n != rec.QSize {
			r.lengthMismatches++
		}
	} else {
		r.missingMeta++
	}
	if n, ok := r.subject.Lookup(rec.TName); ok {
		rec.SubjectLen, rec.HasSubjectLen = n, true
		if n != rec.TSize {
			r.lengthMismatches++
		}
	} else {
		r.missingMeta++
	}
}

// Parse parses a single alignment line.  Lengths are not resolved; see
// Reader.
func Parse(line string) (Record, error) {
	var rec Record
	fields := strings.Fields(line)
	if len(fields) != NumColumns {
		return rec, fmt.Errorf("got %d columns, want %d", len(fields), NumColumns)
	}
	var err error
	atoi := func(col int, name string) int {
		if err != nil {
			return 0
		}
		v, e := strconv.Atoi(fields[col])
		if e != nil {
			err = fmt.Errorf("bad %s %q", name, fields[col])
			return 0
		}
		if v < 0 {
			err = fmt.Errorf("negative %s %d", name, v)
			return 0
		}
		return v
	}
	rec.QName = fields[0]
	rec.QSize = atoi(1, "qSize")
	rec.QStart = atoi(2, "qStart")
	rec.QEnd = atoi(3, "qEnd")
	rec.TName = fields[4]
	rec.TSize = atoi(5, "tSize")
	rec.TStart = atoi(6, "tStart")
	rec.TEnd = atoi(7, "tEnd")
	rec.Matches = atoi(9, "matches")
	rec.Mismatches = atoi(10, "misMatches")
	rec.RepMatches = atoi(11, "repMatches")
	rec.QNumInsert = atoi(12, "qNumInsert")
	rec.QBaseInsert = atoi(13, "qBaseInsert")
	rec.TNumInsert = atoi(14, "tNumInsert")
	rec.TBaseInsert = atoi(15, "tBaseInsert")
	blockCount := atoi(16, "blockCount")
	if err != nil {
		return rec, err
	}
	if blockCount == 0 {
		return rec, fmt.Errorf("blockCount is 0")
	}
	switch fields[8] {
	case "+":
		rec.Strand = Forward
	case "-":
		rec.Strand = Reverse
	default:
		return rec, fmt.Errorf("bad strand %q", fields[8])
	}
	if rec.QEnd <= rec.QStart {
		return rec, fmt.Errorf("query end %d <= start %d", rec.QEnd, rec.QStart)
	}
	if rec.TEnd <= rec.TStart {
		return rec, fmt.Errorf("subject end %d <= start %d", rec.TEnd, rec.TStart)
	}
	if rec.BlockSizes, err = intList(fields[17], blockCount, "blockSizes"); err != nil {
		return rec, err
	}
	if rec.QStarts, err = intList(fields[18], blockCount, "qStarts"); err != nil {
		return rec, err
	}
	if rec.TStarts, err = intList(fields[19], blockCount, "tStarts"); err != nil {
		return rec, err
	}
	if rec.Strand == Reverse {
		normalizeReverse(&rec)
	}
	if err := validate(&rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// normalizeReverse rewrites per-block query starts from end-relative
// (reverse-complement) coordinates to forward-strand coordinates, then
// reverses the block order so QStarts ascend.  Triplet correspondence across
// the three lists is preserved.
func normalizeReverse(rec *Record) {
	n := len(rec.BlockSizes)
	for i := range rec.QStarts {
		rec.QStarts[i] = rec.QSize - (rec.QStarts[i] + rec.BlockSizes[i])
	}
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		rec.BlockSizes[i], rec.BlockSizes[j] = rec.BlockSizes[j], rec.BlockSizes[i]
		rec.QStarts[i], rec.QStarts[j] = rec.QStarts[j], rec.QStarts[i]
		rec.TStarts[i], rec.TStarts[j] = rec.TStarts[j], rec.TStarts[i]
	}
}

func validate(rec *Record) error {
	sum := 0
	for i, size := range rec.BlockSizes {
		if size <= 0 {
			return fmt.Errorf("block %d: nonpositive size %d", i, size)
		}
		sum += size
		if rec.QStarts[i] < 0 || rec.QStarts[i]+size > rec.QSize {
			return fmt.Errorf("block %d: query interval [%d,%d) outside [0,%d)",
				i, rec.QStarts[i], rec.QStarts[i]+size, rec.QSize)
		}
		if rec.TStarts[i] < 0 || rec.TStarts[i]+size > rec.TSize {
			return fmt.Errorf("block %d: subject interval [%d,%d) outside [0,%d)",
				i, rec.TStarts[i], rec.TStarts[i]+size, rec.TSize)
		}
	}
	min := rec.QSize
	if rec.TSize < min {
		min = rec.TSize
	}
	if sum > min {
		return fmt.Errorf("block sizes sum to %d, more than min(qSize, tSize) %d", sum, min)
	}
	if m := rec.Matches + rec.Mismatches + rec.RepMatches; m > sum {
		return fmt.Errorf("matches+misMatches+repMatches %d exceeds aligned bases %d", m, sum)
	}
	return nil
}

func intList(s string, want int, name string) ([]int, error) {
	parts := strings.Split(strings.TrimSuffix(s, ","), ",")
	if len(parts) != want {
		return nil, fmt.Errorf("%s has %d entries, want %d", name, len(parts), want)
	}
	out := make([]int, want)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%s entry %d: bad value %q", name, i, p)
		}
		out[i] = v
	}
	return out, nil
}
