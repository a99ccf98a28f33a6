// Package seqlen loads sequence-length metadata for a set of named sequences
// (assembly contigs or transcripts).  Lengths come either from a length index
// (name and length in the first two whitespace-separated columns of each line,
// so a samtools .fai file works unchanged) or from scanning a FASTA file
// directly.
package seqlen

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// FormatError reports a file that is neither a valid FASTA file nor a valid
// length index.  Callers typically degrade to an empty Table and record a
// warning instead of failing the dataset.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("seqlen: %s", e.Reason)
	}
	return fmt.Sprintf("seqlen: %s: %s", e.Path, e.Reason)
}

// Table maps a sequence name to its length.  Immutable once loaded; safe for
// concurrent readers.
type Table struct {
	lengths map[string]int
	names   []string
}

// Lookup returns the length of the named sequence.  A nil Table behaves as
// an empty one.
func (t *Table) Lookup(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	n, ok := t.lengths[name]
	return n, ok
}

// Len returns the number of sequences in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Names returns all sequence names, in the order of appearance in the source
// file.
func (t *Table) Names() []string { return t.names }

func newTable() *Table {
	return &Table{lengths: map[string]int{}}
}

func (t *Table) add(name string, length int) error {
	if _, ok := t.lengths[name]; ok {
		return &FormatError{Reason: fmt.Sprintf("duplicate sequence name %q", name)}
	}
	t.lengths[name] = length
	t.names = append(t.names, name)
	return nil
}

// New scans FASTA data and computes the length of every sequence.  The
// sequence name is the stretch of characters after '>' up to the first space.
// Lines may be arbitrarily long: unwrapped assembly FASTA (one contig per
// line) is routine input.
func New(r io.Reader) (*Table, error) {
	var (
		t       = newTable()
		br      = bufio.NewReader(r)
		seqName string
		bases   int
		started bool
	)
	for {
		line, err := br.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 {
			if line[0] == '>' {
				if started {
					if e := t.add(seqName, bases); e != nil {
						return nil, e
					}
				}
				seqName = strings.Split(string(line[1:]), " ")[0]
				if seqName == "" {
					return nil, &FormatError{Reason: "malformed FASTA file: empty sequence name"}
				}
				bases = 0
				started = true
			} else {
				if !started {
					return nil, &FormatError{Reason: "malformed FASTA file: sequence data before first header"}
				}
				bases += len(line)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "couldn't read FASTA data")
		}
	}
	if started {
		if err := t.add(seqName, bases); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NewIndex parses a length index.  Each line holds a sequence name and a
// nonnegative length in the first two columns; any further columns are
// ignored.
func NewIndex(r io.Reader) (*Table, error) {
	t := newTable()
	sc := bufio.NewScanner(r)
	nLine := 0
	for sc.Scan() {
		nLine++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, &FormatError{Reason: fmt.Sprintf("index line %d: want at least 2 columns, got %d", nLine, len(fields))}
		}
		length, err := strconv.Atoi(fields[1])
		if err != nil || length < 0 {
			return nil, &FormatError{Reason: fmt.Sprintf("index line %d: bad length %q", nLine, fields[1])}
		}
		if err := t.add(fields[0], length); err != nil {
			return nil, err
		}
	}
	if sc.Err() != nil {
		return nil, errors.Wrap(sc.Err(), "couldn't read length index")
	}
	return t, nil
}

// Load reads sequence lengths from path.  An empty path yields an empty
// table; downstream lookups for that role then fail closed.  A ".gz" suffix
// is transparently decompressed.  The format is sniffed from the first
// non-blank byte: '>' means FASTA, anything else a length index.
func Load(ctx context.Context, path string) (t *Table, err error) {
	if path == "" {
		return newTable(), nil
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz, e := gzip.NewReader(r)
		if e != nil {
			return nil, errors.Wrapf(e, "gzip %s", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	if t, err = load(r); err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Path = path
		}
		return nil, err
	}
	return t, nil
}

func load(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	first, err := firstByte(br)
	if err == io.EOF {
		return nil, &FormatError{Reason: "empty file"}
	}
	if err != nil {
		return nil, err
	}
	if first == '>' {
		return New(br)
	}
	return NewIndex(br)
}

// firstByte peeks at the first byte that is neither whitespace nor part of a
// blank line, without consuming input.
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b > ' ' {
			if err := br.UnreadByte(); err != nil {
				return 0, err
			}
			return b, nil
		}
	}
}
