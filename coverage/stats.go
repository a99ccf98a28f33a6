package coverage

// Stats represents high-level per-dataset counters accumulated during
// ingestion.
type Stats struct {
	// Records is the number of well-formed alignment records parsed.
	Records int
	// SkippedLines is the number of malformed lines skipped (each also
	// produces a ParseError warning).
	SkippedLines int
	// MissingMetadata counts length lookups that failed because a sequence
	// name was absent from its metadata table.
	MissingMetadata int
	// LengthMismatches counts records whose in-file size column disagreed
	// with the metadata table.
	LengthMismatches int
	// Queries is the number of distinct transcripts observed.
	Queries int
	// Subjects is the number of distinct contigs observed.
	Subjects int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Records += o.Records
	s.SkippedLines += o.SkippedLines
	s.MissingMetadata += o.MissingMetadata
	s.LengthMismatches += o.LengthMismatches
	s.Queries += o.Queries
	s.Subjects += o.Subjects
	return s
}
