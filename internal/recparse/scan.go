package recparse

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"seiscat/pkg/catalog"
)

// Result is the outcome of parsing one input line. Failed results carry the
// raw line and a reason code so the unparsed-line log can reproduce both.
type Result struct {
	Source  catalog.SourceRef
	Raw     string
	Status  Status
	Decoder string
	Fields  Fields
	Reason  Reason
	Detail  string
	// Rules lists the named correction rules applied after decoding (minute
	// rollover, era expansion, ...). A non-empty list implies RECOVERED.
	Rules []string
}

// ApplyRule records a named correction and downgrades OK to RECOVERED.
func (r *Result) ApplyRule(name string) {
	r.Rules = append(r.Rules, name)
	if r.Status == StatusOK {
		r.Status = StatusRecovered
	}
}

// Fail marks the result terminally failed. Fields are cleared so a failed
// record cannot leak decoded values downstream.
func (r *Result) Fail(reason Reason, detail string) {
	r.Status = StatusFailed
	r.Reason = reason
	r.Detail = detail
	r.Fields = nil
}

// Counts tallies scanner outcomes for one source file.
type Counts struct {
	Lines     int `json:"lines"`
	Blank     int `json:"blank"`
	Comment   int `json:"comment"`
	OK        int `json:"ok"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
}

// Verify checks the no-silent-drop identity: every non-blank, non-comment
// line must be accounted for as OK, RECOVERED, or FAILED.
func (c Counts) Verify() error {
	want := c.Lines - c.Blank - c.Comment
	got := c.OK + c.Recovered + c.Failed
	if got != want {
		return fmt.Errorf("parse counts do not close: %d results for %d parseable lines", got, want)
	}
	return nil
}

// Reclass moves one result between status buckets. Format builders use it
// when post-decode validation downgrades a decoded record to RECOVERED or
// FAILED, keeping the closure identity intact.
func (c *Counts) Reclass(from, to Status) {
	bucket := func(s Status) *int {
		switch s {
		case StatusOK:
			return &c.OK
		case StatusRecovered:
			return &c.Recovered
		default:
			return &c.Failed
		}
	}
	if from == to {
		return
	}
	*bucket(from)--
	*bucket(to)++
}

// Add accumulates another file's counts.
func (c *Counts) Add(o Counts) {
	c.Lines += o.Lines
	c.Blank += o.Blank
	c.Comment += o.Comment
	c.OK += o.OK
	c.Recovered += o.Recovered
	c.Failed += o.Failed
}

// Scanner walks a legacy file line by line, applying the spec's strict decode
// first and its declared fallbacks after, in the manner of bufio.Scanner.
// A decode failure yields a FAILED result and the scanner resumes on the next
// line; only underlying I/O errors stop the scan.
type Scanner struct {
	spec   Spec
	file   string
	kind   catalog.SourceKind
	sc     *bufio.Scanner
	line   int
	cur    Result
	counts Counts
	// CommentResult controls whether comment lines are surfaced as results
	// (with empty status) or only counted. Callers that care about block
	// structure, such as separator-delimited listings, can opt in.
	CommentResult bool
}

// NewScanner constructs a scanner over r for the named source file.
func NewScanner(r io.Reader, file string, kind catalog.SourceKind, spec Spec) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Scanner{spec: spec, file: file, kind: kind, sc: sc}
}

// Scan advances to the next parseable (or comment, if CommentResult) line.
// It returns false at end of input or on an I/O error.
func (s *Scanner) Scan() bool {
	for s.sc.Scan() {
		raw := strings.TrimRight(s.sc.Text(), "\r")
		s.line++
		s.counts.Lines++
		if strings.TrimSpace(raw) == "" {
			s.counts.Blank++
			continue
		}
		if s.spec.Comment != nil && s.spec.Comment(raw) {
			s.counts.Comment++
			if s.CommentResult {
				s.cur = Result{
					Source: catalog.SourceRef{Kind: s.kind, File: s.file, Line: s.line},
					Raw:    raw,
				}
				return true
			}
			continue
		}
		s.cur = s.decode(raw)
		switch s.cur.Status {
		case StatusOK:
			s.counts.OK++
		case StatusRecovered:
			s.counts.Recovered++
		case StatusFailed:
			s.counts.Failed++
		}
		return true
	}
	return false
}

// Result returns the result produced by the last successful Scan. Comment
// results (CommentResult mode) have an empty Status.
func (s *Scanner) Result() Result { return s.cur }

// Err returns the underlying I/O error, if any.
func (s *Scanner) Err() error { return s.sc.Err() }

// Counts returns the outcome tally so far.
func (s *Scanner) Counts() Counts { return s.counts }

func (s *Scanner) decode(raw string) Result {
	res := Result{
		Source: catalog.SourceRef{Kind: s.kind, File: s.file, Line: s.line},
		Raw:    raw,
	}
	strict := s.spec.FixedDecoder()
	if s.spec.Primary != nil {
		strict = *s.spec.Primary
	}
	if fields, err := strict.Decode(raw); err == nil {
		res.Status = StatusOK
		res.Decoder = strict.Name
		res.Fields = fields
		return res
	}
	for _, d := range s.spec.Fallbacks {
		fields, err := d.Decode(raw)
		if err != nil {
			continue
		}
		res.Status = StatusRecovered
		res.Decoder = d.Name
		res.Fields = fields
		return res
	}
	res.Fail(failureReason(raw, s.spec), "no decoder matched")
	return res
}

func failureReason(raw string, spec Spec) Reason {
	if len(raw) < spec.MinLen {
		if len(strings.Fields(raw)) < 4 {
			return ReasonTooFewTokens
		}
		return ReasonTooShort
	}
	return ReasonUnknownFailure
}

// FileTag renders a source file path as an identifier fragment: the
// extension is dropped and every non-alphanumeric byte, path separators
// included, becomes an underscore. Same-named files in different directories
// therefore yield distinct tags.
func FileTag(file string) string {
	p := filepath.ToSlash(filepath.Clean(file))
	p = strings.TrimSuffix(p, filepath.Ext(p))
	var b strings.Builder
	for _, r := range p {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
