package recparse

import (
	"fmt"
	"strconv"
	"strings"
)

// Fields holds the raw decoded field values of one line, keyed by field name.
// Values are trimmed; absent optional fields are simply missing from the map.
type Fields map[string]string

// Has reports whether the named field decoded to a non-empty value.
func (f Fields) Has(name string) bool {
	v, ok := f[name]
	return ok && v != ""
}

// Get returns the raw value for name, or the empty string.
func (f Fields) Get(name string) string { return f[name] }

// Int parses the named field as a base-10 integer.
func (f Fields) Int(name string) (int, error) {
	v, ok := f[name]
	if !ok || v == "" {
		return 0, fmt.Errorf("field %s: %w", name, errMissing)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("field %s: %w: %q", name, errBadNumber, v)
	}
	return n, nil
}

// Float parses the named field as a float64.
func (f Fields) Float(name string) (float64, error) {
	v, ok := f[name]
	if !ok || v == "" {
		return 0, fmt.Errorf("field %s: %w", name, errMissing)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w: %q", name, errBadNumber, v)
	}
	return x, nil
}

var (
	errMissing   = fmt.Errorf("missing")
	errBadNumber = fmt.Errorf("not a number")
)

// Field declares one fixed-column field: a half-open byte range [Start, End)
// within the line. Optional fields may be absent (line shorter than Start, or
// blank columns) without failing the decode.
type Field struct {
	Name     string `yaml:"name"`
	Start    int    `yaml:"start"`
	End      int    `yaml:"end"`
	Optional bool   `yaml:"optional,omitempty"`
}

// Decoder turns one raw line into decoded fields. Decoders report an error to
// signal "this decode does not apply"; the scanner then tries the next
// declared fallback.
type Decoder struct {
	Name   string
	Decode func(line string) (Fields, error)
}

// Spec describes a named legacy format variant: the strict fixed-column
// decode, the minimum usable line length, and ordered fallback decodes known
// to occur in specific file eras.
type Spec struct {
	// Name identifies the format variant in provenance and diagnostics.
	Name string
	// Fields is the strict fixed-column layout.
	Fields []Field
	// MinLen is the minimum line length for the strict decode to apply.
	MinLen int
	// Primary overrides the strict fixed-column decode for formats whose
	// canonical form is not fixed-width (token listings). When set, Fields is
	// ignored by the strict decode.
	Primary *Decoder
	// Fallbacks are tried in order after the strict decode fails.
	Fallbacks []Decoder
	// Comment reports whether a line is a comment/separator to be counted but
	// not decoded. May be nil.
	Comment func(line string) bool
}

// FixedDecoder builds the strict fixed-column decoder for the spec.
func (s Spec) FixedDecoder() Decoder {
	return Decoder{
		Name:   "fixed",
		Decode: func(line string) (Fields, error) { return decodeFixed(line, s.Fields, s.MinLen, 0) },
	}
}

// ShiftedDecoder builds a fixed-column decoder with every column offset moved
// by delta. Some file eras wrote the same layout shifted by one or two
// columns.
func (s Spec) ShiftedDecoder(delta int) Decoder {
	return Decoder{
		Name:   fmt.Sprintf("fixed_shift%+d", delta),
		Decode: func(line string) (Fields, error) { return decodeFixed(line, s.Fields, s.MinLen+delta, delta) },
	}
}

func decodeFixed(line string, fields []Field, minLen, shift int) (Fields, error) {
	if len(line) < minLen {
		return nil, fmt.Errorf("line length %d below minimum %d", len(line), minLen)
	}
	out := make(Fields, len(fields))
	for _, f := range fields {
		start, end := f.Start+shift, f.End+shift
		if start >= len(line) {
			if f.Optional {
				continue
			}
			return nil, fmt.Errorf("line too short for field %s", f.Name)
		}
		if end > len(line) {
			end = len(line)
		}
		v := strings.TrimSpace(line[start:end])
		if v == "" {
			if f.Optional {
				continue
			}
			return nil, fmt.Errorf("required field %s blank", f.Name)
		}
		out[f.Name] = v
	}
	return out, nil
}

// TokenDecoder builds a whitespace-token decoder mapping the first len(names)
// tokens to the given field names. Lines with fewer than min tokens do not
// decode.
func TokenDecoder(name string, min int, names ...string) Decoder {
	return Decoder{
		Name: name,
		Decode: func(line string) (Fields, error) {
			toks := strings.Fields(line)
			if len(toks) < min {
				return nil, fmt.Errorf("%d tokens, need %d", len(toks), min)
			}
			out := make(Fields, len(names))
			for i, n := range names {
				if i >= len(toks) {
					break
				}
				out[n] = toks[i]
			}
			return out, nil
		},
	}
}
