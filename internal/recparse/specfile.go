package recparse

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay adjusts a built-in format spec for a specific file era. Overlays
// are loaded from a run-supplied YAML file so column drift discovered during
// tuning does not require a rebuild.
type Overlay struct {
	// Format names the Spec the overlay applies to.
	Format string `yaml:"format"`
	// Shift moves every strict column offset by this many bytes and registers
	// the original layout as a fallback.
	Shift int `yaml:"shift,omitempty"`
	// Fields replace same-named strict fields outright.
	Fields []Field `yaml:"fields,omitempty"`
}

// LoadOverlays reads an overlay file. Most runs carry no overlay; callers
// skip the load entirely when no path is configured.
func LoadOverlays(path string) ([]Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overlay file: %w", err)
	}
	var doc struct {
		Overlays []Overlay `yaml:"overlays"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode overlay file: %w", err)
	}
	for i, o := range doc.Overlays {
		if o.Format == "" {
			return nil, fmt.Errorf("overlay %d: format name required", i)
		}
		for _, f := range o.Fields {
			if f.Name == "" || f.End <= f.Start {
				return nil, fmt.Errorf("overlay %d: invalid field %q [%d,%d)", i, f.Name, f.Start, f.End)
			}
		}
	}
	return doc.Overlays, nil
}

// Apply returns a copy of the spec with the overlay folded in. Shifted
// layouts become the strict decode and the previous strict layout is kept as
// the first fallback, so both eras keep parsing.
func (s Spec) Apply(o Overlay) Spec {
	out := s
	out.Fields = make([]Field, len(s.Fields))
	copy(out.Fields, s.Fields)
	for _, repl := range o.Fields {
		for i, f := range out.Fields {
			if f.Name == repl.Name {
				out.Fields[i] = repl
			}
		}
	}
	if o.Shift != 0 {
		for i := range out.Fields {
			out.Fields[i].Start += o.Shift
			out.Fields[i].End += o.Shift
		}
		out.MinLen = s.MinLen + o.Shift
		out.Fallbacks = append([]Decoder{s.FixedDecoder()}, s.Fallbacks...)
	}
	return out
}
