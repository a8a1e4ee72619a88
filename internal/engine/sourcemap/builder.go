// Package sourcemap builds and decodes revision 3 source maps for a single source file.
package sourcemap

import (
	"cmp"
	"slices"
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/zerr"
)

// ErrInvalidMappings is returned when a mappings string cannot be decoded.
var ErrInvalidMappings = zerr.New("invalid source map mappings")

// Segment maps one generated position to one original position.
// Lines are zero-based; columns are zero-based UTF-16 offsets.
type Segment struct {
	GenLine int
	GenCol  int
	SrcLine int
	SrcCol  int
	// Name indexes into Names, or is -1.
	Name int
}

// Builder accumulates segments in generation order.
type Builder struct {
	segments []Segment
	names    []string
	nameIdx  map[string]int
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{nameIdx: make(map[string]int)}
}

// Add records that the generated position maps to the original position.
func (b *Builder) Add(genLine, genCol, srcLine, srcCol int) {
	b.add(Segment{GenLine: genLine, GenCol: genCol, SrcLine: srcLine, SrcCol: srcCol, Name: -1})
}

// AddNamed records a mapping whose original token was the identifier name.
func (b *Builder) AddNamed(genLine, genCol, srcLine, srcCol int, name string) {
	idx, ok := b.nameIdx[name]
	if !ok {
		idx = len(b.names)
		b.names = append(b.names, name)
		b.nameIdx[name] = idx
	}
	b.add(Segment{GenLine: genLine, GenCol: genCol, SrcLine: srcLine, SrcCol: srcCol, Name: idx})
}

func (b *Builder) add(s Segment) {
	if n := len(b.segments); n > 0 {
		last := b.segments[n-1]
		if last.GenLine == s.GenLine && last.GenCol == s.GenCol {
			// The first mapping at a generated position wins.
			return
		}
		if last.GenLine == s.GenLine && last.SrcLine == s.SrcLine && last.SrcCol == s.SrcCol && s.Name < 0 {
			return
		}
	}
	b.segments = append(b.segments, s)
}

// Len returns the number of recorded segments.
func (b *Builder) Len() int {
	return len(b.segments)
}

// Build encodes the segments into a source map with a single unnamed source.
func (b *Builder) Build() *domain.SourceMap {
	segs := slices.Clone(b.segments)
	slices.SortStableFunc(segs, func(x, y Segment) int {
		return cmp.Or(cmp.Compare(x.GenLine, y.GenLine), cmp.Compare(x.GenCol, y.GenCol))
	})
	return &domain.SourceMap{
		Version:  3,
		Sources:  []string{""},
		Names:    slices.Clone(b.names),
		Mappings: Encode(segs),
	}
}

// Encode serializes sorted segments into the mappings field encoding.
func Encode(segs []Segment) string {
	var out strings.Builder
	var prevSrcLine, prevSrcCol, prevName int
	line := 0
	first := true
	prevGenCol := 0
	for _, s := range segs {
		for line < s.GenLine {
			out.WriteByte(';')
			line++
			prevGenCol = 0
			first = true
		}
		if !first {
			out.WriteByte(',')
		}
		first = false
		writeVLQ(&out, s.GenCol-prevGenCol)
		prevGenCol = s.GenCol
		writeVLQ(&out, 0) // single source
		writeVLQ(&out, s.SrcLine-prevSrcLine)
		prevSrcLine = s.SrcLine
		writeVLQ(&out, s.SrcCol-prevSrcCol)
		prevSrcCol = s.SrcCol
		if s.Name >= 0 {
			writeVLQ(&out, s.Name-prevName)
			prevName = s.Name
		}
	}
	return out.String()
}

// Decode parses a mappings string back into segments.
func Decode(mappings string) ([]Segment, error) {
	var segs []Segment
	var srcLine, srcCol, name int
	for lineNo, line := range strings.Split(mappings, ";") {
		genCol := 0
		if line == "" {
			continue
		}
		for _, field := range strings.Split(line, ",") {
			vals, err := readVLQs(field)
			if err != nil {
				return nil, zerr.With(err, "line", lineNo)
			}
			switch len(vals) {
			case 1:
				// A generated position with no original; not produced by Builder.
				genCol += vals[0]
				continue
			case 4, 5:
			default:
				return nil, zerr.With(ErrInvalidMappings, "segment", field)
			}
			genCol += vals[0]
			srcLine += vals[2]
			srcCol += vals[3]
			seg := Segment{GenLine: lineNo, GenCol: genCol, SrcLine: srcLine, SrcCol: srcCol, Name: -1}
			if len(vals) == 5 {
				name += vals[4]
				seg.Name = name
			}
			segs = append(segs, seg)
		}
	}
	return segs, nil
}

// Lookup returns the segment covering the generated position, if any.
func Lookup(segs []Segment, genLine, genCol int) (Segment, bool) {
	var best Segment
	found := false
	for _, s := range segs {
		if s.GenLine != genLine || s.GenCol > genCol {
			continue
		}
		if !found || s.GenCol >= best.GenCol {
			best = s
			found = true
		}
	}
	return best, found
}
