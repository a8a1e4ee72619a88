package transform

import (
	"sort"
	"unicode/utf8"
)

// lineIndex converts byte offsets to zero-based lines and UTF-16 columns,
// the unit source maps count in.
type lineIndex struct {
	src    []byte
	starts []int
}

func newLineIndex(src []byte) *lineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

func (l *lineIndex) pos(off int) (line, col int) {
	if off > len(l.src) {
		off = len(l.src)
	}
	line = sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > off }) - 1
	return line, utf16Len(l.src[l.starts[line]:off])
}

func utf16Len(b []byte) int {
	n := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
