package transform

import (
	"strings"
	"unicode/utf8"

	"go.trai.ch/synapse/internal/engine/sourcemap"
)

// emitter writes generated code and records a mapping at the start of each
// token copied from, or synthesized for, a source position. Whitespace between
// siblings is held back as a pending gap so dropped nodes leave no holes.
type emitter struct {
	lines  *lineIndex
	buf    []byte
	line   int
	col    int
	sm     *sourcemap.Builder
	minify bool

	pending    string
	hasPending bool
	// lineComment is set while the current output line ends in a // comment.
	lineComment bool

	// code is the last non-blank byte written outside comments.
	code byte
	// closed is set when the last statement emitted ends in its own block,
	// so a trailing } does not continue onto the next line.
	closed bool
	// stmtStart is set until the first write of a statement in a list.
	stmtStart bool
}

func newEmitter(lines *lineIndex, maps, minify bool) *emitter {
	e := &emitter{lines: lines, minify: minify}
	if maps {
		e.sm = sourcemap.NewBuilder()
	}
	return e
}

// gap records whitespace found between two siblings. Consecutive gaps merge
// into the one with the most line breaks, preferring the later on a tie.
func (e *emitter) gap(ws string) {
	if !isSpace(ws) {
		e.raw(-1, ws)
		return
	}
	if !e.hasPending || strings.Count(ws, "\n") >= strings.Count(e.pending, "\n") {
		e.pending = ws
	}
	e.hasPending = true
}

// dropGap forgets the pending gap.
func (e *emitter) dropGap() {
	e.pending, e.hasPending = "", false
}

func (e *emitter) flush(next string) {
	if !e.hasPending {
		return
	}
	ws := e.pending
	e.pending, e.hasPending = "", false
	if len(e.buf) == 0 {
		return
	}
	if e.minify {
		if !strings.Contains(ws, "\n") || minifyJoins(e.last(), next) {
			return
		}
		ws = "\n"
	}
	e.put(ws)
}

// minifyJoins reports whether a line break between two tokens can be removed
// without letting automatic semicolon insertion change the program.
func minifyJoins(last byte, next string) bool {
	switch last {
	case ';', '{', ',', '(', '[', ':':
		return true
	}
	if next != "" {
		switch next[0] {
		case '}', ')', ']', ',', ';':
			return true
		}
	}
	return false
}

// text writes a token mapped to the source offset at. A non-empty name
// records the original identifier the token was renamed from.
func (e *emitter) text(at int, s, name string) {
	if s == "" {
		return
	}
	e.guard(s)
	e.flush(s)
	e.separate(s[0])
	if at >= 0 && e.sm != nil {
		line, col := e.lines.pos(at)
		if name != "" {
			e.sm.AddNamed(e.line, e.col, line, col, name)
		} else {
			e.sm.Add(e.line, e.col, line, col)
		}
	}
	e.put(s)
	e.note(s)
}

// raw writes s without gap handling or separation, for literal content.
func (e *emitter) raw(at int, s string) {
	if s == "" {
		return
	}
	e.guard(s)
	e.comment(at, s)
	e.note(s)
}

// comment writes s like raw but leaves the statement state untouched.
func (e *emitter) comment(at int, s string) {
	if s == "" {
		return
	}
	e.flush(s)
	if at >= 0 && e.sm != nil {
		line, col := e.lines.pos(at)
		e.sm.Add(e.line, e.col, line, col)
	}
	e.put(s)
}

// note records the last code byte of s.
func (e *emitter) note(s string) {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		e.code = s[i]
		return
	}
}

// beginStatement marks the start of a statement in a statement list.
func (e *emitter) beginStatement() {
	e.stmtStart = true
}

// endStatement records how a statement that wrote output ended.
func (e *emitter) endStatement(wrote, block bool) {
	if wrote {
		e.closed = block
	}
}

// guard terminates the previous statement when the first token of the
// current one would otherwise continue it across the line break.
func (e *emitter) guard(next string) {
	if !e.stmtStart {
		return
	}
	e.stmtStart = false
	if !e.continues(next) {
		return
	}
	if e.lineComment {
		e.flush(next)
	}
	e.terminate()
}

// continues reports whether a statement starting with next would be parsed
// as a continuation of the code written so far.
func (e *emitter) continues(next string) bool {
	if e.code == '}' && !e.closed && next != "" && continuesExpression(next[0]) {
		return true
	}
	return needsSemicolon(e.code, next, false)
}

// terminate writes a semicolon, on a fresh line when the current one ends
// in a // comment.
func (e *emitter) terminate() {
	if e.lineComment {
		e.put("\n")
	}
	e.put(";")
	e.code = ';'
}

// synth writes generated code attributed to the source offset at. In minify
// mode the snippet is compacted.
func (e *emitter) synth(at int, s string) {
	if e.minify {
		s = compact(s)
	}
	e.text(at, s, "")
}

// newline ends the current output line unless it is already empty.
func (e *emitter) newline() {
	e.dropGap()
	if len(e.buf) == 0 || e.last() == '\n' {
		return
	}
	e.put("\n")
}

// statementBreak ends the statement before a synthesized one starting with
// next, adding a semicolon where the previous one relied on a line break.
func (e *emitter) statementBreak(next string) {
	if e.minify && !e.lineComment {
		e.dropGap()
		if needsSemicolon(e.last(), next, true) {
			e.put(";")
			e.code = ';'
		}
		return
	}
	if e.continues(next) {
		e.terminate()
	}
	e.newline()
}

func needsSemicolon(last byte, next string, joined bool) bool {
	if last == 0 || next == "" {
		return false
	}
	switch next[0] {
	case '}', ']', ')', ',', ';', '.':
		return false
	}
	if !joined && !continuesExpression(next[0]) {
		return false
	}
	switch last {
	case ';', '{', '[', '(', ',', ':', '\n', '}':
		return false
	}
	return true
}

// continuesExpression reports whether a line starting with c can extend the
// expression on the line before it.
func continuesExpression(c byte) bool {
	switch c {
	case '(', '[', '`', '+', '-', '/':
		return true
	}
	return false
}

func (e *emitter) separate(first byte) {
	if len(e.buf) == 0 {
		return
	}
	if e.lineComment {
		e.put("\n")
		return
	}
	last := e.last()
	switch {
	case isIdentByte(last) && isIdentByte(first),
		last == '+' && first == '+',
		last == '-' && first == '-',
		last == '/' && (first == '/' || first == '*'):
		e.put(" ")
	}
}

func (e *emitter) put(s string) {
	e.buf = append(e.buf, s...)
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		switch {
		case r == '\n':
			e.line++
			e.col = 0
			e.lineComment = false
		case r >= 0x10000:
			e.col += 2
		default:
			e.col++
		}
	}
}

func (e *emitter) last() byte {
	if len(e.buf) == 0 {
		return 0
	}
	return e.buf[len(e.buf)-1]
}

// endsWith reports whether the output so far ends with s.
func (e *emitter) endsWith(s string) bool {
	return strings.HasSuffix(string(e.buf[max(0, len(e.buf)-len(s)):]), s)
}

func (e *emitter) bytes() []byte {
	return e.buf
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || b >= 0x80 ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isSpace(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
		default:
			return false
		}
	}
	return true
}

// compact removes whitespace from a synthesized snippet outside string
// literals, keeping one space where two identifier characters would touch.
func compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote, last byte
	pendingSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			last = c
			switch c {
			case '\\':
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
					last = s[i]
				}
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			pendingSpace = true
			continue
		case '"', '\'', '`':
			quote = c
		}
		if pendingSpace {
			if last != 0 && isIdentByte(last) && isIdentByte(c) {
				b.WriteByte(' ')
			}
			pendingSpace = false
		}
		b.WriteByte(c)
		last = c
	}
	return b.String()
}
