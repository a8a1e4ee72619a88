package fs

import (
	"go.trai.ch/synapse/internal/core/domain"
)

type tokenKind uint8

const (
	tokIdent tokenKind = iota
	tokString
	tokPunct
	tokOther
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

// keywords after which a slash starts a regular expression.
var regexAfter = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// lexer splits source into the few token kinds the import surface needs.
// Comments, template text and regular expressions are skipped.
type lexer struct {
	src  []byte
	pos  int
	line int
	col  int
	// braces counts open `{`; tmpl holds the brace depth of each open `${`.
	braces int
	tmpl   []int
	last   *token
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) advance() {
	if l.src[l.pos] == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	l.pos++
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// regexAllowed reports whether a slash at the current position starts a regex.
func (l *lexer) regexAllowed() bool {
	if l.last == nil {
		return true
	}
	switch l.last.kind {
	case tokIdent:
		return regexAfter[l.last.text]
	case tokString, tokOther:
		return false
	default:
		t := l.last.text
		return t != ")" && t != "]" && t != "}"
	}
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance()
		case c == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		case c == '/' && l.peek(1) == '*':
			l.advance()
			l.advance()
			for l.pos < len(l.src) && (l.src[l.pos] != '*' || l.peek(1) != '/') {
				l.advance()
			}
			if l.pos < len(l.src) {
				l.advance()
				l.advance()
			}
		case c == '#' && l.pos == 0 && l.peek(1) == '!':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		default:
			return l.scan()
		}
	}
	return token{}, false
}

func (l *lexer) emit(t token) (token, bool) {
	l.last = &t
	return t, true
}

func (l *lexer) scan() (token, bool) {
	start := l.pos
	t := token{line: l.line + 1, col: l.col + 1}
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.advance()
		}
		t.kind, t.text = tokIdent, string(l.src[start:l.pos])
	case c >= '0' && c <= '9':
		for l.pos < len(l.src) && (isIdentPart(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.advance()
		}
		t.kind = tokOther
	case c == '"' || c == '\'':
		t.kind, t.text = tokString, l.scanString(c)
	case c == '`':
		l.advance()
		l.scanTemplate()
		t.kind = tokOther
	case c == '/' && l.regexAllowed():
		l.scanRegex()
		t.kind = tokOther
	case c == '{':
		l.braces++
		l.advance()
		t.kind, t.text = tokPunct, "{"
	case c == '}':
		if n := len(l.tmpl); n > 0 && l.tmpl[n-1] == l.braces {
			l.tmpl = l.tmpl[:n-1]
			l.advance()
			l.scanTemplate()
			t.kind = tokOther
			break
		}
		l.braces--
		l.advance()
		t.kind, t.text = tokPunct, "}"
	default:
		l.advance()
		t.kind, t.text = tokPunct, string(c)
	}
	return l.emit(t)
}

// scanString returns the raw body of a quoted string. An unterminated string
// ends at the line break so JSX text cannot swallow the rest of the file.
func (l *lexer) scanString(quote byte) string {
	l.advance()
	start := l.pos
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.advance()
			if l.pos < len(l.src) {
				l.advance()
			}
			continue
		case quote:
			body := string(l.src[start:l.pos])
			l.advance()
			return body
		case '\n':
			return string(l.src[start:l.pos])
		}
		l.advance()
	}
	return string(l.src[start:l.pos])
}

// scanTemplate consumes template text up to the closing backtick or the next substitution.
func (l *lexer) scanTemplate() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.advance()
			if l.pos < len(l.src) {
				l.advance()
			}
			continue
		case '`':
			l.advance()
			return
		case '$':
			if l.peek(1) == '{' {
				l.advance()
				l.advance()
				l.tmpl = append(l.tmpl, l.braces)
				return
			}
		}
		l.advance()
	}
}

func (l *lexer) scanRegex() {
	l.advance()
	inClass := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.advance()
		case c == '\n':
			return
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			l.advance()
			for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
				l.advance()
			}
			return
		}
		if l.pos < len(l.src) {
			l.advance()
		}
	}
}

// ScanImports extracts the module specifiers of src from its import surface:
// import and export-from statements, import-equals declarations, require calls
// and dynamic imports with a literal argument. It never parses the full program.
func ScanImports(src []byte) []domain.Import {
	l := &lexer{src: src}
	var toks []token
	for {
		t, ok := l.next()
		if !ok {
			break
		}
		toks = append(toks, t)
	}
	s := &surface{toks: toks}
	return s.collect()
}

type surface struct {
	toks []token
	out  []domain.Import
}

func (s *surface) at(i int) token {
	if i >= 0 && i < len(s.toks) {
		return s.toks[i]
	}
	return token{kind: tokOther}
}

func (s *surface) is(i int, kind tokenKind, text string) bool {
	t := s.at(i)
	return t.kind == kind && t.text == text
}

func (s *surface) add(t token, kind domain.ImportKind, typeOnly bool) {
	s.out = append(s.out, domain.Import{
		Specifier: t.text,
		Kind:      kind,
		TypeOnly:  typeOnly,
		Line:      t.line,
		Column:    t.col,
	})
}

// member reports whether token i is accessed as a property, as in foo.import.
func (s *surface) member(i int) bool {
	return s.is(i-1, tokPunct, ".") && !s.is(i-2, tokPunct, ".")
}

func (s *surface) collect() []domain.Import {
	for i := 0; i < len(s.toks); i++ {
		t := s.toks[i]
		if t.kind != tokIdent || s.member(i) {
			continue
		}
		switch t.text {
		case "import":
			i = s.importAt(i)
		case "export":
			i = s.exportAt(i)
		case "require":
			if s.is(i+1, tokPunct, "(") && s.at(i+2).kind == tokString && s.is(i+3, tokPunct, ")") {
				s.add(s.at(i+2), domain.ImportRequire, false)
				i += 3
			}
		}
	}
	return s.out
}

// importAt handles an `import` keyword at i and returns the last token consumed.
func (s *surface) importAt(i int) int {
	next := s.at(i + 1)
	switch {
	case next.kind == tokString:
		s.add(next, domain.ImportStatic, false)
		return i + 1
	case next.kind == tokPunct && next.text == "(":
		if arg := s.at(i + 2); arg.kind == tokString && (s.is(i+3, tokPunct, ")") || s.is(i+3, tokPunct, ",")) {
			s.add(arg, domain.ImportDynamic, true)
			return i + 3
		}
		return i + 1
	case next.kind == tokPunct && next.text == ".":
		// import.meta
		return i + 1
	}

	typeOnly := false
	j := i + 1
	if s.is(j, tokIdent, "type") {
		after := s.at(j + 1)
		defaultNamedType := (after.kind == tokIdent && after.text == "from" && s.at(j+2).kind == tokString) ||
			s.is(j+1, tokPunct, ",") || s.is(j+1, tokPunct, "=")
		if !defaultNamedType {
			typeOnly = true
			j++
		}
	}

	// import x = require("y")
	if s.at(j).kind == tokIdent && s.is(j+1, tokPunct, "=") {
		if s.is(j+2, tokIdent, "require") && s.is(j+3, tokPunct, "(") && s.at(j+4).kind == tokString {
			s.add(s.at(j+4), domain.ImportRequire, typeOnly)
			return j + 5
		}
		return j + 1
	}
	return s.fromClause(j, domain.ImportStatic, typeOnly)
}

// exportAt handles an `export` keyword at i. Only `export ... from` forms import.
func (s *surface) exportAt(i int) int {
	j := i + 1
	typeOnly := false
	if s.is(j, tokIdent, "type") && (s.is(j+1, tokPunct, "{") || s.is(j+1, tokPunct, "*")) {
		typeOnly = true
		j++
	}
	if !s.is(j, tokPunct, "{") && !s.is(j, tokPunct, "*") {
		return i
	}
	return s.fromClause(j, domain.ImportReExport, typeOnly)
}

// fromClause scans forward from j for `from "<specifier>"` ending the current
// statement and records it. It returns the last token consumed.
func (s *surface) fromClause(j int, kind domain.ImportKind, typeOnly bool) int {
	depth := 0
	for k := j; k < len(s.toks); k++ {
		t := s.toks[k]
		switch {
		case t.kind == tokPunct && t.text == "{":
			depth++
		case t.kind == tokPunct && t.text == "}":
			depth--
			if depth < 0 {
				return j
			}
		case t.kind == tokPunct && t.text == ";":
			return k
		case depth == 0 && t.kind == tokIdent && t.text == "from" && s.at(k+1).kind == tokString:
			s.add(s.at(k+1), kind, typeOnly)
			return k + 1
		case depth == 0 && t.kind == tokIdent && (t.text == "import" || t.text == "export") && k > j:
			return k - 1
		}
	}
	return len(s.toks)
}
