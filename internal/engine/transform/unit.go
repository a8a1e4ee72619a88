package transform

import (
	"fmt"
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
)

// unit holds the state of one Transform call. It is never shared.
type unit struct {
	src     []byte
	lang    domain.Language
	cfg     domain.CompilerConfig
	format  domain.ModuleFormat
	imports domain.ImportShapes

	strip     bool
	jsxOn     bool
	modulesOn bool
	minify    bool
	decorate  bool

	root  *Node
	lines *lineIndex
	e     *emitter
	sc    *scopes
	names *nameGen
	diags domain.Diagnostics

	// dropped nodes emit nothing.
	dropped map[*Node]bool
	// override replaces a node and its subtree with fixed text.
	override map[*Node]string
	// qual maps a binding to the object its references are read through,
	// "exports" for exported module variables or the namespace parameter.
	qual map[*binding]string
	// nsOwner maps an exported enum or namespace member to its namespace.
	nsOwner map[*binding]string
	// nsAfter lists `N.x = x;` assignments emitted after a namespace member.
	nsAfter map[*Node][]string
	renamed map[*binding]string
	// pseudoRefs counts uses that do not appear as identifiers, such as the
	// JSX factory root or a decorator metadata type.
	pseudoRefs map[*binding]int
	// inlined holds references replaced by a const enum value.
	inlined map[*Node]bool

	enums   map[*Node]*enumInfo
	enumsOf map[*binding][]*enumInfo
	// bypass is the node emitBase emits without module rewriting.
	bypass *Node

	helpers helperSet
	mod     *moduleInfo
	jsx     *jsxState
	deco    *decoratorState
}

func (u *unit) errorAt(n *Node, code domain.Code, format string, args ...any) {
	line, col := u.position(n)
	u.diags = append(u.diags, domain.Errorf(code, "", line, col, format, args...))
}

func (u *unit) warnAt(n *Node, code domain.Code, format string, args ...any) {
	line, col := u.position(n)
	u.diags = append(u.diags, domain.Warnf(code, "", line, col, format, args...))
}

func (u *unit) position(n *Node) (int, int) {
	if n == nil {
		return 0, 0
	}
	line, col := u.lines.pos(n.Start)
	return line + 1, col + 1
}

func (u *unit) text(n *Node) string {
	return n.Text(u.src)
}

// nameOf returns the emitted spelling of a binding.
func (u *unit) nameOf(b *binding) string {
	if r := u.renamed[b]; r != "" {
		return r
	}
	return b.name
}

// refText returns the expression a reference to b is emitted as.
func (u *unit) refText(b *binding) string {
	if u.mod != nil {
		if ref, ok := u.mod.importOf[b]; ok {
			return ref
		}
	}
	if q, ok := u.qual[b]; ok {
		return propAccess(q, b.name)
	}
	return u.nameOf(b)
}

// emit writes n, dispatching to the stage that rewrites its kind.
func (u *unit) emit(n *Node) {
	if n == nil || u.dropped[n] {
		return
	}
	if !inStatementList(n) {
		u.emitNode(n)
		return
	}
	u.e.beginStatement()
	mark := len(u.e.buf)
	u.emitNode(n)
	u.e.endStatement(len(u.e.buf) > mark, endsInBlock(n))
}

// statementLists are the node kinds whose children are separate statements
// or class members.
var statementLists = map[string]bool{
	"program":         true,
	"statement_block": true,
	"switch_case":     true,
	"switch_default":  true,
	"class_body":      true,
}

func inStatementList(n *Node) bool {
	if !n.Named || n.Parent == nil || !statementLists[n.Parent.Kind] {
		return false
	}
	switch n.Kind {
	case "comment", "hash_bang_line":
		return false
	}
	if n.Parent.Kind == "switch_case" && n.Field == "value" {
		return false
	}
	return true
}

// endsInBlock reports whether a closing brace at the end of st closes a
// block rather than an expression.
func endsInBlock(st *Node) bool {
	switch st.Kind {
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "statement_block", "try_statement", "switch_statement",
		"method_definition", "class_static_block", "internal_module", "module",
		"enum_declaration", "interface_declaration":
		return true
	case "if_statement", "else_clause", "for_statement", "for_in_statement", "while_statement",
		"with_statement", "labeled_statement":
		kids := st.NamedChildren()
		return len(kids) > 0 && endsInBlock(kids[len(kids)-1])
	case "export_statement":
		d := st.Child("declaration")
		return d != nil && endsInBlock(d)
	case "expression_statement":
		c := st.FirstNamed()
		return c != nil && c.Kind == "internal_module"
	}
	return false
}

func (u *unit) emitNode(n *Node) {
	if t, ok := u.override[n]; ok {
		u.e.synth(n.Start, t)
		return
	}
	if u.strip && u.stripNode(n) {
		return
	}
	if u.decorate && u.decorateNode(n) {
		return
	}
	if u.jsxOn && u.jsxNode(n) {
		return
	}
	if u.moduleNode(n) {
		return
	}
	switch n.Kind {
	case "comment":
		u.emitComment(n)
		return
	case "hash_bang_line":
		u.e.comment(n.Start, u.text(n))
		u.e.newline()
		return
	case "identifier", "type_identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		u.emitIdent(n)
		return
	case "string", "regex", "jsx_text", "number":
		u.e.text(n.Start, u.text(n), "")
		return
	case "template_string":
		u.emitTemplate(n)
		return
	case "call_expression":
		if u.emitCall(n) {
			return
		}
	case "assignment_expression", "augmented_assignment_expression", "update_expression":
		if u.emitExportedWrite(n) {
			return
		}
	}
	if len(n.Children) == 0 {
		u.e.text(n.Start, u.text(n), "")
		return
	}
	u.emitSeq(n.Children)
}

// emitSeq emits siblings with the whitespace found between them.
func (u *unit) emitSeq(kids []*Node) {
	for i, c := range kids {
		if i > 0 {
			u.e.gap(string(u.src[kids[i-1].End:c.Start]))
		}
		u.emit(c)
	}
}

// emitFrom emits n's children starting at index i, keeping the gap before it.
func (u *unit) emitFrom(n *Node, i int) {
	if i >= len(n.Children) {
		return
	}
	if i > 0 {
		u.e.gap(string(u.src[n.Children[i-1].End:n.Children[i].Start]))
	}
	u.emitSeq(n.Children[i:])
}

func (u *unit) emitComment(n *Node) {
	t := u.text(n)
	if u.minify && !isLegalComment(t) {
		return
	}
	u.e.comment(n.Start, t)
	if strings.HasPrefix(t, "//") {
		u.e.lineComment = true
	}
}

func isLegalComment(t string) bool {
	return strings.HasPrefix(t, "/*!") || strings.Contains(t, "@license") || strings.Contains(t, "@preserve")
}

func (u *unit) emitIdent(n *Node) {
	name := u.text(n)
	shorthand := n.Kind == "shorthand_property_identifier" || n.Kind == "shorthand_property_identifier_pattern"
	var out string
	if b := u.sc.refOf[n]; b != nil {
		out = u.refText(b)
	} else if b := u.sc.declOf[n]; b != nil {
		out = u.nameOf(b)
	} else {
		out = name
	}
	if out == name {
		u.e.text(n.Start, name, "")
		return
	}
	if shorthand {
		u.e.text(n.Start, name, "")
		u.e.synth(-1, ": ")
	}
	u.e.text(n.Start, out, name)
}

// emitTemplate copies template literal text verbatim and rewrites only the
// substitutions.
func (u *unit) emitTemplate(n *Node) {
	prev := n.Start
	for _, c := range n.Children {
		if c.Start > prev {
			u.e.raw(prev, string(u.src[prev:c.Start]))
		}
		if c.Kind == "template_substitution" {
			u.emitSeq(c.Children)
		} else {
			u.e.raw(c.Start, u.text(c))
		}
		prev = c.End
	}
	if n.End > prev {
		u.e.raw(prev, string(u.src[prev:n.End]))
	}
}

// emitCall keeps `this` undefined when a callee became a property access.
func (u *unit) emitCall(n *Node) bool {
	fn := n.Child("function")
	if fn == nil {
		return false
	}
	if fn.Kind == "import" {
		return u.emitDynamicImport(n)
	}
	if fn.Kind != "identifier" || u.override[fn] != "" {
		return false
	}
	b := u.sc.refOf[fn]
	if b == nil {
		return false
	}
	t := u.refText(b)
	if !strings.ContainsAny(t, ".[") {
		return false
	}
	u.e.synth(fn.Start, "(0, ")
	u.e.text(fn.Start, t, u.text(fn))
	u.e.synth(-1, ")")
	u.emitFrom(n, fn.Index+1)
	return true
}

// propAccess builds obj.name, or obj["name"] when name is not an identifier.
func propAccess(obj, name string) string {
	if isIdentifierName(name) {
		return obj + "." + name
	}
	return obj + "[" + jsQuote(name) + "]"
}

func isIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isIdentByte(c) || (i == 0 && c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// jsQuote renders s as a double-quoted JavaScript string literal.
func jsQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\v':
			b.WriteString(`\v`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// unquote returns the value of a string literal node's source text.
func unquote(lit string) string {
	if len(lit) < 2 {
		return lit
	}
	v, ok := decodeJSString(lit[1 : len(lit)-1])
	if !ok {
		return lit[1 : len(lit)-1]
	}
	return v
}
