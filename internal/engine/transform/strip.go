package transform

import (
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
)

// stripNode erases TypeScript-only syntax. It reports whether n was fully
// handled.
func (u *unit) stripNode(n *Node) bool {
	if !n.Named {
		return u.stripToken(n)
	}
	if typeKinds[n.Kind] {
		return true
	}
	switch n.Kind {
	case "accessibility_modifier", "override_modifier":
		return true
	case "as_expression", "satisfies_expression", "non_null_expression", "instantiation_expression":
		u.emit(n.FirstNamed())
		return true
	case "type_assertion":
		for _, c := range n.NamedChildren() {
			if c.Kind != "type_arguments" {
				u.emit(c)
				break
			}
		}
		return true
	case "module":
		if !isTypeSubtree(n) {
			u.emitNamespace(n)
		}
		return true
	case "internal_module":
		u.emitNamespace(n)
		return true
	case "expression_statement":
		if c := n.FirstNamed(); c != nil && c.Kind == "internal_module" {
			u.emitNamespace(c)
			return true
		}
	case "enum_declaration":
		u.emitEnum(n)
		return true
	case "import_alias":
		u.emitImportAlias(n)
		return true
	case "required_parameter", "optional_parameter":
		// Modifiers before the pattern go with the space after them.
		if pat := n.Child("pattern"); pat != nil && pat.Index > 0 {
			u.emitSeq(n.Children[pat.Index:])
			return true
		}
	case "public_field_definition":
		return n.HasToken("declare") || n.HasToken("abstract")
	case "method_definition":
		if n.Child("body") == nil {
			// Overload signature.
			return true
		}
		return u.emitConstructor(n)
	case "export_statement":
		return u.dropsExport(n)
	case "import_statement":
		return isTypeOnlyImport(n)
	}
	return false
}

func (u *unit) stripToken(n *Node) bool {
	p := n.Parent
	if p == nil {
		return false
	}
	switch n.Kind {
	case "readonly", "declare":
		switch p.Kind {
		case "public_field_definition", "required_parameter", "optional_parameter", "method_definition":
			return true
		}
	case "abstract":
		switch p.Kind {
		case "abstract_class_declaration", "public_field_definition", "method_definition":
			return true
		}
	case "?":
		switch p.Kind {
		case "optional_parameter", "public_field_definition", "method_definition":
			return true
		}
	case "!":
		switch p.Kind {
		case "public_field_definition", "variable_declarator":
			return true
		}
	}
	return false
}

// prepareStrip marks the nodes whose removal also removes a separator.
func (u *unit) prepareStrip() {
	u.root.Walk(func(n *Node) bool {
		if isTypeSubtree(n) {
			return false
		}
		if n.Kind == "formal_parameters" {
			for _, p := range n.NamedChildren() {
				if !isThisParam(p) {
					continue
				}
				u.dropped[p] = true
				if c := p.Next(); c != nil && c.Kind == "," {
					u.dropped[c] = true
				}
			}
		}
		return true
	})
}

func isThisParam(p *Node) bool {
	if p.Kind != "required_parameter" && p.Kind != "optional_parameter" {
		return false
	}
	pat := p.Child("pattern")
	return pat != nil && pat.Kind == "this"
}

// dropsExport reports whether an export statement only exports types.
func (u *unit) dropsExport(n *Node) bool {
	for _, c := range n.Children {
		if c.Named {
			break
		}
		if c.Kind == "type" {
			return true
		}
	}
	if n.HasToken("as") && n.HasToken("namespace") {
		return true
	}
	decl := n.Child("declaration")
	if decl == nil {
		return false
	}
	switch decl.Kind {
	case "internal_module", "module":
		return isTypeSubtree(decl) || !u.instantiated(decl)
	}
	return isTypeSubtree(decl)
}

// instantiated reports whether a namespace has any runtime content.
func (u *unit) instantiated(n *Node) bool {
	body := n.Child("body")
	if body == nil {
		return false
	}
	for _, st := range body.NamedChildren() {
		if u.valueStatement(st) {
			return true
		}
	}
	return false
}

func (u *unit) valueStatement(st *Node) bool {
	if isTypeSubtree(st) {
		return false
	}
	switch st.Kind {
	case "empty_statement", "comment":
		return false
	case "export_statement":
		if d := st.Child("declaration"); d != nil {
			return u.valueStatement(d)
		}
		return false
	case "internal_module", "module":
		return u.instantiated(st)
	case "expression_statement":
		if c := st.FirstNamed(); c != nil && c.Kind == "internal_module" {
			return u.instantiated(c)
		}
	case "enum_declaration":
		return !st.HasToken("const") || st.Parent.Kind == "export_statement"
	}
	return true
}

// emitImportAlias lowers `import x = A.B` to a var, or drops it when x is
// never read as a value.
func (u *unit) emitImportAlias(n *Node) {
	id := n.FirstNamed()
	b := u.sc.declOf[id]
	exported := n.Parent != nil && n.Parent.Kind == "export_statement"
	if b == nil || (!exported && len(b.refs) == 0 && u.pseudoRefs[b] == 0) {
		return
	}
	kids := n.NamedChildren()
	value := kids[len(kids)-1]
	if exported && u.nsOwner[b] != "" {
		u.e.synth(n.Start, propAccess(u.nsOwner[b], b.name)+" = ")
	} else {
		u.e.synth(n.Start, u.declKeyword(b, "var")+u.nameOf(b)+" = ")
	}
	u.e.text(value.Start, u.text(value), "")
	u.e.synth(-1, ";")
}

// declKeyword returns the keyword and space a lowered declaration of b starts
// with, or nothing when b is hoisted by the System wrapper.
func (u *unit) declKeyword(b *binding, kw string) string {
	if u.systemHoisted(b) {
		return ""
	}
	return kw + " "
}

func (u *unit) systemHoisted(b *binding) bool {
	return b != nil && u.modulesOn && u.format == domain.FormatSystemJS && u.mod != nil && u.mod.isModule && b.topLevel()
}

// emitConstructor lowers parameter properties to assignments at the top of
// the constructor body, after the super call in a derived class.
func (u *unit) emitConstructor(n *Node) bool {
	if name := n.Child("name"); name == nil || u.text(name) != "constructor" {
		return false
	}
	params := n.Child("parameters")
	body := n.Child("body")
	if params == nil || body == nil {
		return false
	}
	var props []string
	for _, p := range params.NamedChildren() {
		if !isParameterProperty(p) {
			continue
		}
		if pat := p.Child("pattern"); pat != nil && pat.Kind == "identifier" {
			name := u.text(pat)
			props = append(props, "this."+name+" = "+name+";")
		}
	}
	if len(props) == 0 {
		return false
	}
	u.emitSeq(n.Children[:body.Index])
	u.e.gap(string(u.src[n.Children[body.Index-1].End:body.Start]))

	after := 0
	stmts := body.Children
	for i, st := range stmts {
		if isSuperCall(st) {
			after = i
			break
		}
	}
	indent := ""
	if len(stmts) > 2 {
		indent = lineIndent(u.src, stmts[1].Start)
	} else {
		indent = lineIndent(u.src, body.Start) + "    "
	}
	for i, st := range stmts {
		if i > 0 {
			ws := string(u.src[stmts[i-1].End:st.Start])
			if !u.minify && i-1 == after && st.Kind == "}" && !strings.Contains(ws, "\n") {
				u.e.newline()
				u.e.put(lineIndent(u.src, body.Start))
			} else {
				u.e.gap(ws)
			}
		}
		u.emit(st)
		if i == after {
			for _, line := range props {
				u.stmtIndent(st.End, indent, line)
			}
		}
	}
	u.emitFrom(n, body.Index+1)
	return true
}

func isParameterProperty(p *Node) bool {
	if p.Kind != "required_parameter" && p.Kind != "optional_parameter" {
		return false
	}
	for _, c := range p.Children {
		switch c.Kind {
		case "accessibility_modifier", "override_modifier", "readonly":
			return true
		}
	}
	return false
}

func isSuperCall(st *Node) bool {
	if st.Kind != "expression_statement" {
		return false
	}
	call := st.FirstNamed()
	if call == nil || call.Kind != "call_expression" {
		return false
	}
	fn := call.Child("function")
	return fn != nil && fn.Kind == "super"
}

// lineIndent returns the leading whitespace of the line holding offset.
func lineIndent(src []byte, offset int) string {
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

// stmt writes a synthesized statement on its own line.
func (u *unit) stmt(at int, text string) {
	u.e.statementBreak(text)
	u.e.synth(at, text)
}

// stmtIndent writes a synthesized statement on its own indented line.
func (u *unit) stmtIndent(at int, indent, text string) {
	u.e.statementBreak(text)
	if !u.minify && indent != "" && u.e.last() == '\n' {
		u.e.put(indent)
	}
	u.e.synth(at, text)
}

// decodeJSString decodes the escapes of a string literal body.
func decodeJSString(s string) (string, bool) {
	if !strings.ContainsRune(s, '\\') {
		return s, true
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", false
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'x':
			if i+2 >= len(s) {
				return "", false
			}
			r, ok := hexValue(s[i+1 : i+3])
			if !ok {
				return "", false
			}
			b.WriteRune(r)
			i += 2
		case 'u':
			var hex string
			if i+1 < len(s) && s[i+1] == '{' {
				end := strings.IndexByte(s[i:], '}')
				if end < 0 {
					return "", false
				}
				hex = s[i+2 : i+end]
				i += end
			} else {
				if i+4 >= len(s) {
					return "", false
				}
				hex = s[i+1 : i+5]
				i += 4
			}
			r, ok := hexValue(hex)
			if !ok {
				return "", false
			}
			b.WriteRune(r)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), true
}

func hexValue(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	var r rune
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			r = r*16 + rune(c-'0')
		case c >= 'a' && c <= 'f':
			r = r*16 + rune(c-'a'+10)
		case c >= 'A' && c <= 'F':
			r = r*16 + rune(c-'A'+10)
		default:
			return 0, false
		}
	}
	return r, true
}
