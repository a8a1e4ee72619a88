package transform

import (
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
)

type decoratorState struct {
	classes map[*Node]*classDecorators
}

// classDecorators collects the legacy decorators of one class declaration.
type classDecorators struct {
	node       *Node
	decorators []*Node
	ctor       *Node
	params     [][]*Node
	members    []*memberDecorators
}

// lowered reports whether the class itself is reassigned through __decorate.
func (c *classDecorators) lowered() bool {
	if len(c.decorators) > 0 {
		return true
	}
	for _, p := range c.params {
		if len(p) > 0 {
			return true
		}
	}
	return false
}

type memberDecorators struct {
	member     *Node
	decorators []*Node
	params     [][]*Node
}

func (u *unit) analyzeDecorators() {
	u.deco = &decoratorState{classes: make(map[*Node]*classDecorators)}
	if !u.decorate {
		return
	}
	u.root.Walk(func(n *Node) bool {
		if isTypeSubtree(n) {
			return false
		}
		switch n.Kind {
		case "class_declaration", "abstract_class_declaration", "class":
		default:
			return true
		}
		c := u.collectClassDecorators(n)
		if c == nil {
			return true
		}
		if n.Kind == "class" || n.Child("name") == nil {
			u.errorAt(n, domain.CodeTransform, "decorators on anonymous classes are not supported")
			return true
		}
		u.deco.classes[n] = c
		u.helpers |= helperDecorate
		if u.cfg.TypeScript.EmitDecoratorMetadata {
			u.helpers |= helperMetadata
		}
		paramDecorated := func(ps [][]*Node) {
			for _, p := range ps {
				if len(p) > 0 {
					u.helpers |= helperParam
				}
			}
		}
		paramDecorated(c.params)
		for _, m := range c.members {
			paramDecorated(m.params)
		}
		if u.cfg.TypeScript.EmitDecoratorMetadata {
			u.countMetadataRefs(c)
		}
		return true
	})
}

func (u *unit) collectClassDecorators(n *Node) *classDecorators {
	c := &classDecorators{node: n, decorators: decoratorsOf(n)}
	if p := n.Parent; p != nil && p.Kind == "export_statement" {
		c.decorators = append(decoratorsOf(p), c.decorators...)
	}
	body := n.Child("body")
	decorated := len(c.decorators) > 0
	var pending []*Node
	for _, m := range body.NamedChildren() {
		if m.Kind == "decorator" {
			pending = append(pending, m)
			continue
		}
		decs := append(pending, decoratorsOf(m)...)
		pending = nil
		switch m.Kind {
		case "method_definition", "public_field_definition":
		default:
			continue
		}
		if m.Kind == "method_definition" && m.Child("body") == nil {
			continue
		}
		params := paramDecorators(m)
		if name := m.Child("name"); m.Kind == "method_definition" && name != nil && u.text(name) == "constructor" {
			c.ctor = m
			c.params = params
			for _, p := range params {
				decorated = decorated || len(p) > 0
			}
			continue
		}
		hasParam := false
		for _, p := range params {
			hasParam = hasParam || len(p) > 0
		}
		if len(decs) == 0 && !hasParam {
			continue
		}
		decorated = true
		c.members = append(c.members, &memberDecorators{member: m, decorators: decs, params: params})
	}
	if !decorated {
		return nil
	}
	return c
}

func decoratorsOf(n *Node) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == "decorator" {
			out = append(out, c)
		}
	}
	return out
}

func methodParams(m *Node) []*Node {
	ps := m.Child("parameters")
	var out []*Node
	for _, p := range ps.NamedChildren() {
		switch p.Kind {
		case "required_parameter", "optional_parameter":
			if !isThisParam(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func paramDecorators(m *Node) [][]*Node {
	if m.Kind != "method_definition" {
		return nil
	}
	params := methodParams(m)
	out := make([][]*Node, len(params))
	for i, p := range params {
		out[i] = decoratorsOf(p)
	}
	return out
}

// countMetadataRefs keeps the bindings named by serialized types alive.
func (u *unit) countMetadataRefs(c *classDecorators) {
	count := func(t *Node) {
		if t == nil {
			return
		}
		t.Walk(func(n *Node) bool {
			if n.Kind == "type_identifier" || (n.Kind == "identifier" && n.Parent != nil && n.Parent.Kind == "nested_type_identifier" && n.Index == 0) {
				if b := u.sc.resolveName(c.node, u.text(n)); b != nil {
					u.pseudoRefs[b]++
				}
			}
			return n.Kind != "type_arguments"
		})
	}
	params := func(m *Node) {
		for _, p := range methodParams(m) {
			count(annotationType(p.Child("type")))
		}
	}
	if c.ctor != nil && c.lowered() {
		params(c.ctor)
	}
	for _, m := range c.members {
		if m.member.Kind == "public_field_definition" {
			count(annotationType(m.member.Child("type")))
			continue
		}
		params(m.member)
		count(annotationType(m.member.Child("return_type")))
	}
}

func annotationType(a *Node) *Node {
	if a == nil {
		return nil
	}
	if a.Kind == "type_annotation" {
		return a.FirstNamed()
	}
	return a
}

// decorateNode lowers decorated class declarations and drops decorator
// syntax everywhere else.
func (u *unit) decorateNode(n *Node) bool {
	if n.Kind == "decorator" {
		return true
	}
	c := u.deco.classes[n]
	if c == nil {
		return false
	}
	name := n.Child("name")
	b := u.sc.declOf[name]
	cls := u.text(name)
	if b != nil {
		cls = u.nameOf(b)
	}
	indent := lineIndent(u.src, n.Start)
	start := 0
	for start < len(n.Children) && n.Children[start].Kind == "decorator" {
		start++
	}
	if c.lowered() {
		u.e.synth(n.Start, u.declKeyword(b, "let")+cls+" = ")
		u.emitSeq(n.Children[start:])
		u.e.synth(-1, ";")
	} else {
		u.emitSeq(n.Children[start:])
	}
	for _, m := range c.members {
		u.emitMemberDecorate(n, indent, cls, m)
	}
	if c.lowered() {
		u.stmtIndent(n.End, indent, cls+" = __decorate([")
		first := u.emitDecoratorList(c.decorators, true)
		first = u.emitParamDecorators(c.params, first)
		if u.cfg.TypeScript.EmitDecoratorMetadata && c.ctor != nil {
			u.listSep(&first)
			u.e.synth(-1, `__metadata("design:paramtypes", [`+u.paramTypes(c.ctor)+"])")
		}
		u.e.synth(-1, "], "+cls+");")
	}
	if n.Parent == u.root && u.rewritesModules() {
		for _, line := range u.exportAssignmentsAfter(n) {
			u.stmtIndent(n.End, indent, line)
		}
	}
	return true
}

func (u *unit) listSep(first *bool) {
	if !*first {
		u.e.synth(-1, ", ")
	}
	*first = false
}

func (u *unit) emitDecoratorList(decs []*Node, first bool) bool {
	for _, d := range decs {
		u.listSep(&first)
		u.emit(d.FirstNamed())
	}
	return first
}

func (u *unit) emitParamDecorators(params [][]*Node, first bool) bool {
	for i, decs := range params {
		for _, d := range decs {
			u.listSep(&first)
			u.e.synth(d.Start, "__param("+formatNumber(float64(i))+", ")
			u.emit(d.FirstNamed())
			u.e.synth(-1, ")")
		}
	}
	return first
}

func (u *unit) emitMemberDecorate(class *Node, indent, cls string, m *memberDecorators) {
	member := m.member
	target := cls + ".prototype"
	if member.HasToken("static") {
		target = cls
	}
	desc := "null"
	if member.Kind == "public_field_definition" {
		desc = "void 0"
	}
	at := member.Start
	if len(m.decorators) > 0 {
		at = m.decorators[0].Start
	}
	u.stmtIndent(at, indent, "__decorate([")
	first := u.emitDecoratorList(m.decorators, true)
	first = u.emitParamDecorators(m.params, first)
	if u.cfg.TypeScript.EmitDecoratorMetadata {
		if member.Kind == "public_field_definition" {
			u.listSep(&first)
			u.e.synth(-1, `__metadata("design:type", `+u.serializeType(class, annotationType(member.Child("type")))+")")
		} else {
			u.listSep(&first)
			u.e.synth(-1, `__metadata("design:type", Function)`)
			u.listSep(&first)
			u.e.synth(-1, `__metadata("design:paramtypes", [`+u.paramTypes(member)+"])")
			if rt := member.Child("return_type"); rt != nil {
				u.listSep(&first)
				u.e.synth(-1, `__metadata("design:returntype", `+u.serializeType(class, annotationType(rt))+")")
			}
		}
	}
	u.e.synth(-1, "], "+target+", ")
	u.emitMemberKey(member.Child("name"))
	u.e.synth(-1, ", "+desc+");")
}

func (u *unit) emitMemberKey(name *Node) {
	switch name.Kind {
	case "string", "number":
		u.e.text(name.Start, u.text(name), "")
	case "computed_property_name":
		u.emit(name.FirstNamed())
	default:
		u.e.text(name.Start, jsQuote(u.text(name)), "")
	}
}

func (u *unit) paramTypes(m *Node) string {
	params := methodParams(m)
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = u.serializeType(m, annotationType(p.Child("type")))
	}
	return strings.Join(out, ", ")
}

// serializeType maps a type annotation to the runtime value recorded as
// decorator metadata.
func (u *unit) serializeType(at, t *Node) string {
	if t == nil {
		return "Object"
	}
	switch t.Kind {
	case "predefined_type":
		switch u.text(t) {
		case "number":
			return "Number"
		case "string":
			return "String"
		case "boolean":
			return "Boolean"
		case "symbol":
			return "Symbol"
		case "bigint":
			return "BigInt"
		case "void", "undefined", "never":
			return "void 0"
		}
		return "Object"
	case "parenthesized_type", "readonly_type":
		return u.serializeType(at, t.FirstNamed())
	case "array_type", "tuple_type":
		return "Array"
	case "function_type", "constructor_type":
		return "Function"
	case "literal_type":
		if l := t.FirstNamed(); l != nil {
			switch l.Kind {
			case "string", "template_string":
				return "String"
			case "number", "unary_expression":
				return "Number"
			case "true", "false":
				return "Boolean"
			case "null", "undefined":
				return "void 0"
			}
		}
		return "Object"
	case "union_type", "intersection_type":
		var out string
		for _, c := range t.NamedChildren() {
			s := u.serializeType(at, c)
			if s == "void 0" && t.Kind == "union_type" {
				continue
			}
			if out != "" && out != s {
				return "Object"
			}
			out = s
		}
		if out == "" {
			return "Object"
		}
		return out
	case "generic_type":
		return u.serializeType(at, t.FirstNamed())
	case "type_identifier":
		return u.typeValue(at, u.text(t), "")
	case "nested_type_identifier":
		kids := t.NamedChildren()
		if len(kids) == 0 {
			return "Object"
		}
		rest := strings.TrimPrefix(u.text(t)[kids[0].End-t.Start:], ".")
		return u.typeValue(at, u.text(kids[0]), rest)
	}
	return "Object"
}

// typeValue returns the expression for a type reference that may name a value.
func (u *unit) typeValue(at *Node, name, rest string) string {
	b := u.sc.resolveName(at, name)
	if b == nil {
		if u.sc.typeNames[name] {
			return "Object"
		}
		return joinMember(name, rest)
	}
	switch b.kind {
	case bindClass, bindEnum, bindVar, bindLet, bindConst, bindFunction, bindNamespace:
		return joinMember(u.refText(b), rest)
	case bindImport, bindImportEquals:
		if u.importKept(b) {
			return joinMember(u.refText(b), rest)
		}
	}
	return "Object"
}

func joinMember(base, rest string) string {
	if rest == "" {
		return base
	}
	return base + "." + rest
}

// importKept reports whether b survived type-only import elision.
func (u *unit) importKept(b *binding) bool {
	if u.mod == nil {
		return false
	}
	d := u.mod.declOf[b]
	if d == nil || !d.keep {
		return false
	}
	for _, k := range d.bindings() {
		if k == b {
			return true
		}
	}
	return false
}
