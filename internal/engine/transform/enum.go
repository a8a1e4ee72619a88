package transform

import (
	"math"
	"strconv"
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
)

// constValue is a folded enum member value.
type constValue struct {
	str   bool
	s     string
	n     float64
	valid bool
}

func (v constValue) literal() string {
	if v.str {
		return jsQuote(v.s)
	}
	return formatNumber(v.n)
}

type enumMember struct {
	name  string
	node  *Node
	init  *Node
	value constValue
}

// enumInfo is one enum declaration. Merged declarations share a binding but
// fold their members separately, as each body is its own scope.
type enumInfo struct {
	binding *binding
	node    *Node
	members []*enumMember
	byName  map[string]*enumMember
	// erased is set for a const enum whose declaration emits nothing.
	erased bool
}

// analyzeEnums folds every enum's members and inlines const enum references.
func (u *unit) analyzeEnums() {
	u.enums = make(map[*Node]*enumInfo)
	u.enumsOf = make(map[*binding][]*enumInfo)
	u.root.Walk(func(n *Node) bool {
		if n.Kind != "enum_declaration" {
			return !isTypeSubtree(n)
		}
		info := u.foldEnum(n)
		u.enums[n] = info
		if info.binding != nil {
			u.enumsOf[info.binding] = append(u.enumsOf[info.binding], info)
		}
		return false
	})
	for b, infos := range u.enumsOf {
		if b.kind != bindConstEnum {
			continue
		}
		for _, ref := range b.refs {
			u.inlineConstRef(ref, infos)
		}
	}
}

func (u *unit) foldEnum(n *Node) *enumInfo {
	info := &enumInfo{
		binding: u.sc.declOf[n.Child("name")],
		node:    n,
		byName:  make(map[string]*enumMember),
	}
	info.erased = n.HasToken("const") && n.Parent.Kind != "export_statement"
	body := n.Child("body")
	if body == nil {
		return info
	}
	next := constValue{valid: true}
	for _, c := range body.NamedChildren() {
		var m *enumMember
		switch c.Kind {
		case "property_identifier", "string", "number":
			m = &enumMember{name: enumMemberName(c, u.src), node: c}
		case "enum_assignment":
			m = &enumMember{name: enumMemberName(c.Child("name"), u.src), node: c, init: c.Child("value")}
		default:
			continue
		}
		if m.init != nil {
			m.value = u.fold(m.init, info)
			if !m.value.valid {
				u.qualifyMemberRefs(m.init, info)
			}
		} else {
			if !next.valid {
				u.errorAt(c, domain.CodeTransform, "enum member %q must have an initializer", m.name)
			}
			m.value = next
		}
		if m.value.valid && !m.value.str {
			next = constValue{n: m.value.n + 1, valid: true}
		} else {
			next = constValue{}
		}
		info.members = append(info.members, m)
		info.byName[m.name] = m
	}
	return info
}

func enumMemberName(n *Node, src []byte) string {
	if n == nil {
		return ""
	}
	if n.Kind == "string" {
		return unquote(n.Text(src))
	}
	return n.Text(src)
}

// lookupMember finds a folded member across every merged declaration of b.
func (u *unit) lookupMember(b *binding, name string) (constValue, bool) {
	for _, info := range u.enumsOf[b] {
		if m, ok := info.byName[name]; ok && m.value.valid {
			return m.value, true
		}
	}
	return constValue{}, false
}

func (u *unit) fold(n *Node, info *enumInfo) constValue {
	switch n.Kind {
	case "number":
		v, ok := parseJSNumber(u.text(n))
		return constValue{n: v, valid: ok}
	case "string":
		return constValue{str: true, s: unquote(u.text(n)), valid: true}
	case "template_string":
		if n.Find("template_substitution") != nil {
			return constValue{}
		}
		t := u.text(n)
		s, ok := decodeJSString(t[1 : len(t)-1])
		return constValue{str: true, s: s, valid: ok}
	case "parenthesized_expression":
		if c := n.FirstNamed(); c != nil {
			return u.fold(c, info)
		}
	case "identifier":
		name := u.text(n)
		if m, ok := info.byName[name]; ok {
			return m.value
		}
		if b := u.sc.refOf[n]; b != nil && (b.kind == bindEnum || b.kind == bindConstEnum) {
			return constValue{}
		}
		switch name {
		case "Infinity":
			return constValue{n: math.Inf(1), valid: true}
		case "NaN":
			return constValue{n: math.NaN(), valid: true}
		}
	case "member_expression", "subscript_expression":
		obj := n.Child("object")
		if obj == nil || obj.Kind != "identifier" {
			return constValue{}
		}
		var key string
		if p := n.Child("property"); p != nil {
			key = u.text(p)
		} else if idx := n.Child("index"); idx != nil && idx.Kind == "string" {
			key = unquote(u.text(idx))
		} else {
			return constValue{}
		}
		if u.text(obj) == nameOrEmpty(info.binding) {
			if m, ok := info.byName[key]; ok {
				return m.value
			}
		}
		if b := u.sc.refOf[obj]; b != nil {
			if v, ok := u.lookupMember(b, key); ok {
				return v
			}
		}
	case "unary_expression":
		arg := n.Child("argument")
		op := n.Child("operator")
		if arg == nil || op == nil {
			return constValue{}
		}
		v := u.fold(arg, info)
		if !v.valid || v.str {
			return constValue{}
		}
		switch u.text(op) {
		case "-":
			return constValue{n: -v.n, valid: true}
		case "+":
			return v
		case "~":
			return constValue{n: float64(^toInt32(v.n)), valid: true}
		}
	case "binary_expression":
		l, r, op := n.Child("left"), n.Child("right"), n.Child("operator")
		if l == nil || r == nil || op == nil {
			return constValue{}
		}
		return foldBinary(u.text(op), u.fold(l, info), u.fold(r, info))
	}
	return constValue{}
}

func nameOrEmpty(b *binding) string {
	if b == nil {
		return ""
	}
	return b.name
}

func foldBinary(op string, l, r constValue) constValue {
	if !l.valid || !r.valid {
		return constValue{}
	}
	if op == "+" && (l.str || r.str) {
		return constValue{str: true, s: l.text() + r.text(), valid: true}
	}
	if l.str || r.str {
		return constValue{}
	}
	a, b := l.n, r.n
	var v float64
	switch op {
	case "+":
		v = a + b
	case "-":
		v = a - b
	case "*":
		v = a * b
	case "/":
		v = a / b
	case "%":
		v = math.Mod(a, b)
	case "**":
		v = math.Pow(a, b)
	case "|":
		v = float64(toInt32(a) | toInt32(b))
	case "&":
		v = float64(toInt32(a) & toInt32(b))
	case "^":
		v = float64(toInt32(a) ^ toInt32(b))
	case "<<":
		v = float64(toInt32(a) << (uint32(toInt32(b)) & 31))
	case ">>":
		v = float64(toInt32(a) >> (uint32(toInt32(b)) & 31))
	case ">>>":
		v = float64(uint32(toInt32(a)) >> (uint32(toInt32(b)) & 31))
	default:
		return constValue{}
	}
	return constValue{n: v, valid: true}
}

func (v constValue) text() string {
	if v.str {
		return v.s
	}
	return formatNumber(v.n)
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(math.Mod(f, 1<<32)))))
}

func parseJSNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, "_", "")
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			v, err := strconv.ParseUint(s[2:], base, 64)
			return float64(v), err == nil
		}
	}
	if strings.HasSuffix(s, "n") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// formatNumber renders v the way JavaScript's Number#toString does for the
// values enums hold.
func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	case v == math.Trunc(v) && math.Abs(v) < 1e21:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mant, exp := s[:i], s[i+1:]
		sign := exp[:1]
		exp = strings.TrimLeft(exp[1:], "0")
		s = mant + "e" + sign + exp
	}
	return s
}

// qualifyMemberRefs rewrites bare references to earlier members inside a
// non-constant initializer to E.member.
func (u *unit) qualifyMemberRefs(init *Node, info *enumInfo) {
	if info.binding == nil {
		return
	}
	init.Walk(func(n *Node) bool {
		if n.Kind != "identifier" {
			return true
		}
		if _, ok := info.byName[u.text(n)]; ok {
			u.override[n] = propAccess(u.nameOf(info.binding), u.text(n))
		}
		return true
	})
}

// inlineConstRef replaces E.A for a local const enum with its value.
func (u *unit) inlineConstRef(ref *Node, infos []*enumInfo) {
	p := ref.Parent
	if p == nil || ref.Field != "object" {
		return
	}
	var key string
	switch p.Kind {
	case "member_expression":
		key = u.text(p.Child("property"))
	case "subscript_expression":
		idx := p.Child("index")
		if idx == nil || idx.Kind != "string" {
			return
		}
		key = unquote(u.text(idx))
	default:
		return
	}
	for _, info := range infos {
		if m, ok := info.byName[key]; ok && m.value.valid {
			u.override[p] = u.inlineText(m.value.literal(), u.text(p))
			u.inlined[ref] = true
			return
		}
	}
}

func (u *unit) inlineText(lit, original string) string {
	if u.minify {
		return lit
	}
	return lit + " /* " + strings.ReplaceAll(original, "*/", "* /") + " */"
}

// emitEnum lowers an enum declaration to the IIFE that fills its object.
func (u *unit) emitEnum(n *Node) {
	info := u.enums[n]
	if info == nil || info.binding == nil || info.erased {
		return
	}
	b := info.binding
	name := u.nameOf(b)
	indent := lineIndent(u.src, n.Start)
	inner := indent + "    "
	u.openDecl(n, b)
	u.stmtIndent(n.Start, indent, "(function ("+name+") {")
	for _, m := range info.members {
		key := jsQuote(m.name)
		switch {
		case m.value.valid && m.value.str:
			u.stmtIndent(m.node.Start, inner, name+"["+key+"] = "+m.value.literal()+";")
		case m.value.valid:
			u.stmtIndent(m.node.Start, inner, name+"["+name+"["+key+"] = "+m.value.literal()+"] = "+key+";")
		default:
			u.stmtIndent(m.node.Start, inner, name+"["+name+"["+key+"] = ")
			u.emit(m.init)
			u.e.synth(-1, "] = "+key+";")
		}
	}
	u.stmtIndent(n.End, indent, "})("+u.enumTail(b)+");")
}

// openDecl writes the var an enum or namespace IIFE assigns, once per binding.
func (u *unit) openDecl(n *Node, b *binding) {
	if b.declared {
		return
	}
	b.declared = true
	if b.kind != bindEnum && b.kind != bindConstEnum && b.kind != bindNamespace {
		// Merged into a function or class.
		return
	}
	if u.systemHoisted(b) {
		return
	}
	if _, ok := u.nsOwner[b]; ok {
		u.e.synth(n.Start, "let "+u.nameOf(b)+";")
		return
	}
	kw := "var "
	if !b.topLevel() {
		kw = "let "
	}
	u.e.synth(n.Start, kw+u.nameOf(b)+";")
}

// enumTail is the IIFE argument that creates or reuses the object.
func (u *unit) enumTail(b *binding) string {
	name := u.nameOf(b)
	if owner, ok := u.nsOwner[b]; ok {
		acc := propAccess(owner, b.name)
		return name + " = " + acc + " || (" + acc + " = {})"
	}
	assign := name + " = {}"
	if u.mod != nil {
		for _, exp := range u.exportNames(b) {
			assign = u.wrapExport(exp, assign)
		}
	}
	return name + " || (" + assign + ")"
}
