package transform

import (
	"html"
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
)

var runtimeExports = []string{"jsx", "jsxs", "Fragment"}

type jsxState struct {
	classic  bool
	factory  string
	fragment string
	elements int
	// need and local track the automatic runtime bindings the unit uses.
	need    map[string]bool
	local   map[string]string
	runtime *importDecl
}

func (j *jsxState) used() bool {
	return j.elements > 0
}

type jsxChild struct {
	text string
	at   int
	node *Node
}

type jsxParts struct {
	name     *Node
	attrs    []*Node
	children []jsxChild
	fragment bool
}

func (u *unit) analyzeJSX() {
	j := &jsxState{
		classic:  u.cfg.JSX.Runtime != domain.JSXAutomatic,
		factory:  u.cfg.JSX.Factory,
		fragment: u.cfg.JSX.Fragment,
		need:     make(map[string]bool),
		local:    make(map[string]string),
	}
	if j.factory == "" {
		j.factory = "React.createElement"
	}
	if j.fragment == "" {
		j.fragment = "React.Fragment"
	}
	u.jsx = j
	u.root.Walk(func(n *Node) bool {
		if isTypeSubtree(n) {
			return false
		}
		if !isJSXElement(n) {
			return true
		}
		j.elements++
		p := u.jsxParse(n)
		if j.classic {
			u.countFactory(n, j.factory)
			if p.fragment {
				u.countFactory(n, j.fragment)
			}
			return true
		}
		if len(p.children) > 1 {
			j.need["jsxs"] = true
		} else {
			j.need["jsx"] = true
		}
		if p.fragment {
			j.need["Fragment"] = true
		}
		return true
	})
	for _, k := range runtimeExports {
		if j.need[k] {
			j.local[k] = u.names.unique("_" + k)
		}
	}
}

func isJSXElement(n *Node) bool {
	switch n.Kind {
	case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
		return true
	}
	return false
}

// countFactory keeps the binding a factory expression starts with alive.
func (u *unit) countFactory(n *Node, expr string) {
	root, _, _ := strings.Cut(expr, ".")
	if b := u.sc.resolveName(n, root); b != nil {
		u.pseudoRefs[b]++
	}
}

func (u *unit) jsxFactory(n *Node, expr string) string {
	root, rest, dotted := strings.Cut(expr, ".")
	if b := u.sc.resolveName(n, root); b != nil {
		if dotted {
			return u.refText(b) + "." + rest
		}
		return u.refText(b)
	}
	return expr
}

func (u *unit) jsxCallee(kind string) string {
	rt := u.jsx.runtime
	if rt != nil && u.rewritesModules() {
		if kind == "Fragment" {
			return propAccess(rt.varName, kind)
		}
		return "(0, " + propAccess(rt.varName, kind) + ")"
	}
	return u.jsx.local[kind]
}

func (u *unit) runtimeImportText(rt *importDecl) string {
	var names []string
	for _, k := range runtimeExports {
		if local := u.jsx.local[k]; local != "" {
			names = append(names, k+" as "+local)
		}
	}
	return "import { " + strings.Join(names, ", ") + " } from " + u.specText(rt) + ";"
}

func (u *unit) jsxNode(n *Node) bool {
	if !isJSXElement(n) {
		return false
	}
	p := u.jsxParse(n)
	if u.jsx.classic {
		u.emitClassicJSX(n, p)
	} else {
		u.emitAutomaticJSX(n, p)
	}
	return true
}

func (u *unit) jsxParse(n *Node) jsxParts {
	var p jsxParts
	var start, end int
	switch n.Kind {
	case "jsx_self_closing_element":
		p.name = n.Child("name")
		p.attrs = jsxAttributes(n, p.name)
		return p
	case "jsx_element":
		open := n.Child("open_tag")
		if open == nil {
			open = n.Find("jsx_opening_element")
		}
		closing := n.Child("close_tag")
		if closing == nil {
			closing = n.Find("jsx_closing_element")
		}
		if open == nil {
			return p
		}
		p.name = open.Child("name")
		p.attrs = jsxAttributes(open, p.name)
		p.fragment = p.name == nil
		start, end = open.End, n.End
		if closing != nil {
			end = closing.Start
		}
	case "jsx_fragment":
		p.fragment = true
		start, end = n.Start, n.End
		for _, c := range n.Children {
			if c.Named {
				continue
			}
			switch {
			case c.Kind == ">" && start == n.Start:
				start = c.End
			case c.Kind == "<" && c.Start > n.Start:
				end = c.Start
			}
		}
	}
	prev := start
	for _, c := range n.Children {
		if c.Start < start || c.End > end {
			continue
		}
		if !isJSXElement(c) && c.Kind != "jsx_expression" {
			continue
		}
		p.addText(u.src, prev, c.Start)
		prev = c.End
		if c.Kind == "jsx_expression" && c.FirstNamed() == nil {
			continue
		}
		p.children = append(p.children, jsxChild{node: c})
	}
	p.addText(u.src, prev, end)
	return p
}

func (p *jsxParts) addText(src []byte, start, end int) {
	if end <= start {
		return
	}
	if t := cleanJSXText(string(src[start:end])); t != "" {
		p.children = append(p.children, jsxChild{text: t, at: start})
	}
}

func jsxAttributes(n, name *Node) []*Node {
	var out []*Node
	for _, c := range n.NamedChildren() {
		if c == name {
			continue
		}
		switch c.Kind {
		case "jsx_attribute", "jsx_expression":
			out = append(out, c)
		}
	}
	return out
}

// cleanJSXText collapses JSX text the way React does: lines are trimmed,
// blank lines dropped and the rest joined by single spaces.
func cleanJSXText(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	lines := strings.Split(raw, "\n")
	last := -1
	for i, l := range lines {
		if strings.Trim(l, " \t") != "" {
			last = i
		}
	}
	var b strings.Builder
	for i, line := range lines {
		line = strings.ReplaceAll(line, "\t", " ")
		if i != 0 {
			line = strings.TrimLeft(line, " ")
		}
		if i != len(lines)-1 {
			line = strings.TrimRight(line, " ")
		}
		if line == "" {
			continue
		}
		b.WriteString(line)
		if i != last {
			b.WriteByte(' ')
		}
	}
	return html.UnescapeString(b.String())
}

func (u *unit) emitJSXTag(n *Node, p jsxParts, fragment string) {
	if p.fragment {
		u.e.synth(n.Start, fragment)
		return
	}
	name := p.name
	if name == nil {
		return
	}
	switch name.Kind {
	case "identifier":
		if t := u.text(name); isIntrinsicTag(t) {
			u.e.text(name.Start, jsQuote(t), "")
			return
		}
		u.emit(name)
	case "jsx_namespace_name":
		u.e.text(name.Start, jsQuote(u.text(name)), "")
	default:
		u.emit(name)
	}
}

func (u *unit) emitClassicJSX(n *Node, p jsxParts) {
	u.e.synth(n.Start, u.jsxFactory(n, u.jsx.factory)+"(")
	u.emitJSXTag(n, p, u.jsxFactory(n, u.jsx.fragment))
	if len(p.attrs) == 0 {
		u.e.synth(-1, ", null")
	} else {
		u.e.synth(-1, ", ")
		u.emitJSXProps(p.attrs, nil, nil)
	}
	for _, c := range p.children {
		u.e.synth(-1, ", ")
		u.emitJSXChild(c)
	}
	u.e.synth(-1, ")")
}

func (u *unit) emitAutomaticJSX(n *Node, p jsxParts) {
	static := len(p.children) > 1
	fn := "jsx"
	if static {
		fn = "jsxs"
	}
	key := u.jsxKey(p.attrs)
	u.e.synth(n.Start, u.jsxCallee(fn)+"(")
	u.emitJSXTag(n, p, u.jsxCallee("Fragment"))
	u.e.synth(-1, ", ")
	var children func()
	if len(p.children) > 0 {
		children = func() {
			u.e.synth(-1, "children: ")
			if !static {
				u.emitJSXChild(p.children[0])
				return
			}
			u.e.synth(-1, "[")
			for i, c := range p.children {
				if i > 0 {
					u.e.synth(-1, ", ")
				}
				u.emitJSXChild(c)
			}
			u.e.synth(-1, "]")
		}
	}
	u.emitJSXProps(p.attrs, key, children)
	if key != nil {
		u.e.synth(-1, ", ")
		u.emitJSXValue(jsxAttrValue(key))
	}
	u.e.synth(-1, ")")
}

func (u *unit) jsxKey(attrs []*Node) *Node {
	for _, a := range attrs {
		if a.Kind == "jsx_attribute" {
			if name := a.FirstNamed(); name != nil && u.text(name) == "key" {
				return a
			}
		}
	}
	return nil
}

func jsxAttrValue(a *Node) *Node {
	kids := a.NamedChildren()
	if len(kids) < 2 {
		return nil
	}
	return kids[len(kids)-1]
}

func (u *unit) emitJSXProps(attrs []*Node, skip *Node, children func()) {
	first := true
	sep := func() {
		if first {
			u.e.synth(-1, "{ ")
		} else {
			u.e.synth(-1, ", ")
		}
		first = false
	}
	for _, a := range attrs {
		if a == skip {
			continue
		}
		sep()
		if a.Kind == "jsx_expression" {
			u.emit(a.FirstNamed())
			continue
		}
		name := a.FirstNamed()
		key := u.text(name)
		if !isIdentifierName(key) {
			key = jsQuote(key)
		}
		u.e.text(name.Start, key, "")
		u.e.synth(-1, ": ")
		u.emitJSXValue(jsxAttrValue(a))
	}
	if children != nil {
		sep()
		children()
	}
	if first {
		u.e.synth(-1, "{}")
		return
	}
	u.e.synth(-1, " }")
}

func (u *unit) emitJSXValue(v *Node) {
	switch {
	case v == nil:
		u.e.synth(-1, "true")
	case v.Kind == "string":
		t := u.text(v)
		u.e.text(v.Start, jsQuote(html.UnescapeString(t[1:len(t)-1])), "")
	case v.Kind == "jsx_expression":
		u.emit(v.FirstNamed())
	default:
		u.emit(v)
	}
}

func (u *unit) emitJSXChild(c jsxChild) {
	switch {
	case c.node == nil:
		u.e.text(c.at, jsQuote(c.text), "")
	case c.node.Kind == "jsx_expression":
		u.emit(c.node.FirstNamed())
	default:
		u.emit(c.node)
	}
}
