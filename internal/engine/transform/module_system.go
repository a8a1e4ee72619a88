package transform

import (
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
)

// systemGroup is one System.register dependency and everything its setter
// assigns or re-exports.
type systemGroup struct {
	specifier string
	param     string
	decls     []*importDecl
	froms     []*exportFrom
	reexports []reexport
}

func (u *unit) systemGroups() []*systemGroup {
	m := u.mod
	var groups []*systemGroup
	bySpec := make(map[string]*systemGroup)
	group := func(spec, base string) *systemGroup {
		if g, ok := bySpec[spec]; ok {
			return g
		}
		g := &systemGroup{specifier: spec, param: u.names.suffixed(base)}
		bySpec[spec] = g
		groups = append(groups, g)
		return g
	}
	for _, d := range m.imports {
		if !d.keep || d.equals != nil {
			continue
		}
		base := d.varName
		if base == "" {
			base = moduleBaseName(d.specifier)
		}
		g := group(u.specText(d), base)
		g.decls = append(g.decls, d)
	}
	for _, f := range m.froms {
		g := group(u.text(f.spec), f.varName)
		g.froms = append(g.froms, f)
	}
	for _, st := range u.root.Children {
		for _, r := range m.reexports[st] {
			if r.decl == nil {
				continue
			}
			g := bySpec[u.specText(r.decl)]
			if g != nil {
				g.reexports = append(g.reexports, r)
			}
		}
	}
	return groups
}

// systemHoistedNames lists the variables declared ahead of the setters.
func (u *unit) systemHoistedNames(groups []*systemGroup) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, b := range u.sc.root.order {
		switch b.kind {
		case bindFunction, bindImport, bindImportEquals, bindParam:
			continue
		case bindConstEnum:
			if u.enumErased(b) {
				continue
			}
		case bindNamespace:
			if !u.anyInstantiated(b) {
				continue
			}
		}
		add(u.nameOf(b))
	}
	if name := u.mod.defaultName; name != "" && !u.defaultIsFunction() {
		add(name)
	}
	for _, g := range groups {
		for _, d := range g.decls {
			add(d.varName)
		}
	}
	return out
}

func (u *unit) anyInstantiated(b *binding) bool {
	for _, id := range append([]*Node{b.decl}, b.decls...) {
		if ns := id.Ancestor("internal_module", "module"); ns != nil && u.instantiated(ns) {
			return true
		}
	}
	return false
}

func (u *unit) defaultIsFunction() bool {
	for _, st := range u.root.Children {
		if st.Kind == "export_statement" && st.HasToken("default") {
			if v := st.Child("value"); v != nil {
				return v.Kind != "class"
			}
		}
	}
	return false
}

// systemHoistedFunction returns the function declaration a top-level
// statement contributes to the hoisted section, if any.
func systemHoistedFunction(st *Node) *Node {
	switch st.Kind {
	case "function_declaration", "generator_function_declaration":
		return st
	case "export_statement":
		if d := st.Child("declaration"); d != nil {
			switch d.Kind {
			case "function_declaration", "generator_function_declaration":
				return d
			}
		}
		if v := st.Child("value"); v != nil && st.HasToken("default") && v.Child("name") == nil {
			switch v.Kind {
			case "function_expression", "function", "generator_function":
				return v
			}
		}
	}
	return nil
}

func (u *unit) emitSystem(directives, body []*Node) {
	m := u.mod
	groups := u.systemGroups()
	deps := make([]string, len(groups))
	for i, g := range groups {
		deps[i] = g.specifier
	}
	u.e.statementBreak("System")
	u.e.synth(-1, "System.register(["+strings.Join(deps, ", ")+"], function (exports_1, context_1) {")
	u.emitDirectives(directives, true)
	if hoisted := u.systemHoistedNames(groups); len(hoisted) > 0 {
		u.stmt(-1, "var "+strings.Join(hoisted, ", ")+";")
	}
	u.emitHelpers()

	var rest []*Node
	for _, st := range body {
		fn := systemHoistedFunction(st)
		switch {
		case fn != nil:
			u.e.statementBreak(u.text(fn))
			if fn.Child("name") == nil {
				u.emitNamed(fn, m.defaultName)
			} else {
				u.emit(fn)
			}
		case st.Kind == "import_statement":
			if d := m.byNode[st]; d != nil && d.equals != nil {
				u.errorAt(st, domain.CodeTransform, "import assignments cannot be compiled to SystemJS modules")
			}
		default:
			rest = append(rest, st)
		}
	}
	for _, fe := range m.fnExports {
		u.stmt(-1, "exports_1("+jsQuote(fe[0])+", "+fe[1]+");")
	}
	if u.systemHasStar() {
		u.emitExportStarHelper()
	}
	u.stmt(-1, "return {")
	u.stmt(-1, "setters: [")
	for i, g := range groups {
		u.stmt(-1, "function ("+g.param+") {")
		u.emitSetterBody(g)
		if i < len(groups)-1 {
			u.stmt(-1, "},")
		} else {
			u.stmt(-1, "}")
		}
	}
	u.stmt(-1, "],")
	u.stmt(-1, "execute: function () {")
	u.emitBody(rest)
	u.stmt(-1, "}")
	u.stmt(-1, "};")
	u.stmt(-1, "});")
}

func (u *unit) emitSetterBody(g *systemGroup) {
	for _, d := range g.decls {
		if d.varName != "" {
			u.stmt(-1, d.varName+" = "+g.param+";")
		}
	}
	for _, f := range g.froms {
		switch f.kind {
		case fromStar:
			u.stmt(-1, "exportStar_1("+g.param+");")
		case fromStarAs:
			u.stmt(-1, "exports_1("+jsQuote(f.alias)+", "+g.param+");")
		case fromNamed:
			parts := make([]string, len(f.names))
			for i, s := range f.names {
				parts[i] = jsQuote(s.exported) + ": " + g.param + "[" + jsQuote(s.local) + "]"
			}
			u.stmt(-1, "exports_1({ "+strings.Join(parts, ", ")+" });")
		}
	}
	for _, r := range g.reexports {
		value := g.param
		if name := importedName(r.decl, r.b); name != "*" {
			value = propAccess(g.param, name)
		}
		u.stmt(-1, "exports_1("+jsQuote(r.exported)+", "+value+");")
	}
}

func (u *unit) systemHasStar() bool {
	for _, f := range u.mod.froms {
		if f.kind == fromStar {
			return true
		}
	}
	return false
}

// emitExportStarHelper writes the exportStar_1 function, which copies a
// dependency's exports except the names this module defines itself.
func (u *unit) emitExportStarHelper() {
	m := u.mod
	var names []string
	seen := map[string]bool{"default": true}
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, jsQuote(n)+": true")
		}
	}
	for _, b := range m.order {
		for _, n := range m.exports[b] {
			add(n)
		}
	}
	for _, f := range m.froms {
		switch f.kind {
		case fromNamed:
			for _, s := range f.names {
				add(s.exported)
			}
		case fromStarAs:
			add(f.alias)
		}
	}
	for _, st := range u.root.Children {
		for _, r := range m.reexports[st] {
			add(r.exported)
		}
		for _, g := range m.globals[st] {
			add(g.exported)
		}
	}
	u.stmt(-1, "var exportedNames_1 = {\n    "+strings.Join(names, ",\n    ")+"\n};")
	u.stmt(-1, `function exportStar_1(m) {
    var exports = {};
    for (var n in m) {
        if (n !== "default" && !exportedNames_1.hasOwnProperty(n)) exports[n] = m[n];
    }
    exports_1(exports);
}`)
}

func (u *unit) systemStatement(n *Node) bool {
	switch n.Kind {
	case "import_statement":
		return true
	case "lexical_declaration", "variable_declaration":
		u.systemDeclaration(n)
		return true
	case "class_declaration", "abstract_class_declaration":
		u.systemClass(n)
		return true
	case "export_statement":
		return u.systemExport(n)
	}
	return false
}

// systemDeclaration turns a hoisted declaration into assignments, publishing
// exported names as they are assigned.
func (u *unit) systemDeclaration(decl *Node) {
	first := true
	var post []string
	for _, d := range decl.NamedChildren() {
		if d.Kind != "variable_declarator" {
			continue
		}
		name, value := d.Child("name"), d.Child("value")
		if name == nil || value == nil {
			continue
		}
		sep := ""
		if !first {
			sep = ", "
		}
		first = false
		if name.Kind == "identifier" {
			b := u.sc.declOf[name]
			pre, suffix := u.exportAffixes(u.exportNames(b))
			u.e.synth(d.Start, sep+pre+u.nameOf(b)+" = ")
			u.emit(value)
			if suffix != "" {
				u.e.synth(-1, suffix)
			}
			continue
		}
		u.e.synth(d.Start, sep+"(")
		u.emit(name)
		u.e.synth(-1, " = ")
		u.emit(value)
		u.e.synth(-1, ")")
		for _, id := range declaredNames(d.Parent) {
			if !name.contains(id) {
				continue
			}
			b := u.sc.declOf[id]
			for _, exp := range u.exportNames(b) {
				post = append(post, u.wrapExport(exp, u.nameOf(b)))
			}
		}
	}
	if first {
		return
	}
	for _, p := range post {
		u.e.synth(-1, ", "+p)
	}
	u.e.synth(-1, ";")
}

// contains reports whether d lies within n.
func (n *Node) contains(d *Node) bool {
	return d.Start >= n.Start && d.End <= n.End
}

func (u *unit) systemClass(n *Node) {
	b := u.sc.declOf[n.Child("name")]
	if b == nil {
		u.emitBase(n)
		return
	}
	if u.decorate && u.deco.classes[n] != nil {
		u.emitBase(n)
		return
	}
	u.e.synth(n.Start, u.nameOf(b)+" = ")
	u.emitBase(n)
	u.e.synth(-1, ";")
	for _, line := range u.exportAssignmentsAfter(n) {
		u.stmt(n.End, line)
	}
}

func (u *unit) systemExport(n *Node) bool {
	m := u.mod
	decl := n.Child("declaration")
	value := n.Child("value")
	switch {
	case n == m.exportAssign:
		u.errorAt(n, domain.CodeTransform, "export assignments cannot be compiled to SystemJS modules")
	case decl != nil:
		switch decl.Kind {
		case "function_declaration", "generator_function_declaration":
		case "lexical_declaration", "variable_declaration":
			u.systemDeclaration(decl)
		case "class_declaration", "abstract_class_declaration":
			u.systemClass(decl)
			if u.decorate && u.deco.classes[decl] != nil {
				for _, line := range u.exportAssignmentsAfter(decl) {
					u.stmt(n.End, line)
				}
			}
		default:
			u.emit(decl)
		}
	case value != nil && n.HasToken("default"):
		if systemHoistedFunction(n) == nil {
			u.emitDefaultValue(n, value)
		}
	case m.fromByNode[n] != nil:
	default:
		for i, s := range m.globals[n] {
			line := u.wrapExport(s.exported, s.local) + ";"
			if i == 0 {
				u.e.synth(n.Start, line)
			} else {
				u.stmt(n.Start, line)
			}
		}
	}
	return true
}
