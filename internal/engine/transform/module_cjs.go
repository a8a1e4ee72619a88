package transform

import (
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
)

const esModuleMarker = `Object.defineProperty(exports, "__esModule", { value: true });`

// emitCommonJSPrologue writes what precedes the body of a CommonJS-style
// module: directives, helpers, the __esModule marker and export slots.
func (u *unit) emitCommonJSPrologue(directives []*Node) {
	m := u.mod
	u.emitDirectives(directives, true)
	u.emitHelpers()
	if m.exportAssign == nil {
		u.stmt(-1, esModuleMarker)
	}
	if len(m.voidNames) > 0 {
		var b strings.Builder
		for _, name := range m.voidNames {
			b.WriteString(propAccess("exports", name))
			b.WriteString(" = ")
		}
		b.WriteString("void 0;")
		u.stmt(-1, b.String())
	}
	for _, fe := range m.fnExports {
		u.stmt(-1, propAccess("exports", fe[0])+" = "+fe[1]+";")
	}
	if rt := m.runtime; rt != nil && u.format != domain.FormatAMD {
		u.stmt(-1, "const "+rt.varName+" = require("+u.specText(rt)+");")
	}
}

// emitDirectives writes the prologue directives, adding "use strict" when
// the output needs it and none is present.
func (u *unit) emitDirectives(directives []*Node, strict bool) {
	has := false
	for i, d := range directives {
		if i > 0 {
			u.e.gap(string(u.src[directives[i-1].End:d.Start]))
		} else {
			u.e.statementBreak(u.text(d))
		}
		u.emit(d)
		if t := u.text(d); strings.HasPrefix(t[1:], "use strict") {
			has = true
		}
	}
	if strict && !has {
		u.stmt(-1, `"use strict";`)
	}
}

func (u *unit) emitCommonJS(directives, body []*Node) {
	u.emitCommonJSPrologue(directives)
	u.emitBody(body)
}

// emitBody writes the top-level statements after a synthesized prologue.
func (u *unit) emitBody(body []*Node) {
	if len(body) == 0 {
		return
	}
	u.e.statementBreak(u.text(body[0]))
	u.emitSeq(body)
}

func (u *unit) cjsStatement(n *Node) bool {
	switch n.Kind {
	case "import_statement":
		return u.cjsImport(n)
	case "export_statement":
		return u.cjsExport(n)
	case "lexical_declaration", "variable_declaration", "class_declaration", "abstract_class_declaration":
		after := u.exportAssignmentsAfter(n)
		if len(after) == 0 {
			return false
		}
		u.emitBase(n)
		for _, line := range after {
			u.stmt(n.End, line)
		}
		return true
	}
	return false
}

// exportAssignmentsAfter lists `exports.b = a;` for each binding n declares
// that a later export clause publishes.
func (u *unit) exportAssignmentsAfter(n *Node) []string {
	var out []string
	for _, id := range declaredNames(n) {
		b := u.sc.declOf[id]
		if b == nil || u.mod.direct[b] {
			continue
		}
		for _, name := range u.mod.exports[b] {
			out = append(out, u.wrapExport(name, u.nameOf(b))+";")
		}
	}
	return out
}

func (u *unit) cjsImport(n *Node) bool {
	d := u.mod.byNode[n]
	if d == nil {
		return false
	}
	if !d.keep {
		return true
	}
	if u.format == domain.FormatAMD {
		u.amdImport(d)
		return true
	}
	req := "require(" + u.specText(d) + ")"
	switch {
	case d.bare:
		u.e.synth(n.Start, req+";")
	case d.equals != nil:
		u.e.synth(n.Start, "const "+u.nameOf(d.equals)+" = "+req+";")
	case d.destructure:
		u.e.synth(n.Start, "const "+destructureText(d)+" = "+req+";")
	default:
		u.e.synth(n.Start, "const "+d.varName+" = "+interopCall(d.interop, req)+";")
	}
	return true
}

func destructureText(d *importDecl) string {
	parts := make([]string, 0, len(d.named))
	for _, n := range d.named {
		if n.imported == n.local.name {
			parts = append(parts, n.imported)
		} else {
			parts = append(parts, n.imported+": "+n.local.name)
		}
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (u *unit) cjsExport(n *Node) bool {
	m := u.mod
	decl := n.Child("declaration")
	value := n.Child("value")
	switch {
	case n == m.exportAssign:
		expr := exportAssignValue(n)
		if u.format == domain.FormatCommonJS {
			u.e.synth(n.Start, "module.exports = ")
		} else {
			u.e.synth(n.Start, "return ")
		}
		u.emit(expr)
		u.e.synth(-1, ";")
	case decl != nil:
		u.cjsExportDeclaration(n, decl)
	case value != nil && n.HasToken("default"):
		u.emitDefaultValue(n, value)
	case m.fromByNode[n] != nil:
		u.cjsExportFrom(m.fromByNode[n])
	default:
		u.cjsExportClause(n)
	}
	return true
}

func exportAssignValue(n *Node) *Node {
	for _, c := range n.NamedChildren() {
		if c.Kind != "decorator" {
			return c
		}
	}
	return nil
}

func (u *unit) cjsExportDeclaration(n, decl *Node) {
	m := u.mod
	if n.HasToken("default") {
		u.emit(decl)
		if decl.Kind != "function_declaration" && decl.Kind != "generator_function_declaration" {
			if id := decl.Child("name"); id != nil {
				u.stmt(n.End, propAccess("exports", "default")+" = "+u.text(id)+";")
			}
		}
		return
	}
	switch decl.Kind {
	case "lexical_declaration", "variable_declaration":
		if simpleDeclarators(decl) {
			u.emitQualifiedDeclaration(decl, "exports")
			return
		}
		u.emit(decl)
		for _, id := range declaredNames(decl) {
			name := u.text(id)
			u.stmt(n.End, propAccess("exports", name)+" = "+name+";")
		}
	case "class_declaration", "abstract_class_declaration", "import_alias":
		u.emit(decl)
		for _, id := range declaredNames(decl) {
			if b := u.sc.declOf[id]; b != nil && (decl.Kind != "import_alias" || m.exports[b] != nil) {
				u.stmt(n.End, propAccess("exports", b.name)+" = "+u.nameOf(b)+";")
			}
		}
	default:
		u.emit(decl)
	}
}

// emitDefaultValue lowers `export default <value>`. Anonymous functions and
// classes are given the generated default name.
func (u *unit) emitDefaultValue(n, value *Node) {
	name := u.mod.defaultName
	publish := func(local string) {
		u.stmt(n.End, u.wrapExport("default", local)+";")
	}
	switch value.Kind {
	case "function_expression", "function", "generator_function":
		if name != "" {
			u.emitNamed(value, name)
			return
		}
		if id := value.Child("name"); id != nil {
			u.emit(value)
			publish(u.text(id))
			return
		}
	case "class":
		if name != "" {
			u.emitNamed(value, name)
			publish(name)
			return
		}
		if id := value.Child("name"); id != nil {
			u.emit(value)
			publish(u.text(id))
			return
		}
	}
	pre, post := u.exportAffixes([]string{"default"})
	u.e.synth(n.Start, pre)
	u.emit(value)
	u.e.synth(-1, post+";")
}

// emitNamed writes an anonymous function or class with name after its
// keyword.
func (u *unit) emitNamed(value *Node, name string) {
	for i, c := range value.Children {
		if i > 0 {
			u.e.gap(string(u.src[value.Children[i-1].End:c.Start]))
		}
		u.emit(c)
		switch c.Kind {
		case "function", "class", "*":
			if c.Kind == "function" && i+1 < len(value.Children) && value.Children[i+1].Kind == "*" {
				continue
			}
			u.e.text(c.End, name, "")
		}
	}
}

func (u *unit) cjsExportFrom(f *exportFrom) {
	req := "require(" + u.text(f.spec) + ")"
	switch f.kind {
	case fromStar:
		u.e.synth(f.node.Start, "__exportStar("+req+", exports);")
	case fromStarAs:
		if u.cfg.TypeScript.ESModuleInterop {
			req = "__importStar(" + req + ")"
		}
		u.e.synth(f.node.Start, propAccess("exports", f.alias)+" = "+req+";")
	case fromNamed:
		u.e.synth(f.node.Start, "var "+f.varName+" = "+req+";")
		for _, s := range f.names {
			u.stmt(f.node.Start, getter(s.exported, propAccess(f.varName, s.local)))
		}
	}
}

// getter re-exports a live binding through an accessor.
func getter(exported, expr string) string {
	return "Object.defineProperty(exports, " + jsQuote(exported) +
		", { enumerable: true, get: function () { return " + expr + "; } });"
}

func (u *unit) cjsExportClause(n *Node) {
	m := u.mod
	first := true
	line := func(t string) {
		if first {
			u.e.synth(n.Start, t)
			first = false
			return
		}
		u.stmt(n.Start, t)
	}
	for _, r := range m.reexports[n] {
		line(getter(r.exported, u.refText(r.b)))
	}
	for _, s := range m.globals[n] {
		line(propAccess("exports", s.exported) + " = " + s.local + ";")
	}
}

// amdImport rebinds or destructures an AMD dependency parameter where the
// import statement stood.
func (u *unit) amdImport(d *importDecl) {
	param := u.amdParam(d)
	switch {
	case d.bare:
	case d.equals != nil:
		if param != u.nameOf(d.equals) {
			u.e.synth(d.node.Start, "const "+u.nameOf(d.equals)+" = "+param+";")
		}
	case d.destructure:
		u.e.synth(d.node.Start, "const "+destructureText(d)+" = "+param+";")
	case d.interop != 0 && d.varName == param:
		u.e.synth(d.node.Start, param+" = "+interopCall(d.interop, param)+";")
	case d.interop != 0:
		u.e.synth(d.node.Start, "const "+d.varName+" = "+interopCall(d.interop, param)+";")
	case d.varName != param:
		u.e.synth(d.node.Start, "const "+d.varName+" = "+param+";")
	}
}

// amdDeps lists the define() dependencies and the factory parameter each
// binds, side-effect-only modules last.
type amdDep struct {
	specifier string
	param     string
}

func (u *unit) amdDeps() []amdDep {
	m := u.mod
	var deps, bare []amdDep
	seen := make(map[string]int)
	add := func(spec, param string) {
		if i, ok := seen[spec]; ok {
			if param != "" && deps[i].param == "" {
				deps[i].param = param
			}
			return
		}
		seen[spec] = len(deps)
		deps = append(deps, amdDep{specifier: spec, param: param})
	}
	for _, d := range m.imports {
		if !d.keep {
			continue
		}
		switch {
		case d.bare:
			bare = append(bare, amdDep{specifier: u.specText(d)})
		case d.equals != nil:
			add(u.specText(d), u.nameOf(d.equals))
		default:
			add(u.specText(d), d.varName)
		}
	}
	for _, f := range m.froms {
		add(u.text(f.spec), f.varName)
	}
	out := deps
	for _, b := range bare {
		if _, ok := seen[b.specifier]; !ok {
			seen[b.specifier] = -1
			out = append(out, b)
		}
	}
	return out
}

func (u *unit) amdParam(d *importDecl) string {
	spec := u.specText(d)
	for _, dep := range u.amdDeps() {
		if dep.specifier == spec {
			return dep.param
		}
	}
	return d.varName
}

func (u *unit) amdHeader() (string, string) {
	specs := []string{`"require"`, `"exports"`}
	params := []string{"require", "exports"}
	for _, dep := range u.amdDeps() {
		specs = append(specs, dep.specifier)
		if dep.param != "" {
			params = append(params, dep.param)
		}
	}
	return strings.Join(specs, ", "), strings.Join(params, ", ")
}

func (u *unit) emitAMD(directives, body []*Node) {
	specs, params := u.amdHeader()
	u.e.statementBreak("define")
	u.e.synth(-1, "define(["+specs+"], function ("+params+") {")
	u.emitCommonJSPrologue(directives)
	u.emitBody(body)
	u.stmt(-1, "});")
}

func (u *unit) emitUMD(directives, body []*Node) {
	specs, _ := u.amdHeader()
	u.e.statementBreak("(")
	u.e.synth(-1, `(function (factory) {
    if (typeof module === "object" && typeof module.exports === "object") {
        var v = factory(require, exports);
        if (v !== undefined) module.exports = v;
    }
    else if (typeof define === "function" && define.amd) {
        define([`+specs+`], factory);
    }
})(function (require, exports) {`)
	u.emitCommonJSPrologue(directives)
	u.emitBody(body)
	u.stmt(-1, "});")
}
