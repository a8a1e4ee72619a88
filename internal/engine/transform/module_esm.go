package transform

import (
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
)

// esmStatement rewrites import and export statements that stay ESM, only
// when type elision changed them.
func (u *unit) esmStatement(n *Node) bool {
	m := u.mod
	switch n.Kind {
	case "import_statement":
		d := m.byNode[n]
		if d == nil {
			return false
		}
		if d.equals != nil && d.keep {
			u.errorAt(n, domain.CodeTransform, "import assignments cannot be compiled to ECMAScript modules")
			return true
		}
		if !d.keep {
			return true
		}
		if !d.changed {
			return false
		}
		u.e.synth(n.Start, esmImportText(d, u.specText(d)))
		return true
	case "export_statement":
		if n == m.exportAssign {
			u.errorAt(n, domain.CodeTransform, "export assignments cannot be compiled to ECMAScript modules")
			return true
		}
		if m.clauseChanged[n] {
			specs := m.clauses[n]
			if len(specs) == 0 {
				return true
			}
			u.e.synth(n.Start, "export { "+clauseText(specs)+" };")
			return true
		}
		if decl := n.Child("declaration"); decl != nil && n.HasToken("default") && u.decorate && u.deco.classes[decl] != nil {
			u.emit(decl)
			if id := decl.Child("name"); id != nil {
				u.stmt(n.End, "export default "+u.text(id)+";")
			}
			return true
		}
	}
	return false
}

func esmImportText(d *importDecl, spec string) string {
	var parts []string
	if d.defaultB != nil {
		parts = append(parts, d.defaultB.name)
	}
	if d.nsB != nil {
		parts = append(parts, "* as "+d.nsB.name)
	}
	if len(d.named) > 0 {
		names := make([]string, len(d.named))
		for i, n := range d.named {
			names[i] = importSpecText(n.imported, n.local.name)
		}
		parts = append(parts, "{ "+strings.Join(names, ", ")+" }")
	}
	return "import " + strings.Join(parts, ", ") + " from " + spec + ";"
}

func importSpecText(imported, local string) string {
	if imported == local {
		return local
	}
	if !isIdentifierName(imported) {
		return jsQuote(imported) + " as " + local
	}
	return imported + " as " + local
}

func clauseText(specs []exportSpec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		exported := s.exported
		if !isIdentifierName(exported) {
			exported = jsQuote(exported)
		}
		if s.local == s.exported {
			parts[i] = s.local
		} else {
			parts[i] = s.local + " as " + exported
		}
	}
	return strings.Join(parts, ", ")
}

// esmSurvives reports whether any ESM syntax is left in the output, so a
// module that lost it all can be marked with `export {};`.
func (u *unit) esmSurvives() bool {
	m := u.mod
	if m.runtime != nil {
		return true
	}
	for _, d := range m.imports {
		if d.keep {
			return true
		}
	}
	for _, st := range u.root.Children {
		if st.Kind != "export_statement" || u.dropsExport(st) {
			continue
		}
		if m.clauseChanged[st] && len(m.clauses[st]) == 0 {
			continue
		}
		if decl := st.Child("declaration"); decl != nil {
			if isTypeSubtree(decl) {
				continue
			}
			if decl.Kind == "enum_declaration" && u.enums[decl] != nil && u.enums[decl].erased {
				continue
			}
		}
		return true
	}
	return false
}

// emitPlain writes a unit whose import/export syntax is not lowered.
func (u *unit) emitPlain(directives, body []*Node) {
	m := u.mod
	u.emitDirectives(directives, false)
	u.emitHelpers()
	if rt := m.runtime; rt != nil {
		if len(directives) > 0 || u.helpers != 0 {
			u.stmt(-1, u.runtimeImportText(rt))
		} else {
			u.e.statementBreak("import")
			u.e.synth(-1, u.runtimeImportText(rt))
		}
	}
	if len(directives) > 0 || u.helpers != 0 || m.runtime != nil {
		u.emitBody(body)
	} else {
		u.emitSeq(body)
	}
	if m.isModule && u.strip && u.lang.IsTypeScript() && !u.esmSurvives() {
		u.stmt(-1, "export {};")
	}
}
