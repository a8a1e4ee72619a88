package transform

import (
	"go.trai.ch/synapse/internal/core/domain"
)

// importDecl is one import statement after type elision.
type importDecl struct {
	node      *Node
	spec      *Node
	specifier string
	resolved  domain.ResolvedImport
	defaultB  *binding
	nsB       *binding
	named     []namedImport
	equals    *binding
	// bare imports only run the dependency for its side effects.
	bare    bool
	keep    bool
	changed bool
	// destructure reads every named import once, at require time.
	destructure bool
	varName     string
	interop     helperSet
	synthetic   bool
}

type namedImport struct {
	imported string
	local    *binding
}

type fromKind uint8

const (
	fromNamed fromKind = iota
	fromStar
	fromStarAs
)

// exportFrom is an `export ... from` statement.
type exportFrom struct {
	node      *Node
	kind      fromKind
	spec      *Node
	specifier string
	resolved  domain.ResolvedImport
	names     []exportSpec
	alias     string
	varName   string
}

type exportSpec struct {
	local    string
	exported string
}

// reexport is a clause export of an imported binding.
type reexport struct {
	decl     *importDecl
	b        *binding
	exported string
}

type moduleInfo struct {
	isModule bool
	imports  []*importDecl
	byNode   map[*Node]*importDecl
	declOf   map[*binding]*importDecl
	// importOf is the property access an imported binding is read through.
	importOf map[*binding]string

	exports map[*binding][]string
	order   []*binding
	// direct marks bindings declared by `export const x = ...`.
	direct     map[*binding]bool
	froms      []*exportFrom
	fromByNode map[*Node]*exportFrom
	reexports  map[*Node][]reexport
	// globals holds clause exports of names with no declaration.
	globals map[*Node][]exportSpec
	// clauses holds the value specifiers of each local export clause.
	clauses       map[*Node][]exportSpec
	clauseChanged map[*Node]bool

	voidNames    []string
	fnExports    [][2]string
	defaultName  string
	exportAssign *Node
	shape        *domain.ExportShape
	runtime      *importDecl
}

func (u *unit) analyzeModule() {
	m := &moduleInfo{
		byNode:        make(map[*Node]*importDecl),
		declOf:        make(map[*binding]*importDecl),
		importOf:      make(map[*binding]string),
		exports:       make(map[*binding][]string),
		direct:        make(map[*binding]bool),
		fromByNode:    make(map[*Node]*exportFrom),
		reexports:     make(map[*Node][]reexport),
		globals:       make(map[*Node][]exportSpec),
		clauses:       make(map[*Node][]exportSpec),
		clauseChanged: make(map[*Node]bool),
	}
	u.mod = m
	for _, st := range u.root.Children {
		switch st.Kind {
		case "import_statement":
			m.isModule = true
			if d := u.collectImport(st); d != nil {
				m.imports = append(m.imports, d)
				m.byNode[st] = d
			}
		case "export_statement":
			m.isModule = true
		}
	}
	switch u.format {
	case domain.FormatAMD, domain.FormatUMD, domain.FormatSystemJS:
		// These wrappers turn every unit into a module.
		m.isModule = m.isModule || u.modulesOn
	}
	if u.jsx != nil && !u.jsx.classic && u.jsx.used() {
		m.isModule = true
		m.runtime = u.runtimeImport()
		m.imports = append([]*importDecl{m.runtime}, m.imports...)
	}
	for _, d := range m.imports {
		for _, b := range d.bindings() {
			m.declOf[b] = d
		}
	}
	u.inlineImportedConstEnums()
	u.elideImports()
	u.collectExports()
	if m.isModule {
		m.shape = u.computeShape()
	} else {
		m.shape = domain.DynamicShape()
	}
	if u.rewritesModules() {
		u.planImports()
		u.planExports()
	}
	if u.modulesOn && u.format.RequiresOrdering() {
		u.checkImports()
	}
	if u.modulesOn && u.cfg.TypeScript.ESModuleInterop && (u.format == domain.FormatCommonJS || u.format == domain.FormatUMD) {
		u.root.Walk(func(n *Node) bool {
			if n.Kind == "call_expression" {
				if fn := n.Child("function"); fn != nil && fn.Kind == "import" && !u.dynamicInternal(dynamicArg(n)) {
					u.helpers |= helperImportStar
				}
			}
			return !isTypeSubtree(n)
		})
	}
}

func dynamicArg(call *Node) *Node {
	if args := call.Child("arguments"); args != nil {
		return args.FirstNamed()
	}
	return nil
}

// rewritesModules reports whether import/export syntax is lowered.
func (u *unit) rewritesModules() bool {
	return u.modulesOn && u.format != domain.FormatESNext && u.mod.isModule
}

func (d *importDecl) bindings() []*binding {
	var out []*binding
	if d.defaultB != nil {
		out = append(out, d.defaultB)
	}
	if d.nsB != nil {
		out = append(out, d.nsB)
	}
	for _, n := range d.named {
		out = append(out, n.local)
	}
	if d.equals != nil {
		out = append(out, d.equals)
	}
	return out
}

func (u *unit) collectImport(st *Node) *importDecl {
	if isTypeOnlyImport(st) {
		return nil
	}
	d := &importDecl{node: st, spec: st.Child("source")}
	clause := false
	for _, c := range st.NamedChildren() {
		switch c.Kind {
		case "import_clause":
			clause = true
			for _, part := range c.NamedChildren() {
				switch part.Kind {
				case "identifier":
					d.defaultB = u.sc.declOf[part]
				case "namespace_import":
					d.nsB = u.sc.declOf[part.Find("identifier")]
				case "named_imports":
					for _, spec := range part.NamedChildren() {
						if spec.Kind != "import_specifier" {
							continue
						}
						if spec.HasToken("type") {
							d.changed = true
							continue
						}
						name := spec.Child("name")
						local := spec.Child("alias")
						if local == nil {
							local = name
						}
						b := u.sc.declOf[local]
						if b == nil || name == nil {
							continue
						}
						imported := u.text(name)
						if name.Kind == "string" {
							imported = unquote(imported)
						}
						d.named = append(d.named, namedImport{imported: imported, local: b})
					}
				}
			}
		case "import_require_clause":
			clause = true
			d.equals = u.sc.declOf[c.Find("identifier")]
			d.spec = c.Child("source")
		}
	}
	if d.spec != nil {
		d.specifier = unquote(u.text(d.spec))
	}
	d.bare = !clause
	d.resolved = u.imports.Lookup(d.specifier)
	return d
}

func (u *unit) runtimeImport() *importDecl {
	source := u.cfg.JSX.ImportSource
	if source == "" {
		source = "react"
	}
	spec := source + "/jsx-runtime"
	d := &importDecl{specifier: spec, synthetic: true, keep: true, resolved: u.imports.Lookup(spec)}
	u.jsx.runtime = d
	return d
}

// specText is the quoted specifier as it is written back out.
func (u *unit) specText(d *importDecl) string {
	if d.spec != nil {
		return u.text(d.spec)
	}
	return jsQuote(d.specifier)
}

// valueRefs counts the references to b that survive into the output.
func (u *unit) valueRefs(b *binding) int {
	n := u.pseudoRefs[b]
	for _, r := range b.refs {
		if !u.inlined[r] {
			n++
		}
	}
	return n
}

// inlineImportedConstEnums replaces E.A with the literal recorded in the
// dependency's shape.
func (u *unit) inlineImportedConstEnums() {
	for _, d := range u.mod.imports {
		if d.resolved.Status != domain.ShapeKnown || d.resolved.Shape == nil {
			continue
		}
		for _, n := range d.named {
			eb, ok := d.resolved.Shape.Lookup(n.imported)
			if !ok || eb.Kind != domain.ExportConstEnum || len(eb.Members) == 0 {
				continue
			}
			for _, ref := range n.local.refs {
				p := ref.Parent
				if p == nil || p.Kind != "member_expression" || ref.Field != "object" {
					continue
				}
				prop := p.Child("property")
				if prop == nil {
					continue
				}
				if lit, ok := eb.Members[u.text(prop)]; ok {
					u.override[p] = u.inlineText(lit, u.text(p))
					u.inlined[ref] = true
				}
			}
		}
	}
}

// elideImports drops import bindings only used as types, and whole imports
// left without bindings.
func (u *unit) elideImports() {
	if !u.strip || !u.lang.IsTypeScript() {
		for _, d := range u.mod.imports {
			d.keep = true
		}
		return
	}
	used := func(b *binding) bool {
		return b != nil && u.valueRefs(b) > 0
	}
	exportedFromClause := u.clauseExportedBindings()
	for _, d := range u.mod.imports {
		if d.synthetic {
			d.keep = true
			continue
		}
		if d.defaultB != nil && !used(d.defaultB) && !exportedFromClause[d.defaultB] {
			d.defaultB, d.changed = nil, true
		}
		if d.nsB != nil && !used(d.nsB) && !exportedFromClause[d.nsB] {
			d.nsB, d.changed = nil, true
		}
		kept := d.named[:0]
		for _, n := range d.named {
			if (used(n.local) || exportedFromClause[n.local]) && !u.importedType(d, n.imported) {
				kept = append(kept, n)
				continue
			}
			d.changed = true
		}
		d.named = kept
		if d.equals != nil && !used(d.equals) && !exportedFromClause[d.equals] {
			d.equals, d.changed = nil, true
		}
		d.keep = d.bare || d.defaultB != nil || d.nsB != nil || len(d.named) > 0 || d.equals != nil
	}
}

// importedType reports whether the dependency says name is only a type.
func (u *unit) importedType(d *importDecl, name string) bool {
	if d.resolved.Status != domain.ShapeKnown {
		return false
	}
	eb, ok := d.resolved.Shape.Lookup(name)
	return ok && eb.Kind == domain.ExportType
}

// clauseExportedBindings returns the imports re-exported by a local clause,
// which keep the import alive even without other references.
func (u *unit) clauseExportedBindings() map[*binding]bool {
	out := make(map[*binding]bool)
	for _, st := range u.root.Children {
		if st.Kind != "export_statement" || st.Child("source") != nil {
			continue
		}
		clause := st.Find("export_clause")
		if clause == nil || clause.Parent != st {
			continue
		}
		for _, spec := range clause.NamedChildren() {
			if spec.Kind != "export_specifier" || spec.HasToken("type") {
				continue
			}
			if b := u.sc.refOf[spec.Child("name")]; b != nil {
				out[b] = true
			}
		}
	}
	return out
}

func (u *unit) addExport(b *binding, name string) {
	m := u.mod
	if _, seen := m.exports[b]; !seen {
		m.order = append(m.order, b)
	}
	m.exports[b] = append(m.exports[b], name)
}

func (u *unit) collectExports() {
	m := u.mod
	for _, st := range u.root.Children {
		if st.Kind != "export_statement" {
			continue
		}
		if u.strip && u.dropsExport(st) {
			continue
		}
		decl := st.Child("declaration")
		value := st.Child("value")
		source := st.Child("source")
		switch {
		case st.HasToken("="):
			m.exportAssign = st
		case decl != nil:
			if isTypeSubtree(decl) {
				continue
			}
			if st.HasToken("default") {
				if id := decl.Child("name"); id != nil {
					if b := u.sc.declOf[id]; b != nil {
						u.addExport(b, "default")
					}
				}
				continue
			}
			direct := decl.Kind == "lexical_declaration" || decl.Kind == "variable_declaration"
			direct = direct && simpleDeclarators(decl)
			for _, id := range declaredNames(decl) {
				b := u.sc.declOf[id]
				if b == nil {
					continue
				}
				u.addExport(b, b.name)
				if direct {
					m.direct[b] = true
				}
			}
		case value != nil && st.HasToken("default"):
			switch value.Kind {
			case "function_expression", "function", "generator_function", "class":
				if id := value.Child("name"); id == nil {
					m.defaultName = u.names.unique("default_1")
				}
			}
		case source != nil:
			u.collectExportFrom(st, source)
		default:
			u.collectExportClause(st)
		}
	}
}

func (u *unit) collectExportFrom(st, source *Node) {
	f := &exportFrom{node: st, spec: source, specifier: unquote(u.text(source))}
	f.resolved = u.imports.Lookup(f.specifier)
	switch {
	case st.Find("namespace_export") != nil:
		f.kind = fromStarAs
		ns := st.Find("namespace_export")
		if id := ns.FirstNamed(); id != nil {
			f.alias = u.text(id)
			if id.Kind == "string" {
				f.alias = unquote(f.alias)
			}
		}
	case st.Find("export_clause") != nil:
		f.kind = fromNamed
		for _, spec := range st.Find("export_clause").NamedChildren() {
			if spec.Kind != "export_specifier" || spec.HasToken("type") {
				continue
			}
			if s, ok := u.specifierNames(spec); ok && !u.importedType(&importDecl{resolved: f.resolved}, s.local) {
				f.names = append(f.names, s)
			}
		}
		if len(f.names) == 0 {
			return
		}
	default:
		f.kind = fromStar
	}
	u.mod.froms = append(u.mod.froms, f)
	u.mod.fromByNode[st] = f
}

func (u *unit) specifierNames(spec *Node) (exportSpec, bool) {
	name := spec.Child("name")
	if name == nil {
		return exportSpec{}, false
	}
	alias := spec.Child("alias")
	if alias == nil {
		alias = name
	}
	local, exported := u.text(name), u.text(alias)
	if name.Kind == "string" {
		local = unquote(local)
	}
	if alias.Kind == "string" {
		exported = unquote(exported)
	}
	return exportSpec{local: local, exported: exported}, true
}

func (u *unit) collectExportClause(st *Node) {
	m := u.mod
	clause := st.Find("export_clause")
	if clause == nil {
		return
	}
	for _, spec := range clause.NamedChildren() {
		if spec.Kind != "export_specifier" {
			continue
		}
		s, ok := u.specifierNames(spec)
		if !ok {
			continue
		}
		if spec.HasToken("type") {
			m.clauseChanged[st] = true
			continue
		}
		b := u.sc.refOf[spec.Child("name")]
		switch {
		case b == nil && u.sc.typeNames[s.local]:
			m.clauseChanged[st] = true
			continue
		case b == nil:
			m.globals[st] = append(m.globals[st], s)
		case b.kind == bindImport || b.kind == bindImportEquals:
			if d := m.declOf[b]; d != nil && u.importedType(d, importedName(d, b)) {
				m.clauseChanged[st] = true
				continue
			}
			m.reexports[st] = append(m.reexports[st], reexport{decl: m.declOf[b], b: b, exported: s.exported})
		case b.kind == bindConstEnum && u.enumErased(b):
			m.clauseChanged[st] = true
			continue
		default:
			u.addExport(b, s.exported)
		}
		m.clauses[st] = append(m.clauses[st], s)
	}
}

func (u *unit) enumErased(b *binding) bool {
	for _, info := range u.enumsOf[b] {
		if !info.erased {
			return false
		}
	}
	return true
}

// importedName is the name b imports from its module, "*" for a namespace.
func importedName(d *importDecl, b *binding) string {
	switch b {
	case d.defaultB:
		return "default"
	case d.nsB, d.equals:
		return "*"
	}
	for _, n := range d.named {
		if n.local == b {
			return n.imported
		}
	}
	return ""
}

// planImports names each required module and decides how its bindings are
// read.
func (u *unit) planImports() {
	m := u.mod
	destructuring := u.format == domain.FormatCommonJS || u.format == domain.FormatAMD || u.format == domain.FormatUMD
	interop := destructuring && u.cfg.TypeScript.ESModuleInterop
	for _, d := range m.imports {
		if !d.keep || d.bare || d.equals != nil {
			continue
		}
		if d.nsB != nil && !d.synthetic {
			d.varName = d.nsB.name
		} else {
			d.varName = u.names.moduleVar(d.specifier)
		}
		d.destructure = destructuring && !d.synthetic && u.canDestructure(d)
		if interop && !d.synthetic && !d.destructure {
			switch {
			case d.nsB != nil || (d.defaultB != nil && len(d.named) > 0):
				d.interop = helperImportStar
			case d.defaultB != nil:
				d.interop = helperImportDefault
			}
			u.helpers |= d.interop
		}
		if d.destructure {
			continue
		}
		if d.defaultB != nil {
			m.importOf[d.defaultB] = propAccess(d.varName, "default")
		}
		for _, n := range d.named {
			m.importOf[n.local] = propAccess(d.varName, n.imported)
		}
	}
	for _, f := range m.froms {
		switch f.kind {
		case fromStar:
			if u.format != domain.FormatSystemJS {
				u.helpers |= helperExportStar
			}
		case fromStarAs:
			if interop {
				u.helpers |= helperImportStar
			}
		}
		f.varName = u.names.moduleVar(f.specifier)
	}
}

// canDestructure reports whether every named import of d can be read once
// at require time without changing what the program observes.
func (u *unit) canDestructure(d *importDecl) bool {
	if d.defaultB != nil || d.nsB != nil || len(d.named) == 0 {
		return false
	}
	if d.resolved.Status != domain.ShapeKnown || !d.resolved.Shape.Known() {
		return false
	}
	for _, n := range d.named {
		if !isIdentifierName(n.imported) || reservedWords[n.imported] {
			return false
		}
		eb, ok := d.resolved.Shape.Lookup(n.imported)
		if !ok || !eb.Kind.IsStableValue() {
			return false
		}
		if n.local.assigned {
			return false
		}
	}
	return true
}

// planExports lists the names a CommonJS-style prologue initialises.
func (u *unit) planExports() {
	m := u.mod
	cjs := u.format != domain.FormatSystemJS
	for _, b := range m.order {
		if cjs && m.direct[b] {
			u.qual[b] = "exports"
		}
		for _, name := range m.exports[b] {
			switch {
			case b.kind == bindFunction:
				m.fnExports = append(m.fnExports, [2]string{name, u.nameOf(b)})
			case name != "default":
				m.voidNames = append(m.voidNames, name)
			}
		}
	}
	if m.defaultName != "" {
		for _, st := range u.root.Children {
			if st.Kind == "export_statement" && st.HasToken("default") {
				if v := st.Child("value"); v != nil && v.Kind != "class" {
					m.fnExports = append(m.fnExports, [2]string{"default", m.defaultName})
				}
			}
		}
	}
	for _, st := range u.root.Children {
		for _, r := range m.reexports[st] {
			m.voidNames = append(m.voidNames, r.exported)
		}
		if f := m.fromByNode[st]; f != nil {
			switch f.kind {
			case fromNamed:
				for _, s := range f.names {
					if s.exported != "default" {
						m.voidNames = append(m.voidNames, s.exported)
					}
				}
			case fromStarAs:
				m.voidNames = append(m.voidNames, f.alias)
			}
		}
		for _, s := range m.globals[st] {
			m.voidNames = append(m.voidNames, s.exported)
		}
	}
}

// checkImports warns about imports whose dependency could not vouch for the
// names being imported.
func (u *unit) checkImports() {
	for _, d := range u.mod.imports {
		if !d.keep || d.synthetic || d.bare || d.equals != nil {
			continue
		}
		switch d.resolved.Status {
		case domain.ShapeFailed:
			u.warnAt(d.spec, domain.CodeOpaqueImport,
				"%q failed to compile, so its exports are read through the module object", d.specifier)
		case domain.ShapeKnown:
			shape := d.resolved.Shape
			if !shape.Known() {
				continue
			}
			if d.defaultB != nil && !shape.HasDefault {
				u.warnAt(d.spec, domain.CodeMissingExport, "%q has no default export", d.specifier)
			}
			for _, n := range d.named {
				if n.imported == "default" {
					if !shape.HasDefault {
						u.warnAt(d.spec, domain.CodeMissingExport, "%q has no default export", d.specifier)
					}
					continue
				}
				if _, ok := shape.Lookup(n.imported); !ok {
					u.warnAt(d.spec, domain.CodeMissingExport, "%q has no exported member %q", d.specifier, n.imported)
				}
			}
		}
	}
}

// computeShape records what this unit exports for its importers.
func (u *unit) computeShape() *domain.ExportShape {
	m := u.mod
	if m.exportAssign != nil {
		return domain.DynamicShape()
	}
	s := &domain.ExportShape{}
	var stars []*exportFrom
	for _, st := range u.root.Children {
		if st.Kind != "export_statement" {
			continue
		}
		switch {
		case u.strip && u.dropsExport(st):
			u.typeExports(s, st)
		case st.Child("declaration") != nil:
			decl := st.Child("declaration")
			if isTypeSubtree(decl) {
				u.typeExports(s, st)
				continue
			}
			if st.HasToken("default") {
				s.HasDefault = true
				continue
			}
			for _, id := range declaredNames(decl) {
				if b := u.sc.declOf[id]; b != nil {
					s.Add(u.localExport(b, b.name, decl))
				}
			}
		case st.HasToken("default"):
			s.HasDefault = true
		case m.fromByNode[st] != nil:
			f := m.fromByNode[st]
			switch f.kind {
			case fromStar:
				stars = append(stars, f)
			case fromStarAs:
				s.Add(domain.ExportBinding{Name: f.alias, Kind: domain.ExportNamespace})
			case fromNamed:
				for _, spec := range f.names {
					s.Add(u.forwardedExport(f.resolved, spec))
				}
			}
		default:
			for _, r := range m.reexports[st] {
				s.Add(u.forwardedExport(r.decl.resolved, exportSpec{local: importedName(r.decl, r.b), exported: r.exported}))
			}
			for _, g := range m.globals[st] {
				s.Add(domain.ExportBinding{Name: g.exported, Kind: domain.ExportUnknown})
			}
			u.typeExports(s, st)
		}
	}
	for _, b := range m.order {
		for _, name := range m.exports[b] {
			if _, ok := s.Lookup(name); !ok && name != "default" {
				s.Add(u.localExport(b, name, nil))
			}
		}
	}
	for _, f := range stars {
		dep := f.resolved.Shape
		if f.resolved.Status != domain.ShapeKnown || !dep.Known() {
			s.OpenStar = true
			continue
		}
		for _, eb := range dep.Exports {
			if _, ok := s.Lookup(eb.Name); !ok {
				s.Add(eb)
			}
		}
	}
	return s
}

// typeExports records the type-only names an export statement exposes.
func (u *unit) typeExports(s *domain.ExportShape, st *Node) {
	if decl := st.Child("declaration"); decl != nil {
		switch decl.Kind {
		case "interface_declaration", "type_alias_declaration":
			if id := decl.Child("name"); id != nil {
				s.Add(domain.ExportBinding{Name: u.text(id), Kind: domain.ExportType})
			}
		}
		return
	}
	clause := st.Find("export_clause")
	if clause == nil || st.Child("source") != nil {
		return
	}
	allTypes := u.dropsExport(st)
	for _, spec := range clause.NamedChildren() {
		if spec.Kind != "export_specifier" {
			continue
		}
		sp, ok := u.specifierNames(spec)
		if !ok {
			continue
		}
		if allTypes || spec.HasToken("type") || (u.sc.refOf[spec.Child("name")] == nil && u.sc.typeNames[sp.local]) {
			s.Add(domain.ExportBinding{Name: sp.exported, Kind: domain.ExportType})
		}
	}
}

func (u *unit) localExport(b *binding, name string, decl *Node) domain.ExportBinding {
	eb := domain.ExportBinding{Name: name}
	switch b.kind {
	case bindConst:
		eb.Kind = domain.ExportConst
	case bindVar, bindLet:
		eb.Kind = domain.ExportMutable
	case bindFunction:
		eb.Kind = domain.ExportFunction
	case bindClass:
		eb.Kind = domain.ExportClass
	case bindEnum:
		eb.Kind = domain.ExportEnum
	case bindConstEnum:
		eb.Kind = domain.ExportConstEnum
		eb.Members = u.enumMembers(b)
	case bindNamespace:
		eb.Kind = domain.ExportNamespace
	case bindImport, bindImportEquals:
		eb.Kind = domain.ExportReExport
	default:
		eb.Kind = domain.ExportUnknown
	}
	if b.assigned && eb.Kind != domain.ExportMutable && b.kind != bindConst {
		eb.Kind = domain.ExportMutable
	}
	if decl != nil && decl.Kind == "import_alias" {
		eb.Kind = domain.ExportUnknown
	}
	return eb
}

func (u *unit) enumMembers(b *binding) map[string]string {
	out := make(map[string]string)
	for _, info := range u.enumsOf[b] {
		for _, m := range info.members {
			if m.value.valid {
				out[m.name] = m.value.literal()
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// forwardedExport describes a re-export using the dependency's own binding
// when its shape is known.
func (u *unit) forwardedExport(r domain.ResolvedImport, spec exportSpec) domain.ExportBinding {
	if r.Status == domain.ShapeKnown && spec.local != "default" && spec.local != "*" {
		if eb, ok := r.Shape.Lookup(spec.local); ok {
			eb.Name = spec.exported
			return eb
		}
	}
	if spec.local == "*" {
		return domain.ExportBinding{Name: spec.exported, Kind: domain.ExportNamespace}
	}
	return domain.ExportBinding{Name: spec.exported, Kind: domain.ExportReExport}
}

// exportNames returns the names b is exported under when assignments to it
// must also update the module's exports.
func (u *unit) exportNames(b *binding) []string {
	if b == nil || !u.rewritesModules() || !b.topLevel() {
		return nil
	}
	if _, ok := u.qual[b]; ok {
		return nil
	}
	return u.mod.exports[b]
}

// wrapExport wraps an expression so its value is also published as name.
func (u *unit) wrapExport(name, expr string) string {
	if u.format == domain.FormatSystemJS {
		return "exports_1(" + jsQuote(name) + ", " + expr + ")"
	}
	return propAccess("exports", name) + " = " + expr
}

// exportAffixes returns the text around an expression that publishes its
// value under every name in names.
func (u *unit) exportAffixes(names []string) (string, string) {
	var pre, post string
	for _, name := range names {
		if u.format == domain.FormatSystemJS {
			pre += "exports_1(" + jsQuote(name) + ", "
			post += ")"
			continue
		}
		pre += propAccess("exports", name) + " = "
	}
	return pre, post
}

// moduleNode lowers top-level import and export syntax for the target format.
func (u *unit) moduleNode(n *Node) bool {
	if u.mod == nil || n == u.bypass {
		return false
	}
	if n.Kind == "meta_property" && n.HasToken("import") && u.format == domain.FormatSystemJS && u.rewritesModules() {
		u.e.synth(n.Start, "context_1.meta")
		return true
	}
	if n.Parent != u.root {
		return false
	}
	if !u.rewritesModules() {
		return u.esmStatement(n)
	}
	if u.format == domain.FormatSystemJS {
		return u.systemStatement(n)
	}
	return u.cjsStatement(n)
}

// emitBase emits n without its top-level module lowering.
func (u *unit) emitBase(n *Node) {
	prev := u.bypass
	u.bypass = n
	u.emit(n)
	u.bypass = prev
}

// emitExportedWrite publishes assignments to exported mutable bindings.
func (u *unit) emitExportedWrite(n *Node) bool {
	var target *Node
	if n.Kind == "update_expression" {
		target = n.Child("argument")
	} else {
		target = n.Child("left")
	}
	if target == nil || target.Kind != "identifier" {
		return false
	}
	b := u.sc.refOf[target]
	if b == nil || (b.kind != bindVar && b.kind != bindLet) {
		return false
	}
	names := u.exportNames(b)
	if len(names) == 0 {
		return false
	}
	pre, post := u.exportAffixes(names)
	if n.Kind == "update_expression" && n.Children[0] == target {
		op := "+"
		if n.HasToken("--") {
			op = "-"
		}
		u.e.synth(n.Start, "("+pre+u.nameOf(b)+" "+op+" 1"+post+", ")
		u.emitSeq(n.Children)
		u.e.synth(-1, ")")
		return true
	}
	u.e.synth(n.Start, pre)
	u.emitSeq(n.Children)
	if post != "" {
		u.e.synth(-1, post)
	}
	return true
}

// emitDynamicImport rewrites import(x) for the target format.
func (u *unit) emitDynamicImport(n *Node) bool {
	if !u.modulesOn || u.format == domain.FormatESNext {
		return false
	}
	args := n.Child("arguments")
	if args == nil {
		return false
	}
	arg := dynamicArg(n)
	switch u.format {
	case domain.FormatSystemJS:
		u.e.synth(n.Start, "context_1.import")
		u.emit(args)
	case domain.FormatAMD:
		u.e.synth(n.Start, "new Promise((resolve, reject) => { require([")
		u.emit(arg)
		u.e.synth(-1, "], resolve, reject); })")
	default:
		wrap := u.cfg.TypeScript.ESModuleInterop && !u.dynamicInternal(arg)
		u.e.synth(n.Start, "Promise.resolve().then(() => ")
		if wrap {
			u.e.synth(-1, "__importStar(require(")
		} else {
			u.e.synth(-1, "require(")
		}
		u.emit(arg)
		if wrap {
			u.e.synth(-1, ")))")
		} else {
			u.e.synth(-1, "))")
		}
	}
	return true
}

// dynamicInternal reports whether a dynamic import names a module compiled
// in the same batch, whose output already carries __esModule.
func (u *unit) dynamicInternal(arg *Node) bool {
	if arg == nil || arg.Kind != "string" {
		return false
	}
	return u.imports.Lookup(unquote(u.text(arg))).Kind == domain.ResolvedInternal
}
