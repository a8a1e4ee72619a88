package transform

import "strings"

type bindingKind uint8

const (
	bindVar bindingKind = iota
	bindLet
	bindConst
	bindFunction
	bindClass
	bindParam
	bindCatch
	bindImport
	bindImportEquals
	bindEnum
	bindConstEnum
	bindNamespace
)

// binding is one declared name and every value reference that resolves to it.
type binding struct {
	name     string
	kind     bindingKind
	decl     *Node
	decls    []*Node
	scope    *scope
	refs     []*Node
	assigned bool
	// declared records whether a merged enum or namespace already emitted its var.
	declared bool
}

func (b *binding) topLevel() bool {
	return b.scope.parent == nil
}

type scope struct {
	node     *Node
	parent   *scope
	function bool
	bindings map[string]*binding
	order    []*binding
	children []*scope
	// dynamic is set when the scope or a descendant calls eval or uses with.
	dynamic bool
	// namespace marks the body of a TS namespace.
	namespace bool
}

func (s *scope) lookup(name string) *binding {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.bindings[name]; ok {
			return b
		}
	}
	return nil
}

func (s *scope) functionScope() *scope {
	sc := s
	for !sc.function && sc.parent != nil {
		sc = sc.parent
	}
	return sc
}

// scopes is the result of binding analysis over one unit.
type scopes struct {
	root   *scope
	byNode map[*Node]*scope
	refOf  map[*Node]*binding
	declOf map[*Node]*binding
	// typeNames holds names that only exist in the type space.
	typeNames map[string]bool
	// idents holds every identifier spelling in the file, so generated names
	// never collide with one.
	idents map[string]bool
}

func (s *scopes) scopeAt(n *Node) *scope {
	for p := n; p != nil; p = p.Parent {
		if sc, ok := s.byNode[p]; ok {
			return sc
		}
	}
	return s.root
}

// resolveName looks name up from the scope enclosing n.
func (s *scopes) resolveName(n *Node, name string) *binding {
	return s.scopeAt(n).lookup(name)
}

type scopeAnalyzer struct {
	src []byte
	sc  *scopes
}

func analyzeScopes(root *Node, src []byte) *scopes {
	a := &scopeAnalyzer{src: src, sc: &scopes{
		byNode:    make(map[*Node]*scope),
		refOf:     make(map[*Node]*binding),
		declOf:    make(map[*Node]*binding),
		typeNames: make(map[string]bool),
		idents:    make(map[string]bool),
	}}
	a.sc.root = &scope{node: root, function: true, bindings: make(map[string]*binding)}
	a.sc.byNode[root] = a.sc.root
	a.declare(root, a.sc.root)
	a.resolve(root, a.sc.root)
	return a.sc
}

var typeKinds = map[string]bool{
	"type_annotation":           true,
	"type_parameters":           true,
	"type_arguments":            true,
	"asserts_annotation":        true,
	"type_predicate_annotation": true,
	"omitting_type_annotation":  true,
	"opting_type_annotation":    true,
	"adding_type_annotation":    true,
	"implements_clause":         true,
	"interface_declaration":     true,
	"type_alias_declaration":    true,
	"function_signature":        true,
	"method_signature":          true,
	"abstract_method_signature": true,
	"index_signature":           true,
	"ambient_declaration":       true,
}

// isTypeSubtree reports whether n only exists in the type space.
func isTypeSubtree(n *Node) bool {
	if typeKinds[n.Kind] {
		return true
	}
	if p := n.Parent; p != nil && n.Named && (p.Kind == "as_expression" || p.Kind == "satisfies_expression") && n != p.FirstNamed() {
		return true
	}
	if n.Kind == "module" {
		if name := n.Child("name"); name != nil && name.Kind == "string" {
			return true
		}
	}
	return false
}

var functionKinds = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function_expression":            true,
	"function":                       true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
}

func isFunctionBody(n *Node) bool {
	return n.Parent != nil && functionKinds[n.Parent.Kind] && n.Field == "body"
}

func isNamespaceBody(n *Node) bool {
	return n.Parent != nil && (n.Parent.Kind == "internal_module" || n.Parent.Kind == "module") && n.Field == "body"
}

func (a *scopeAnalyzer) push(n *Node, parent *scope, function bool) *scope {
	sc := &scope{node: n, parent: parent, function: function, bindings: make(map[string]*binding)}
	parent.children = append(parent.children, sc)
	a.sc.byNode[n] = sc
	return sc
}

func (a *scopeAnalyzer) bind(sc *scope, id *Node, kind bindingKind) *binding {
	if id == nil {
		return nil
	}
	name := id.Text(a.src)
	if b, ok := sc.bindings[name]; ok {
		// Redeclaration, or a merged enum or namespace.
		b.decls = append(b.decls, id)
		a.sc.declOf[id] = b
		return b
	}
	b := &binding{name: name, kind: kind, decl: id, scope: sc}
	sc.bindings[name] = b
	sc.order = append(sc.order, b)
	a.sc.declOf[id] = b
	return b
}

func (a *scopeAnalyzer) bindPattern(p *Node, sc *scope, kind bindingKind) {
	if p == nil {
		return
	}
	switch p.Kind {
	case "identifier", "shorthand_property_identifier_pattern":
		a.bind(sc, p, kind)
	case "object_pattern", "array_pattern":
		for _, c := range p.NamedChildren() {
			a.bindPattern(c, sc, kind)
		}
	case "pair_pattern":
		a.bindPattern(p.Child("value"), sc, kind)
	case "object_assignment_pattern", "assignment_pattern":
		a.bindPattern(p.Child("left"), sc, kind)
	case "rest_pattern":
		a.bindPattern(p.FirstNamed(), sc, kind)
	case "required_parameter", "optional_parameter":
		a.bindPattern(p.Child("pattern"), sc, kind)
	}
}

func lexicalKind(n *Node, src []byte) bindingKind {
	if k := n.Child("kind"); k != nil && k.Text(src) == "const" {
		return bindConst
	}
	if n.HasToken("const") {
		return bindConst
	}
	return bindLet
}

func (a *scopeAnalyzer) declare(n *Node, cur *scope) {
	switch n.Kind {
	case "identifier", "property_identifier", "shorthand_property_identifier",
		"shorthand_property_identifier_pattern", "type_identifier", "statement_identifier":
		a.sc.idents[n.Text(a.src)] = true
	}
	if isTypeSubtree(n) {
		a.recordTypeNames(n)
		return
	}
	inner := cur
	switch n.Kind {
	case "function_declaration", "generator_function_declaration":
		a.bind(cur, n.Child("name"), bindFunction)
		inner = a.push(n, cur, true)
	case "function_expression", "function", "generator_function":
		inner = a.push(n, cur, true)
		a.bind(inner, n.Child("name"), bindFunction)
	case "arrow_function":
		inner = a.push(n, cur, true)
		a.bind(inner, n.Child("parameter"), bindParam)
	case "method_definition", "class_static_block":
		inner = a.push(n, cur, true)
	case "class_declaration", "abstract_class_declaration":
		a.bind(cur, n.Child("name"), bindClass)
	case "class":
		if name := n.Child("name"); name != nil {
			inner = a.push(n, cur, false)
			a.bind(inner, name, bindClass)
		}
	case "statement_block":
		switch {
		case isFunctionBody(n):
		case isNamespaceBody(n):
			inner = a.push(n, cur, true)
			inner.namespace = true
		default:
			inner = a.push(n, cur, false)
		}
	case "for_statement", "switch_body":
		inner = a.push(n, cur, false)
	case "for_in_statement":
		inner = a.push(n, cur, false)
		switch {
		case n.HasToken("var"):
			a.bindPattern(n.Child("left"), cur.functionScope(), bindVar)
		case n.HasToken("let"):
			a.bindPattern(n.Child("left"), inner, bindLet)
		case n.HasToken("const"):
			a.bindPattern(n.Child("left"), inner, bindConst)
		}
	case "catch_clause":
		inner = a.push(n, cur, false)
		a.bindPattern(n.Child("parameter"), inner, bindCatch)
	case "formal_parameters":
		for _, p := range n.NamedChildren() {
			if p.Kind == "decorator" {
				continue
			}
			a.bindPattern(p, cur, bindParam)
		}
	case "variable_declaration":
		target := cur.functionScope()
		for _, d := range n.NamedChildren() {
			if d.Kind == "variable_declarator" {
				a.bindPattern(d.Child("name"), target, bindVar)
			}
		}
	case "lexical_declaration":
		kind := lexicalKind(n, a.src)
		for _, d := range n.NamedChildren() {
			if d.Kind == "variable_declarator" {
				a.bindPattern(d.Child("name"), cur, kind)
			}
		}
	case "import_statement":
		a.declareImport(n, cur)
		return
	case "import_alias":
		a.bind(cur, n.FirstNamed(), bindImportEquals)
	case "enum_declaration":
		kind := bindEnum
		if n.HasToken("const") {
			kind = bindConstEnum
		}
		a.bind(cur, n.Child("name"), kind)
	case "internal_module", "module":
		if id := namespaceRoot(n); id != nil {
			a.bind(cur, id, bindNamespace)
		}
	case "call_expression":
		if fn := n.Child("function"); fn != nil && fn.Kind == "identifier" && fn.Text(a.src) == "eval" {
			for sc := cur; sc != nil; sc = sc.parent {
				sc.dynamic = true
			}
		}
	case "with_statement":
		for sc := cur; sc != nil; sc = sc.parent {
			sc.dynamic = true
		}
	}
	for _, c := range n.Children {
		a.declare(c, inner)
	}
}

// namespaceRoot returns the first identifier of a namespace name.
func namespaceRoot(n *Node) *Node {
	name := n.Child("name")
	if name == nil {
		return nil
	}
	switch name.Kind {
	case "identifier":
		return name
	case "nested_identifier":
		for c := name; c != nil; c = c.FirstNamed() {
			if c.Kind == "identifier" {
				return c
			}
		}
	}
	return nil
}

func (a *scopeAnalyzer) recordTypeNames(n *Node) {
	switch n.Kind {
	case "interface_declaration", "type_alias_declaration":
		if name := n.Child("name"); name != nil {
			a.sc.typeNames[name.Text(a.src)] = true
			a.sc.idents[name.Text(a.src)] = true
		}
	}
}

func (a *scopeAnalyzer) declareImport(n *Node, cur *scope) {
	typeOnly := isTypeOnlyImport(n)
	for _, c := range n.NamedChildren() {
		switch c.Kind {
		case "import_clause":
			for _, part := range c.NamedChildren() {
				switch part.Kind {
				case "identifier":
					a.importName(cur, part, typeOnly)
				case "namespace_import":
					a.importName(cur, part.Find("identifier"), typeOnly)
				case "named_imports":
					for _, spec := range part.NamedChildren() {
						if spec.Kind != "import_specifier" {
							continue
						}
						local := spec.Child("alias")
						if local == nil {
							local = spec.Child("name")
						}
						a.importName(cur, local, typeOnly || spec.HasToken("type"))
					}
				}
			}
		case "import_require_clause":
			if id := c.Find("identifier"); id != nil {
				a.sc.idents[id.Text(a.src)] = true
				if !typeOnly {
					a.bind(cur, id, bindImportEquals)
				}
			}
		}
	}
}

func (a *scopeAnalyzer) importName(cur *scope, id *Node, typeOnly bool) {
	if id == nil || id.Kind != "identifier" {
		return
	}
	a.sc.idents[id.Text(a.src)] = true
	if typeOnly {
		a.sc.typeNames[id.Text(a.src)] = true
		return
	}
	a.bind(cur, id, bindImport)
}

func isTypeOnlyImport(n *Node) bool {
	for _, c := range n.Children {
		if c.Named {
			break
		}
		if c.Kind == "type" || c.Kind == "typeof" {
			return true
		}
	}
	return false
}

func (a *scopeAnalyzer) resolve(n *Node, cur *scope) {
	if isTypeSubtree(n) {
		return
	}
	if sc, ok := a.sc.byNode[n]; ok {
		cur = sc
	}
	switch n.Kind {
	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		if _, isDecl := a.sc.declOf[n]; !isDecl && isReference(n, a.src) {
			if b := cur.lookup(n.Text(a.src)); b != nil {
				b.refs = append(b.refs, n)
				a.sc.refOf[n] = b
				if isAssignmentTarget(n) {
					b.assigned = true
				}
			}
		}
		return
	case "import_statement":
		return
	}
	for _, c := range n.Children {
		a.resolve(c, cur)
	}
}

// isReference reports whether an identifier node reads or writes a binding,
// as opposed to naming a property, label or import/export alias.
func isReference(n *Node, src []byte) bool {
	p := n.Parent
	if p == nil {
		return false
	}
	switch p.Kind {
	case "export_specifier":
		if n.Field != "name" {
			return false
		}
		stmt := p.Ancestor("export_statement")
		return stmt != nil && stmt.Child("source") == nil
	case "namespace_export", "import_specifier", "namespace_import":
		return false
	case "jsx_opening_element", "jsx_self_closing_element", "jsx_closing_element":
		return n.Field == "name" && !isIntrinsicTag(n.Text(src))
	case "nested_identifier":
		if n.Index != 0 {
			return false
		}
		for q := p.Parent; q != nil; q = q.Parent {
			switch q.Kind {
			case "jsx_opening_element", "jsx_self_closing_element", "jsx_closing_element":
				return true
			case "nested_identifier":
				continue
			}
			return false
		}
		return false
	case "internal_module", "module":
		return false
	}
	return true
}

func isIntrinsicTag(name string) bool {
	if name == "" {
		return true
	}
	c := name[0]
	return (c >= 'a' && c <= 'z') || strings.ContainsRune(name, '-')
}

func isAssignmentTarget(n *Node) bool {
	child := n
	for p := n.Parent; p != nil; child, p = p, p.Parent {
		switch p.Kind {
		case "assignment_expression", "augmented_assignment_expression":
			return child.Field == "left"
		case "update_expression":
			return true
		case "object_pattern", "array_pattern", "pair_pattern", "object_assignment_pattern",
			"assignment_pattern", "rest_pattern", "shorthand_property_identifier_pattern":
			if child.Field == "right" {
				return false
			}
			continue
		case "for_in_statement":
			return child.Field == "left"
		}
		return false
	}
	return false
}
