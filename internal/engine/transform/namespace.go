package transform

// analyzeNamespaces decides how each exported namespace member is reached:
// simple variables through the namespace object, everything else by an
// assignment after its declaration.
func (u *unit) analyzeNamespaces() {
	u.root.Walk(func(n *Node) bool {
		if isTypeSubtree(n) {
			return false
		}
		if n.Kind != "internal_module" && n.Kind != "module" {
			return true
		}
		body := n.Child("body")
		if body == nil {
			return false
		}
		parts := u.namespaceParts(n)
		owner := parts[len(parts)-1]
		for _, st := range body.NamedChildren() {
			if st.Kind != "export_statement" || u.dropsExport(st) {
				continue
			}
			u.namespaceExport(st, owner)
		}
		return true
	})
}

func (u *unit) namespaceExport(st *Node, owner string) {
	decl := st.Child("declaration")
	if decl == nil {
		return
	}
	switch decl.Kind {
	case "lexical_declaration", "variable_declaration":
		if simpleDeclarators(decl) {
			for _, id := range declaredNames(decl) {
				if b := u.sc.declOf[id]; b != nil {
					u.qual[b] = owner
				}
			}
			return
		}
		for _, id := range declaredNames(decl) {
			name := u.text(id)
			u.nsAfter[st] = append(u.nsAfter[st], propAccess(owner, name)+" = "+name+";")
		}
	case "function_declaration", "generator_function_declaration", "class_declaration", "abstract_class_declaration":
		if id := decl.Child("name"); id != nil {
			name := u.text(id)
			u.nsAfter[st] = append(u.nsAfter[st], propAccess(owner, name)+" = "+name+";")
		}
	case "enum_declaration":
		if b := u.sc.declOf[decl.Child("name")]; b != nil {
			u.nsOwner[b] = owner
		}
	case "internal_module", "module":
		if b := u.sc.declOf[namespaceRoot(decl)]; b != nil {
			u.nsOwner[b] = owner
		}
	case "import_alias":
		if b := u.sc.declOf[decl.FirstNamed()]; b != nil {
			u.nsOwner[b] = owner
		}
	}
}

// namespaceParts splits a dotted namespace name, with the first part spelled
// as its binding is emitted.
func (u *unit) namespaceParts(n *Node) []string {
	name := n.Child("name")
	if name == nil {
		return []string{""}
	}
	var parts []string
	name.Walk(func(c *Node) bool {
		if c.Kind == "identifier" {
			parts = append(parts, u.text(c))
		}
		return true
	})
	if len(parts) == 0 {
		return []string{u.text(name)}
	}
	return parts
}

// emitNamespace lowers an instantiated namespace to nested IIFEs.
func (u *unit) emitNamespace(n *Node) {
	if !u.instantiated(n) {
		return
	}
	b := u.sc.declOf[namespaceRoot(n)]
	if b == nil {
		return
	}
	parts := u.namespaceParts(n)
	parts[0] = u.nameOf(b)
	indent := lineIndent(u.src, n.Start)

	u.openDecl(n, b)
	u.stmtIndent(n.Start, indent, "(function ("+parts[0]+") {")
	inner := indent
	for i := 1; i < len(parts); i++ {
		inner += "    "
		u.stmtIndent(n.Start, inner, "let "+parts[i]+";")
		u.stmtIndent(n.Start, inner, "(function ("+parts[i]+") {")
	}
	u.emitNamespaceBody(n.Child("body"), parts[len(parts)-1])
	for i := len(parts) - 1; i >= 1; i-- {
		acc := parts[i-1] + "." + parts[i]
		u.stmtIndent(n.End, inner, "})("+parts[i]+" = "+acc+" || ("+acc+" = {}));")
		inner = inner[:len(inner)-4]
	}
	u.stmtIndent(n.End, indent, "})("+u.enumTail(b)+");")
}

func (u *unit) emitNamespaceBody(body *Node, owner string) {
	if body == nil || len(body.Children) < 2 {
		return
	}
	stmts := body.Children[1 : len(body.Children)-1]
	prev := body.Children[0]
	for _, st := range stmts {
		u.e.gap(string(u.src[prev.End:st.Start]))
		prev = st
		if st.Kind == "export_statement" {
			u.emitNamespaceMember(st, owner)
		} else {
			u.emit(st)
		}
		for _, line := range u.nsAfter[st] {
			u.stmtIndent(st.End, lineIndent(u.src, st.Start), line)
		}
	}
}

func (u *unit) emitNamespaceMember(st *Node, owner string) {
	if u.dropsExport(st) {
		return
	}
	decl := st.Child("declaration")
	if decl == nil {
		return
	}
	switch decl.Kind {
	case "lexical_declaration", "variable_declaration":
		if simpleDeclarators(decl) {
			u.emitQualifiedDeclaration(decl, owner)
			return
		}
	}
	u.emit(decl)
}

// emitQualifiedDeclaration writes `owner.a = 1, owner.b = 2;` for a
// declaration whose names live on an object.
func (u *unit) emitQualifiedDeclaration(decl *Node, owner string) {
	first := true
	for _, d := range decl.NamedChildren() {
		if d.Kind != "variable_declarator" {
			continue
		}
		v := d.Child("value")
		if v == nil {
			continue
		}
		if first {
			u.e.synth(d.Start, propAccess(owner, u.text(d.Child("name")))+" = ")
		} else {
			u.e.synth(d.Start, ", "+propAccess(owner, u.text(d.Child("name")))+" = ")
		}
		first = false
		u.emit(v)
	}
	if !first {
		u.e.synth(-1, ";")
	}
}

// simpleDeclarators reports whether every declarator binds a plain name.
func simpleDeclarators(decl *Node) bool {
	for _, d := range decl.NamedChildren() {
		if d.Kind != "variable_declarator" {
			continue
		}
		if name := d.Child("name"); name == nil || name.Kind != "identifier" {
			return false
		}
	}
	return true
}

// declaredNames returns the identifier nodes a declaration binds.
func declaredNames(decl *Node) []*Node {
	var out []*Node
	var pattern func(p *Node)
	pattern = func(p *Node) {
		if p == nil {
			return
		}
		switch p.Kind {
		case "identifier", "shorthand_property_identifier_pattern":
			out = append(out, p)
		case "object_pattern", "array_pattern":
			for _, c := range p.NamedChildren() {
				pattern(c)
			}
		case "pair_pattern":
			pattern(p.Child("value"))
		case "object_assignment_pattern", "assignment_pattern":
			pattern(p.Child("left"))
		case "rest_pattern":
			pattern(p.FirstNamed())
		}
	}
	switch decl.Kind {
	case "lexical_declaration", "variable_declaration":
		for _, d := range decl.NamedChildren() {
			if d.Kind == "variable_declarator" {
				pattern(d.Child("name"))
			}
		}
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "enum_declaration":
		if id := decl.Child("name"); id != nil {
			out = append(out, id)
		}
	case "internal_module", "module":
		if id := namespaceRoot(decl); id != nil {
			out = append(out, id)
		}
	case "import_alias":
		if id := decl.FirstNamed(); id != nil {
			out = append(out, id)
		}
	}
	return out
}
