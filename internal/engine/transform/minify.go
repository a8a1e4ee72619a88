package transform

// planRenames gives function-local bindings short names. Top-level bindings
// are visible to other modules and keep their spelling, as does everything
// in a scope that calls eval or uses with.
func (u *unit) planRenames() {
	if !u.minify {
		return
	}
	for _, c := range u.sc.root.children {
		u.renameScope(c, nil)
	}
}

func (u *unit) renameScope(s *scope, outer map[string]bool) {
	taken := make(map[string]bool, len(outer)+len(s.order))
	for k := range outer {
		taken[k] = true
	}
	if !s.dynamic && !s.namespace {
		next := 0
		for _, b := range s.order {
			if !u.renamable(b) {
				continue
			}
			var name string
			for {
				name = shortName(next)
				next++
				if u.names.free(name) && !taken[name] {
					break
				}
			}
			u.renamed[b] = name
			taken[name] = true
		}
	}
	for _, c := range s.children {
		u.renameScope(c, taken)
	}
}

func (u *unit) renamable(b *binding) bool {
	switch b.kind {
	case bindClass, bindEnum, bindConstEnum, bindNamespace, bindImport, bindImportEquals:
		return false
	case bindParam:
		for p := b.decl.Parent; p != nil; p = p.Parent {
			if p.Kind == "required_parameter" || p.Kind == "optional_parameter" {
				if isParameterProperty(p) {
					return false
				}
				break
			}
		}
	}
	if _, ok := u.qual[b]; ok {
		return false
	}
	if _, ok := u.nsOwner[b]; ok {
		return false
	}
	return true
}
