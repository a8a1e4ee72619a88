package transform

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Node is an immutable copy of a tree-sitter node. Copying once gives every
// node a stable pointer identity, which the analysis passes key maps on.
type Node struct {
	Kind     string
	Field    string
	Start    int
	End      int
	Named    bool
	Missing  bool
	Parent   *Node
	Children []*Node
	Index    int
}

func convert(sn *sitter.Node, parent *Node, field string) *Node {
	n := &Node{
		Kind:    sn.Type(),
		Field:   field,
		Start:   int(sn.StartByte()),
		End:     int(sn.EndByte()),
		Named:   sn.IsNamed(),
		Missing: sn.IsMissing(),
		Parent:  parent,
	}
	count := int(sn.ChildCount())
	if count > 0 {
		n.Children = make([]*Node, 0, count)
	}
	for i := 0; i < count; i++ {
		c := sn.Child(i)
		if c == nil {
			continue
		}
		cn := convert(c, n, sn.FieldNameForChild(i))
		cn.Index = len(n.Children)
		n.Children = append(n.Children, cn)
	}
	return n
}

// Child returns the first child carrying the field name.
func (n *Node) Child(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenOf returns every child carrying the field name.
func (n *Node) ChildrenOf(field string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns the named children, skipping comments.
func (n *Node) NamedChildren() []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Named && c.Kind != "comment" {
			out = append(out, c)
		}
	}
	return out
}

// FirstNamed returns the first named, non-comment child.
func (n *Node) FirstNamed() *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Named && c.Kind != "comment" {
			return c
		}
	}
	return nil
}

// Find returns the first direct child of the given kind.
func (n *Node) Find(kind string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// HasToken reports whether an anonymous child token tok is present.
func (n *Node) HasToken(tok string) bool {
	if n == nil {
		return false
	}
	for _, c := range n.Children {
		if !c.Named && c.Kind == tok {
			return true
		}
	}
	return false
}

// Next returns the following sibling.
func (n *Node) Next() *Node {
	if n == nil || n.Parent == nil || n.Index+1 >= len(n.Parent.Children) {
		return nil
	}
	return n.Parent.Children[n.Index+1]
}

// Prev returns the preceding sibling.
func (n *Node) Prev() *Node {
	if n == nil || n.Parent == nil || n.Index == 0 {
		return nil
	}
	return n.Parent.Children[n.Index-1]
}

// Text returns the source text covered by n.
func (n *Node) Text(src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.Start:n.End])
}

// Walk visits n and its descendants in source order until fn returns false
// for a node, which skips that node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Ancestor returns the nearest ancestor of one of the kinds.
func (n *Node) Ancestor(kinds ...string) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		for _, k := range kinds {
			if p.Kind == k {
				return p
			}
		}
	}
	return nil
}
