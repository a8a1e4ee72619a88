// Package domain contains the core domain models of the compiler: source units,
// the dependency graph, configuration, cache entries, diagnostics and results.
package domain

import (
	"iter"
	"path/filepath"
	"slices"
	"strings"
)

// UnitID indexes a SourceUnit inside a DependencyGraph arena.
type UnitID int

// ResolutionKind classifies what a module specifier resolved to.
type ResolutionKind uint8

const (
	// ResolvedInternal points at a source file that is compiled as part of the batch.
	ResolvedInternal ResolutionKind = iota
	// ResolvedExternal points at a declared package outside the source tree.
	ResolvedExternal
	// ResolvedAsset points at an existing non-source file (json, css, ...).
	ResolvedAsset
	// ResolvedUnresolved could not be mapped to anything.
	ResolvedUnresolved
)

// String returns the lowercase name of the kind.
func (k ResolutionKind) String() string {
	switch k {
	case ResolvedInternal:
		return "internal"
	case ResolvedExternal:
		return "external"
	case ResolvedAsset:
		return "asset"
	default:
		return "unresolved"
	}
}

// Resolution is the outcome of resolving one import of a unit.
type Resolution struct {
	Specifier  string
	Kind       ResolutionKind
	ImportKind ImportKind
	// TypeOnly resolutions never order. Dynamic imports are recorded as
	// type-only because their output does not depend on the target's shape.
	TypeOnly bool
	// Target is valid only when Kind is ResolvedInternal.
	Target UnitID
	// Path is the resolved file for internal units and assets.
	Path string
	// Package is the package name for externals.
	Package string
	// Line and Column locate the specifier in the importing file.
	Line   int
	Column int
}

// Edge is a directed A→B edge meaning A imports B.
type Edge struct {
	From     UnitID
	To       UnitID
	TypeOnly bool
	// Broken edges close a cycle. They are still compiled but never order.
	Broken bool
}

// Cycle is one import cycle, listed in discovery order.
type Cycle struct {
	Units []UnitID
}

// DependencyGraph is an arena of SourceUnits with edges stored as index pairs,
// so cycles need no owning references.
type DependencyGraph struct {
	units       []*SourceUnit
	index       map[string]UnitID
	resolutions [][]Resolution
	edges       []Edge
	out         [][]int
	in          [][]int
	cycles      []Cycle
	affected    []bool
	unreadable  []bool
	entries     []UnitID
	diagnostics Diagnostics
	root        string
}

// NewDependencyGraph creates an empty graph rooted at root.
func NewDependencyGraph(root string) *DependencyGraph {
	return &DependencyGraph{
		index: make(map[string]UnitID),
		root:  root,
	}
}

// Root returns the directory all unit paths are reported relative to.
func (g *DependencyGraph) Root() string {
	return g.root
}

// AddUnit inserts u and returns its id. Adding a path twice returns the first id.
func (g *DependencyGraph) AddUnit(u *SourceUnit) UnitID {
	if id, ok := g.index[u.Path]; ok {
		return id
	}
	id := UnitID(len(g.units))
	g.units = append(g.units, u)
	g.index[u.Path] = id
	g.resolutions = append(g.resolutions, nil)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	g.affected = append(g.affected, false)
	g.unreadable = append(g.unreadable, false)
	return id
}

// MarkEntry records id as one of the requested entry points.
func (g *DependencyGraph) MarkEntry(id UnitID) {
	if !slices.Contains(g.entries, id) {
		g.entries = append(g.entries, id)
	}
}

// Entries returns the entry point ids in request order.
func (g *DependencyGraph) Entries() []UnitID {
	return g.entries
}

// Lookup returns the id of the unit at path.
func (g *DependencyGraph) Lookup(path string) (UnitID, bool) {
	id, ok := g.index[path]
	return id, ok
}

// Unit returns the unit for id.
func (g *DependencyGraph) Unit(id UnitID) *SourceUnit {
	return g.units[id]
}

// Len returns the number of units in the graph.
func (g *DependencyGraph) Len() int {
	return len(g.units)
}

// Units yields every unit in insertion order.
func (g *DependencyGraph) Units() iter.Seq2[UnitID, *SourceUnit] {
	return func(yield func(UnitID, *SourceUnit) bool) {
		for i, u := range g.units {
			if !yield(UnitID(i), u) {
				return
			}
		}
	}
}

// SortedIDs returns every unit id ordered by path.
func (g *DependencyGraph) SortedIDs() []UnitID {
	ids := make([]UnitID, len(g.units))
	for i := range ids {
		ids[i] = UnitID(i)
	}
	slices.SortFunc(ids, func(a, b UnitID) int {
		return strings.Compare(g.units[a].Path, g.units[b].Path)
	})
	return ids
}

// SetUnit replaces the placeholder recorded for id once its file has been read.
func (g *DependencyGraph) SetUnit(id UnitID, u *SourceUnit) {
	g.units[id] = u
}

// MarkUnreadable records that the file behind id could not be read.
func (g *DependencyGraph) MarkUnreadable(id UnitID) {
	g.unreadable[id] = true
}

// Unreadable reports whether the file behind id could not be read.
func (g *DependencyGraph) Unreadable(id UnitID) bool {
	return g.unreadable[id]
}

// RelPath returns path relative to the graph root with forward slashes.
// Paths outside the root are returned unchanged.
func (g *DependencyGraph) RelPath(path string) string {
	return RelPath(g.root, path)
}

// RelPath returns path relative to root with forward slashes, or path itself
// when it does not live under root.
func RelPath(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Release drops the content of a unit once it is no longer needed.
// The unit value is replaced rather than mutated.
func (g *DependencyGraph) Release(id UnitID) {
	u := g.units[id]
	g.units[id] = &SourceUnit{Path: u.Path, Language: u.Language, Imports: u.Imports}
}

// SetResolutions records the resolved imports of id and derives its edges.
func (g *DependencyGraph) SetResolutions(id UnitID, res []Resolution) {
	g.resolutions[id] = res
	for _, r := range res {
		if r.Kind != ResolvedInternal {
			continue
		}
		g.addEdge(id, r.Target, r.TypeOnly)
	}
}

func (g *DependencyGraph) addEdge(from, to UnitID, typeOnly bool) {
	for _, ei := range g.out[from] {
		e := &g.edges[ei]
		if e.To == to {
			// A value import wins over a type-only one for the same pair.
			e.TypeOnly = e.TypeOnly && typeOnly
			return
		}
	}
	g.edges = append(g.edges, Edge{From: from, To: to, TypeOnly: typeOnly})
	ei := len(g.edges) - 1
	g.out[from] = append(g.out[from], ei)
	g.in[to] = append(g.in[to], ei)
}

// Resolutions returns the resolved imports of id in source order.
func (g *DependencyGraph) Resolutions(id UnitID) []Resolution {
	return g.resolutions[id]
}

// Edges yields every edge of the graph.
func (g *DependencyGraph) Edges() []Edge {
	return g.edges
}

// Dependencies returns the ids id must wait for: internal value edges that do not close a cycle.
func (g *DependencyGraph) Dependencies(id UnitID) []UnitID {
	var deps []UnitID
	for _, ei := range g.out[id] {
		e := g.edges[ei]
		if e.TypeOnly || e.Broken {
			continue
		}
		deps = append(deps, e.To)
	}
	return deps
}

// Dependents returns the ids that import id with a value import, including cyclic importers.
func (g *DependencyGraph) Dependents(id UnitID) []UnitID {
	var deps []UnitID
	for _, ei := range g.in[id] {
		e := g.edges[ei]
		if e.TypeOnly {
			continue
		}
		deps = append(deps, e.From)
	}
	return deps
}

// IsOrderingEdge reports whether from→to exists and constrains ordering.
func (g *DependencyGraph) IsOrderingEdge(from, to UnitID) bool {
	for _, ei := range g.out[from] {
		e := g.edges[ei]
		if e.To == to {
			return !e.TypeOnly && !e.Broken
		}
	}
	return false
}

// DetectCycles finds every import cycle with a depth-first traversal in path order
// and breaks each one at the back-edge that closed it. Running it twice is a no-op.
func (g *DependencyGraph) DetectCycles() []Cycle {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(g.units))
	var stack []UnitID

	var visit func(u UnitID)
	visit = func(u UnitID) {
		color[u] = grey
		stack = append(stack, u)
		for _, ei := range g.out[u] {
			e := &g.edges[ei]
			if e.TypeOnly || e.Broken {
				continue
			}
			switch color[e.To] {
			case grey:
				e.Broken = true
				start := slices.Index(stack, e.To)
				members := slices.Clone(stack[start:])
				for _, m := range members {
					g.affected[m] = true
				}
				g.cycles = append(g.cycles, Cycle{Units: members})
			case white:
				visit(e.To)
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
	}

	for _, id := range g.SortedIDs() {
		if color[id] == white {
			visit(id)
		}
	}
	return g.cycles
}

// Cycles returns the cycles found by DetectCycles.
func (g *DependencyGraph) Cycles() []Cycle {
	return g.cycles
}

// CycleAffected reports whether id takes part in an import cycle.
func (g *DependencyGraph) CycleAffected(id UnitID) bool {
	return g.affected[id]
}

// AddDiagnostic records a graph-level diagnostic such as a resolution failure.
func (g *DependencyGraph) AddDiagnostic(d Diagnostic) {
	g.diagnostics = append(g.diagnostics, d)
}

// Diagnostics returns the graph-level diagnostics.
func (g *DependencyGraph) Diagnostics() Diagnostics {
	return g.diagnostics
}

// TransitiveDependents returns ids plus every unit that reaches one of them through value edges.
func (g *DependencyGraph) TransitiveDependents(ids []UnitID) map[UnitID]bool {
	seen := make(map[UnitID]bool, len(ids))
	queue := slices.Clone(ids)
	for _, id := range ids {
		seen[id] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependents(cur) {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return seen
}

// TransitiveDependencies returns ids plus every unit they reach through ordering edges.
func (g *DependencyGraph) TransitiveDependencies(ids map[UnitID]bool) map[UnitID]bool {
	seen := make(map[UnitID]bool, len(ids))
	var queue []UnitID
	for id := range ids {
		seen[id] = true
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependencies(cur) {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return seen
}
