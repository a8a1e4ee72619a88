package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/core/domain"
)

func buildGraph(t *testing.T, paths []string, edges [][2]string) *domain.DependencyGraph {
	t.Helper()
	g := domain.NewDependencyGraph("/p")
	for _, p := range paths {
		g.AddUnit(domain.NewSourceUnit(p, nil, nil))
	}
	byFrom := make(map[string][]domain.Resolution)
	for _, e := range edges {
		to, ok := g.Lookup(e[1])
		require.True(t, ok)
		byFrom[e[0]] = append(byFrom[e[0]], domain.Resolution{
			Specifier: "./" + e[1],
			Kind:      domain.ResolvedInternal,
			Target:    to,
			Path:      e[1],
		})
	}
	for from, res := range byFrom {
		id, ok := g.Lookup(from)
		require.True(t, ok)
		g.SetResolutions(id, res)
	}
	return g
}

func id(t *testing.T, g *domain.DependencyGraph, path string) domain.UnitID {
	t.Helper()
	u, ok := g.Lookup(path)
	require.True(t, ok, path)
	return u
}

func TestDependencyGraph_AddUnitDedupes(t *testing.T) {
	g := domain.NewDependencyGraph("/p")
	a := g.AddUnit(domain.NewSourceUnit("/p/a.ts", []byte("x"), nil))
	again := g.AddUnit(domain.NewSourceUnit("/p/a.ts", []byte("y"), nil))

	assert.Equal(t, a, again)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, []byte("x"), g.Unit(a).Content)
	assert.Equal(t, domain.LangTypeScript, g.Unit(a).Language)
}

func TestDependencyGraph_DetectCycles(t *testing.T) {
	tests := []struct {
		name       string
		paths      []string
		edges      [][2]string
		wantCycles int
		affected   []string
		clean      []string
	}{
		{
			name:       "two node cycle",
			paths:      []string{"a.ts", "b.ts"},
			edges:      [][2]string{{"a.ts", "b.ts"}, {"b.ts", "a.ts"}},
			wantCycles: 1,
			affected:   []string{"a.ts", "b.ts"},
		},
		{
			name:       "self import",
			paths:      []string{"a.ts", "b.ts"},
			edges:      [][2]string{{"a.ts", "a.ts"}, {"b.ts", "a.ts"}},
			wantCycles: 1,
			affected:   []string{"a.ts"},
			clean:      []string{"b.ts"},
		},
		{
			name:       "three node cycle with tail",
			paths:      []string{"a.ts", "b.ts", "c.ts", "d.ts"},
			edges:      [][2]string{{"a.ts", "b.ts"}, {"b.ts", "c.ts"}, {"c.ts", "a.ts"}, {"d.ts", "a.ts"}},
			wantCycles: 1,
			affected:   []string{"a.ts", "b.ts", "c.ts"},
			clean:      []string{"d.ts"},
		},
		{
			name:  "diamond is acyclic",
			paths: []string{"a.ts", "b.ts", "c.ts", "d.ts"},
			edges: [][2]string{{"a.ts", "b.ts"}, {"a.ts", "c.ts"}, {"b.ts", "d.ts"}, {"c.ts", "d.ts"}},
			clean: []string{"a.ts", "b.ts", "c.ts", "d.ts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, tt.paths, tt.edges)
			cycles := g.DetectCycles()
			assert.Len(t, cycles, tt.wantCycles)
			for _, p := range tt.affected {
				assert.True(t, g.CycleAffected(id(t, g, p)), p)
			}
			for _, p := range tt.clean {
				assert.False(t, g.CycleAffected(id(t, g, p)), p)
			}
		})
	}
}

func TestDependencyGraph_BrokenEdgeKeepsDependent(t *testing.T) {
	g := buildGraph(t, []string{"a.ts", "b.ts"}, [][2]string{{"a.ts", "b.ts"}, {"b.ts", "a.ts"}})
	g.DetectCycles()

	a, b := id(t, g, "a.ts"), id(t, g, "b.ts")
	// DFS starts at a.ts, so b.ts -> a.ts is the back-edge.
	assert.Equal(t, []domain.UnitID{b}, g.Dependencies(a))
	assert.Empty(t, g.Dependencies(b))
	assert.False(t, g.IsOrderingEdge(b, a))
	assert.ElementsMatch(t, []domain.UnitID{b}, g.Dependents(a))

	// A second pass finds nothing new.
	assert.Len(t, g.DetectCycles(), 1)
}

func TestDependencyGraph_TypeOnlyEdgesDoNotOrder(t *testing.T) {
	g := domain.NewDependencyGraph("/p")
	a := g.AddUnit(domain.NewSourceUnit("a.ts", nil, nil))
	b := g.AddUnit(domain.NewSourceUnit("b.ts", nil, nil))
	g.SetResolutions(a, []domain.Resolution{{Kind: domain.ResolvedInternal, Target: b, TypeOnly: true}})
	g.SetResolutions(b, []domain.Resolution{{Kind: domain.ResolvedInternal, Target: a, TypeOnly: true}})

	assert.Empty(t, g.DetectCycles())
	assert.Empty(t, g.Dependencies(a))
	assert.Empty(t, g.Dependents(b))
}

func TestDependencyGraph_ValueImportWinsOverTypeOnly(t *testing.T) {
	g := domain.NewDependencyGraph("/p")
	a := g.AddUnit(domain.NewSourceUnit("a.ts", nil, nil))
	b := g.AddUnit(domain.NewSourceUnit("b.ts", nil, nil))
	g.SetResolutions(a, []domain.Resolution{
		{Kind: domain.ResolvedInternal, Target: b, TypeOnly: true},
		{Kind: domain.ResolvedInternal, Target: b},
	})

	require.Len(t, g.Edges(), 1)
	assert.Equal(t, []domain.UnitID{b}, g.Dependencies(a))
}

func TestDependencyGraph_Transitive(t *testing.T) {
	g := buildGraph(t,
		[]string{"a.ts", "b.ts", "c.ts", "d.ts"},
		[][2]string{{"a.ts", "b.ts"}, {"b.ts", "c.ts"}, {"d.ts", "c.ts"}},
	)
	c := id(t, g, "c.ts")

	dependents := g.TransitiveDependents([]domain.UnitID{c})
	assert.Len(t, dependents, 4)

	deps := g.TransitiveDependencies(map[domain.UnitID]bool{id(t, g, "a.ts"): true})
	assert.Equal(t, map[domain.UnitID]bool{
		id(t, g, "a.ts"): true,
		id(t, g, "b.ts"): true,
		c:                true,
	}, deps)
}

func TestDependencyGraph_Release(t *testing.T) {
	g := domain.NewDependencyGraph("/p")
	imports := []domain.Import{{Specifier: "./b"}}
	a := g.AddUnit(domain.NewSourceUnit("/p/a.ts", []byte("import './b'"), imports))
	before := g.Unit(a)

	g.Release(a)

	assert.Nil(t, g.Unit(a).Content)
	assert.Equal(t, imports, g.Unit(a).Imports)
	assert.Equal(t, []byte("import './b'"), before.Content, "released unit must not be mutated")
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]domain.Language{
		"a.ts":       domain.LangTypeScript,
		"a.mts":      domain.LangTypeScript,
		"a.d.ts":     domain.LangUnknown,
		"a.tsx":      domain.LangTSX,
		"a.js":       domain.LangJavaScript,
		"a.cjs":      domain.LangJavaScript,
		"a.jsx":      domain.LangJSX,
		"style.css":  domain.LangUnknown,
		"README.TSX": domain.LangTSX,
	}
	for path, want := range tests {
		assert.Equal(t, want, domain.DetectLanguage(path), path)
	}
}

func TestRelPath(t *testing.T) {
	assert.Equal(t, "src/a.ts", domain.RelPath("/p", "/p/src/a.ts"))
	assert.Equal(t, "/elsewhere/a.ts", domain.RelPath("/p", "/elsewhere/a.ts"))
	assert.Equal(t, "/p/..x/a.ts", domain.RelPath("", "/p/..x/a.ts"))
	assert.Equal(t, "..x/a.ts", domain.RelPath("/p", "/p/..x/a.ts"))
}

func TestDependencyGraph_SetUnitAndUnreadable(t *testing.T) {
	g := domain.NewDependencyGraph("/p")
	a := g.AddUnit(&domain.SourceUnit{Path: "/p/a.ts"})
	assert.False(t, g.Unreadable(a))

	g.SetUnit(a, domain.NewSourceUnit("/p/a.ts", []byte("x"), nil))
	assert.Equal(t, []byte("x"), g.Unit(a).Content)

	g.MarkUnreadable(a)
	assert.True(t, g.Unreadable(a))
	assert.Equal(t, "a.ts", g.RelPath(g.Unit(a).Path))
}
