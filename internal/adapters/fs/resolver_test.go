package fs_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/adapters/fs"
	"go.trai.ch/synapse/internal/core/domain"
)

func resolveTree(
	t *testing.T,
	files map[string]string,
	mutate func(*domain.CompilerConfig),
	entries ...string,
) (*domain.DependencyGraph, string) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	cfg := domain.DefaultConfig()
	cfg.Root = root
	if mutate != nil {
		mutate(&cfg)
	}
	abs := make([]string, len(entries))
	for i, e := range entries {
		abs[i] = filepath.Join(root, filepath.FromSlash(e))
	}
	g, err := fs.NewResolver().Resolve(context.Background(), abs, cfg)
	require.NoError(t, err)
	return g, root
}

func rels(g *domain.DependencyGraph) []string {
	var out []string
	for _, u := range g.Units() {
		out = append(out, g.RelPath(u.Path))
	}
	return out
}

func resolutionOf(t *testing.T, g *domain.DependencyGraph, root, from, spec string) domain.Resolution {
	t.Helper()
	id, ok := g.Lookup(filepath.Join(root, filepath.FromSlash(from)))
	require.True(t, ok, from)
	for _, r := range g.Resolutions(id) {
		if r.Specifier == spec {
			return r
		}
	}
	t.Fatalf("no resolution for %q in %s", spec, from)
	return domain.Resolution{}
}

func TestResolver_BreadthFirstDiscovery(t *testing.T) {
	g, _ := resolveTree(t, map[string]string{
		"src/main.ts":        `import { a } from "./a"; import { b } from "./b";`,
		"src/a.ts":           `import { c } from "./lib/c"; export const a = c;`,
		"src/b.tsx":          `export const b = 2;`,
		"src/lib/c.js":       `export const c = 3;`,
		"src/unreachable.ts": `export {};`,
	}, nil, "src/main.ts")

	assert.Equal(t, []string{"src/main.ts", "src/a.ts", "src/b.tsx", "src/lib/c.js"}, rels(g))
	assert.Len(t, g.Entries(), 1)
	assert.Empty(t, g.Diagnostics())
	assert.Len(t, g.Edges(), 3)
}

func TestResolver_ExtensionAndIndexInference(t *testing.T) {
	g, root := resolveTree(t, map[string]string{
		"src/main.ts":       `import "./both"; import "./dir"; import "./compiled.js"; import "./data.json"; import "./decl";`,
		"src/both.ts":       ``,
		"src/both.tsx":      ``,
		"src/dir/index.tsx": ``,
		"src/compiled.ts":   ``,
		"src/data.json":     `{}`,
		"src/decl.d.ts":     `export type X = 1;`,
	}, nil, "src/main.ts")

	// .ts wins over .tsx
	assert.Equal(t, filepath.Join(root, "src", "both.ts"), resolutionOf(t, g, root, "src/main.ts", "./both").Path)
	assert.Equal(t, filepath.Join(root, "src", "dir", "index.tsx"), resolutionOf(t, g, root, "src/main.ts", "./dir").Path)
	assert.Equal(t, filepath.Join(root, "src", "compiled.ts"), resolutionOf(t, g, root, "src/main.ts", "./compiled.js").Path)

	asset := resolutionOf(t, g, root, "src/main.ts", "./data.json")
	assert.Equal(t, domain.ResolvedAsset, asset.Kind)
	decl := resolutionOf(t, g, root, "src/main.ts", "./decl")
	assert.Equal(t, domain.ResolvedAsset, decl.Kind)
	assert.Empty(t, g.Diagnostics())
}

func TestResolver_PathAliases(t *testing.T) {
	g, root := resolveTree(t, map[string]string{
		"src/main.ts":           `import "@app/util"; import "@lib"; import "shared/x";`,
		"src/app/util.ts":       ``,
		"src/app/app/util.ts":   ``,
		"packages/lib/index.ts": ``,
		"src/shared/x.ts":       ``,
	}, func(c *domain.CompilerConfig) {
		c.TypeScript.BaseURL = "src"
		c.TypeScript.Paths = map[string][]string{
			"@app/*": {"app/*"},
			"@*":     {"app/app/*"},
			"@lib":   {"../packages/lib"},
		}
	}, "src/main.ts")

	// The longest prefix wins.
	assert.Equal(t, filepath.Join(root, "src", "app", "util.ts"), resolutionOf(t, g, root, "src/main.ts", "@app/util").Path)
	assert.Equal(t, filepath.Join(root, "packages", "lib", "index.ts"), resolutionOf(t, g, root, "src/main.ts", "@lib").Path)
	// Bare specifiers fall back to base_url.
	assert.Equal(t, filepath.Join(root, "src", "shared", "x.ts"), resolutionOf(t, g, root, "src/main.ts", "shared/x").Path)
	assert.Empty(t, g.Diagnostics())
}

func TestResolver_Externals(t *testing.T) {
	g, root := resolveTree(t, map[string]string{
		"package.json": `{"dependencies": {"react": "^18"}, "devDependencies": {"@scope/tool": "1"}}`,
		"src/main.ts":  `import React from "react"; import "react/jsx-runtime"; import "@scope/tool/sub"; import fs from "node:fs"; import path from "path"; import "declared";`,
	}, func(c *domain.CompilerConfig) {
		c.Externals = []string{"declared"}
	}, "src/main.ts")

	for _, spec := range []string{"react", "react/jsx-runtime", "@scope/tool/sub", "node:fs", "path", "declared"} {
		r := resolutionOf(t, g, root, "src/main.ts", spec)
		assert.Equal(t, domain.ResolvedExternal, r.Kind, spec)
	}
	assert.Equal(t, "@scope/tool", resolutionOf(t, g, root, "src/main.ts", "@scope/tool/sub").Package)
	assert.Equal(t, 1, g.Len(), "externals are not traversed")
	assert.Empty(t, g.Diagnostics())
}

func TestResolver_UnresolvedIsDiagnostic(t *testing.T) {
	g, root := resolveTree(t, map[string]string{
		"src/a.ts": "import { y } from './missing';\nimport type { T } from './gone';\n",
	}, nil, "src/a.ts")

	require.Len(t, g.Diagnostics(), 2)
	d := g.Diagnostics()[0]
	assert.Equal(t, domain.CodeResolution, d.Code)
	assert.Equal(t, domain.SeverityError, d.Severity)
	assert.Equal(t, "src/a.ts", d.File)
	assert.Equal(t, 1, d.Line)
	assert.Contains(t, d.Message, "./missing")
	assert.Equal(t, domain.SeverityWarning, g.Diagnostics()[1].Severity, "type-only imports only warn")

	r := resolutionOf(t, g, root, "src/a.ts", "./missing")
	assert.Equal(t, domain.ResolvedUnresolved, r.Kind)
	assert.Equal(t, 1, g.Len())
}

func TestResolver_Cycles(t *testing.T) {
	g, _ := resolveTree(t, map[string]string{
		"src/a.ts": `import { b } from "./b"; export const a = 1;`,
		"src/b.ts": `import { a } from "./a"; export const b = 2;`,
	}, nil, "src/a.ts")

	assert.Equal(t, 2, g.Len())
	assert.Len(t, g.Edges(), 2)
	assert.Len(t, g.DetectCycles(), 1)
}

func TestResolver_DynamicImportsDoNotOrder(t *testing.T) {
	g, root := resolveTree(t, map[string]string{
		"src/a.ts":    `export const load = () => import("./lazy");`,
		"src/lazy.ts": `export const v = 1;`,
	}, nil, "src/a.ts")

	r := resolutionOf(t, g, root, "src/a.ts", "./lazy")
	assert.Equal(t, domain.ResolvedInternal, r.Kind)
	assert.True(t, r.TypeOnly)
	a, _ := g.Lookup(filepath.Join(root, "src", "a.ts"))
	assert.Empty(t, g.Dependencies(a))
}

func TestResolver_MissingEntry(t *testing.T) {
	root := t.TempDir()
	cfg := domain.DefaultConfig()
	cfg.Root = root
	_, err := fs.NewResolver().Resolve(context.Background(), []string{filepath.Join(root, "nope.ts")}, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = fs.NewResolver().Resolve(context.Background(), nil, cfg)
	assert.ErrorIs(t, err, domain.ErrNoEntries)
}

func TestResolver_Deterministic(t *testing.T) {
	files := map[string]string{
		"src/main.ts":   `import "./a"; import "./b"; import "./c";`,
		"src/a.ts":      `import "./shared";`,
		"src/b.ts":      `import "./shared"; import "./d";`,
		"src/c.ts":      ``,
		"src/d.ts":      ``,
		"src/shared.ts": ``,
	}
	first, _ := resolveTree(t, files, nil, "src/main.ts")
	for range 5 {
		again, _ := resolveTree(t, files, func(c *domain.CompilerConfig) { c.MaxParallelism = 1 }, "src/main.ts")
		assert.Equal(t, rels(first), rels(again))
	}
}

