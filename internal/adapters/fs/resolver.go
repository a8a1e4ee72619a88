package fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.Resolver = (*Resolver)(nil)

// nodeBuiltins are always external, with or without the node: prefix.
var nodeBuiltins = map[string]bool{
	"assert": true, "async_hooks": true, "buffer": true, "child_process": true,
	"cluster": true, "console": true, "crypto": true, "dgram": true, "dns": true,
	"events": true, "fs": true, "http": true, "http2": true, "https": true,
	"module": true, "net": true, "os": true, "path": true, "perf_hooks": true,
	"process": true, "querystring": true, "readline": true, "stream": true,
	"string_decoder": true, "timers": true, "tls": true, "tty": true, "url": true,
	"util": true, "v8": true, "vm": true, "worker_threads": true, "zlib": true,
}

// Resolver discovers source files breadth-first from a set of entries.
type Resolver struct {
	readFile func(string) ([]byte, error)
}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{readFile: os.ReadFile}
}

type resolveState struct {
	cfg       domain.CompilerConfig
	root      string
	baseURL   string
	externals map[string]bool
	graph     *domain.DependencyGraph
	// kinds caches stat results: 0 missing, 1 file, 2 directory.
	kinds map[string]uint8
}

// Resolve builds the dependency graph of entries. Every frontier of the
// traversal is read and scanned in parallel, then resolved in order so unit
// ids are stable across runs.
func (r *Resolver) Resolve(
	ctx context.Context,
	entries []string,
	cfg domain.CompilerConfig,
) (*domain.DependencyGraph, error) {
	if len(entries) == 0 {
		return nil, domain.ErrNoEntries
	}
	root := cfg.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to get working directory")
		}
		root = wd
	}
	st := &resolveState{
		cfg:       cfg,
		root:      root,
		externals: r.loadExternals(root, cfg.Externals),
		graph:     domain.NewDependencyGraph(root),
		kinds:     make(map[string]uint8),
	}
	if cfg.TypeScript.BaseURL != "" {
		st.baseURL = st.abs(cfg.TypeScript.BaseURL)
	}

	var errs error
	var frontier []domain.UnitID
	for _, e := range entries {
		p := st.abs(e)
		if st.kind(p) != 1 {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(domain.ErrEntryNotFound, ""), "path", e))
			continue
		}
		id := st.add(p)
		st.graph.MarkEntry(id)
		if !slices.Contains(frontier, id) {
			frontier = append(frontier, id)
		}
	}
	if errs != nil {
		return nil, errs
	}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.readFrontier(ctx, st, frontier); err != nil {
			return nil, err
		}
		var next []domain.UnitID
		for _, id := range frontier {
			next = append(next, st.resolveUnit(id)...)
		}
		frontier = next
	}
	return st.graph, nil
}

// readFrontier reads and scans every unit of the frontier concurrently.
func (r *Resolver) readFrontier(ctx context.Context, st *resolveState, ids []domain.UnitID) error {
	units := make([]*domain.SourceUnit, len(ids))
	failed := make([]error, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(st.cfg.Parallelism())
	for i, id := range ids {
		p := st.graph.Unit(id).Path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := r.readFile(p)
			if err != nil {
				failed[i] = err
				return nil
			}
			units[i] = domain.NewSourceUnit(p, content, ScanImports(content))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, id := range ids {
		if failed[i] != nil {
			st.graph.MarkUnreadable(id)
			rel := st.graph.RelPath(st.graph.Unit(id).Path)
			st.graph.AddDiagnostic(domain.Errorf(domain.CodeResolution, rel, 0, 0, "%s: %v", domain.ErrSourceReadFailed, failed[i]))
			continue
		}
		st.graph.SetUnit(id, units[i])
	}
	return nil
}

func (st *resolveState) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(st.root, p)
}

func (st *resolveState) add(p string) domain.UnitID {
	return st.graph.AddUnit(&domain.SourceUnit{Path: p, Language: domain.DetectLanguage(p)})
}

func (st *resolveState) kind(p string) uint8 {
	if k, ok := st.kinds[p]; ok {
		return k
	}
	var k uint8
	if info, err := os.Stat(p); err == nil {
		k = 1
		if info.IsDir() {
			k = 2
		}
	}
	st.kinds[p] = k
	return k
}

// resolveUnit resolves every import of id and returns the newly discovered units.
func (st *resolveState) resolveUnit(id domain.UnitID) []domain.UnitID {
	if st.graph.Unreadable(id) {
		return nil
	}
	u := st.graph.Unit(id)
	dir := filepath.Dir(u.Path)
	rel := st.graph.RelPath(u.Path)
	newUnits := make([]domain.UnitID, 0, len(u.Imports))
	res := make([]domain.Resolution, 0, len(u.Imports))
	for _, imp := range u.Imports {
		r := st.resolve(dir, imp)
		if r.Kind == domain.ResolvedInternal {
			before := st.graph.Len()
			r.Target = st.add(r.Path)
			if st.graph.Len() > before {
				newUnits = append(newUnits, r.Target)
			}
		}
		if r.Kind == domain.ResolvedUnresolved {
			d := domain.Errorf(domain.CodeResolution, rel, imp.Line, imp.Column,
				"%s %q", domain.ErrUnresolvedSpecifier, imp.Specifier)
			if imp.TypeOnly {
				d.Severity = domain.SeverityWarning
			}
			st.graph.AddDiagnostic(d)
		}
		res = append(res, r)
	}
	st.graph.SetResolutions(id, res)
	return newUnits
}

func (st *resolveState) resolve(dir string, imp domain.Import) domain.Resolution {
	r := domain.Resolution{
		Specifier:  imp.Specifier,
		ImportKind: imp.Kind,
		TypeOnly:   imp.TypeOnly || imp.Kind == domain.ImportDynamic,
		Kind:       domain.ResolvedUnresolved,
		Line:       imp.Line,
		Column:     imp.Column,
	}
	spec := imp.Specifier
	if spec == "" {
		return r
	}

	if isRelative(spec) {
		st.fileTarget(&r, filepath.Join(dir, filepath.FromSlash(spec)))
		return r
	}
	if filepath.IsAbs(spec) {
		st.fileTarget(&r, filepath.Clean(spec))
		return r
	}
	if st.aliasTarget(&r, spec) {
		return r
	}
	if st.baseURL != "" && st.fileTarget(&r, filepath.Join(st.baseURL, filepath.FromSlash(spec))) {
		return r
	}
	if pkg := packageName(spec); pkg != "" && st.isExternal(pkg) {
		r.Kind = domain.ResolvedExternal
		r.Package = pkg
	}
	return r
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// fileTarget applies extension inference and directory index lookup to base.
func (st *resolveState) fileTarget(r *domain.Resolution, base string) bool {
	for _, c := range st.candidates(base) {
		if st.kind(c) != 1 {
			continue
		}
		r.Path = c
		r.Kind = domain.ResolvedAsset
		if domain.DetectLanguage(c) != domain.LangUnknown {
			r.Kind = domain.ResolvedInternal
		}
		return true
	}
	return false
}

// candidates lists the files base may refer to, in lookup order.
func (st *resolveState) candidates(base string) []string {
	var out []string
	ext := filepath.Ext(base)
	if domain.DetectLanguage(base) != domain.LangUnknown {
		out = append(out, base)
	}
	// A .js specifier may name the TypeScript file it is compiled from.
	switch ext {
	case ".js", ".jsx":
		stem := strings.TrimSuffix(base, ext)
		out = append(out, stem+".ts", stem+".tsx")
	case ".mjs":
		out = append(out, strings.TrimSuffix(base, ext)+".mts")
	case ".cjs":
		out = append(out, strings.TrimSuffix(base, ext)+".cts")
	}
	for _, e := range domain.SourceExtensions {
		out = append(out, base+e)
	}
	if st.kind(base) == 2 {
		for _, e := range domain.SourceExtensions {
			out = append(out, filepath.Join(base, "index"+e))
		}
	}
	if ext != "" && domain.DetectLanguage(base) == domain.LangUnknown {
		// Assets such as .json or .css, and declaration files.
		out = append(out, base)
	}
	out = append(out, base+".d.ts")
	return out
}

// aliasTarget resolves spec through the configured paths. The pattern with the
// longest prefix before its wildcard wins; exact patterns beat wildcards.
func (st *resolveState) aliasTarget(r *domain.Resolution, spec string) bool {
	pattern, capture, ok := matchAlias(st.cfg.TypeScript.Paths, spec)
	if !ok {
		return false
	}
	base := st.baseURL
	if base == "" {
		base = st.root
	}
	for _, target := range st.cfg.TypeScript.Paths[pattern] {
		t := strings.Replace(target, "*", capture, 1)
		if st.fileTarget(r, filepath.Join(base, filepath.FromSlash(t))) {
			return true
		}
	}
	return false
}

func matchAlias(paths map[string][]string, spec string) (string, string, bool) {
	if _, ok := paths[spec]; ok {
		return spec, "", true
	}
	var (
		best    string
		capture string
		bestLen = -1
	)
	for pattern := range paths {
		prefix, suffix, found := strings.Cut(pattern, "*")
		if !found {
			continue
		}
		if len(spec) < len(prefix)+len(suffix) || !strings.HasPrefix(spec, prefix) || !strings.HasSuffix(spec, suffix) {
			continue
		}
		if len(prefix) > bestLen || (len(prefix) == bestLen && pattern < best) {
			best, bestLen = pattern, len(prefix)
			capture = spec[len(prefix) : len(spec)-len(suffix)]
		}
	}
	return best, capture, bestLen >= 0
}

// packageName returns the npm package a bare specifier refers to.
func packageName(spec string) string {
	if strings.HasPrefix(spec, "node:") {
		return spec
	}
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

func (st *resolveState) isExternal(pkg string) bool {
	if strings.HasPrefix(pkg, "node:") || nodeBuiltins[pkg] {
		return true
	}
	return st.externals[pkg]
}

type packageManifest struct {
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

// loadExternals merges the configured externals with the packages declared in
// the project's package.json. A missing or malformed manifest declares nothing.
func (r *Resolver) loadExternals(root string, configured []string) map[string]bool {
	out := make(map[string]bool, len(configured))
	for _, e := range configured {
		out[e] = true
	}
	data, err := r.readFile(filepath.Join(root, domain.PackageManifest))
	if err != nil {
		return out
	}
	var m packageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return out
	}
	for _, deps := range []map[string]string{m.Dependencies, m.DevDependencies, m.PeerDependencies, m.OptionalDependencies} {
		for name := range deps {
			out[name] = true
		}
	}
	return out
}

// SourceFiles lists every compilable file under dir, sorted, skipping the
// cache and output directories.
func SourceFiles(dir string, skip ...string) []string {
	w := NewWalker()
	var out []string
	for p := range w.WalkFiles(dir, skip) {
		if domain.DetectLanguage(p) != domain.LangUnknown {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}
