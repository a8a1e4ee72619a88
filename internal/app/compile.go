package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/synapse/internal/adapters/telemetry"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// Shape digests for dependencies whose shape is not known.
const (
	digestFailed = "failed"
	digestCyclic = "cyclic"
)

// runner is the tracer and scheduler one compile reports through.
type runner struct {
	tracer ports.Tracer
	sched  *scheduler.Scheduler
}

func (a *App) runner() runner {
	return runner{tracer: a.tracer, sched: a.scheduler}
}

// CompileBatch compiles entries and everything they import under cfg.
// Per-file failures are reported in the result. Only configuration errors
// and cancellation are returned.
func (a *App) CompileBatch(
	ctx context.Context,
	entries []string,
	cfg domain.CompilerConfig,
) (*domain.CompileResult, error) {
	result, _, err := a.compile(ctx, a.runner(), entries, cfg, nil, nil)
	return result, err
}

// compile runs one batch. With a previous snapshot and a changed set, only the
// changed units, their dependents and the dependencies of those are compiled;
// every other unit keeps its previous result.
func (a *App) compile(
	ctx context.Context,
	rn runner,
	entries []string,
	cfg domain.CompilerConfig,
	changed []string,
	prev *snapshot,
) (*domain.CompileResult, *snapshot, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	cfg = cfg.Normalize()
	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, errors.Join(domain.ErrConfiguration, zerr.Wrap(err, "failed to get working directory"))
		}
		cfg.Root = wd
	}

	runID := uuid.NewString()
	ctx, span := rn.tracer.Start(ctx, "compile", ports.WithAttribute(telemetry.AttrRunID, runID))
	defer span.End()

	graph, err := a.resolver.Resolve(ctx, entries, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.RecordError(ctxErr)
			return nil, nil, ctxErr
		}
		err = errors.Join(domain.ErrConfiguration, err)
		span.RecordError(err)
		return nil, nil, err
	}

	plan, planDiags := rn.sched.Plan(graph, cfg)
	rn.tracer.EmitPlan(ctx, layerNames(graph, plan))

	r := &compileRun{
		tracer:      rn.tracer,
		hasher:      a.hasher,
		transformer: a.transformer,
		cfg:         cfg,
		graph:       graph,
		plan:        plan,
		shapes:      make([]*domain.ExportShape, graph.Len()),
		failed:      make([]bool, graph.Len()),
		unitDiags:   make(map[string]domain.Diagnostics, graph.Len()),
		compiled:    make(map[string]bool, graph.Len()),
		prev:        prev,
	}
	r.diags = append(r.diags, graph.Diagnostics()...)
	r.diags = append(r.diags, planDiags...)
	if prev != nil && len(changed) > 0 {
		r.scope = scopeOf(graph, changed)
	}

	store, err := a.cacheStore(ctx, cfg)
	if err != nil {
		r.diags = append(r.diags, domain.Warnf(domain.CodeCache, "", 0, 0,
			"cache unavailable, compiling without it: %v", err))
	}
	r.store = store

	if err := rn.sched.Run(ctx, plan, cfg.Parallelism(), r.unit); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	result := &domain.CompileResult{RunID: runID, Files: r.files, Diagnostics: r.diags}
	result.Finalize()
	result.Stats.Layers = len(plan.Layers)
	result.Stats.Duration = time.Since(start)
	if result.Failed() {
		span.RecordError(domain.ErrBuildFailed)
	}
	return result, &snapshot{result: result, unitDiags: r.unitDiags, compiled: r.compiled}, nil
}

func layerNames(g *domain.DependencyGraph, plan *domain.ExecutionPlan) [][]string {
	out := make([][]string, len(plan.Layers))
	for i, ids := range plan.Layers {
		names := make([]string, len(ids))
		for j, id := range ids {
			names[j] = g.RelPath(g.Unit(id).Path)
		}
		out[i] = names
	}
	return out
}

// scopeOf returns the units a change to paths can affect: their transitive
// dependents, plus everything those need ordered before them.
func scopeOf(g *domain.DependencyGraph, paths []string) map[domain.UnitID]bool {
	var ids []domain.UnitID
	for _, p := range paths {
		if id, ok := g.Lookup(p); ok {
			ids = append(ids, id)
		}
	}
	return g.TransitiveDependencies(g.TransitiveDependents(ids))
}

// compileRun is the state of one batch. shapes and failed are written by the
// worker owning a unit and read only by units of later layers.
type compileRun struct {
	tracer      ports.Tracer
	hasher      ports.Hasher
	transformer ports.Transformer
	store       ports.CacheStore
	cfg         domain.CompilerConfig
	graph       *domain.DependencyGraph
	plan        *domain.ExecutionPlan
	scope       map[domain.UnitID]bool
	prev        *snapshot

	shapes []*domain.ExportShape
	failed []bool

	mu        sync.Mutex
	files     []domain.FileResult
	diags     domain.Diagnostics
	unitDiags map[string]domain.Diagnostics
	compiled  map[string]bool
}

func (r *compileRun) unit(ctx context.Context, layer int, id domain.UnitID) {
	u := r.graph.Unit(id)
	defer r.graph.Release(id)
	rel := r.graph.RelPath(u.Path)

	if r.scope != nil && !r.scope[id] && r.reuse(id, u.Path) {
		return
	}

	ctx, span := r.tracer.Start(ctx, rel,
		ports.WithAttribute(telemetry.AttrFile, rel),
		ports.WithAttribute(telemetry.AttrLayer, layer),
	)
	defer span.End()

	start := time.Now()
	fr := domain.FileResult{Path: u.Path, RelPath: rel, CycleAffected: r.graph.CycleAffected(id)}
	if r.graph.Unreadable(id) {
		fr.Status = domain.StatusFailed
		r.failed[id] = true
		span.RecordError(domain.ErrSourceReadFailed)
		r.finish(fr, nil, nil, false)
		return
	}

	imports, digests := r.imports(id)
	fr.Key = r.hasher.Fingerprint(u, r.cfg, digests)

	var extra domain.Diagnostics
	entry, err := r.get(ctx, fr.Key)
	if err != nil {
		extra = append(extra, domain.Warnf(domain.CodeCache, rel, 0, 0, "cache read failed, recompiling: %v", err))
	}

	var diags domain.Diagnostics
	if entry != nil {
		fr.Cached = true
		fr.Code, fr.Map = entry.Code, entry.Map
		r.shapes[id] = entry.Shape
		diags = entry.Diagnostics
	} else {
		var out *domain.CompiledUnit
		out, diags = r.transformer.Transform(ctx, u, imports, r.cfg)
		if out == nil {
			fr.Status = domain.StatusFailed
			r.failed[id] = true
		} else {
			fr.Code, fr.Map = out.Code, out.Map
			r.shapes[id] = out.Shape
			if err := r.put(ctx, &domain.CacheEntry{
				Key:         fr.Key,
				Source:      rel,
				Code:        out.Code,
				Map:         out.Map.Detach(),
				Shape:       out.Shape,
				Diagnostics: diags.WithFile(""),
				Duration:    time.Since(start),
				CreatedAt:   time.Now(),
			}); err != nil {
				extra = append(extra, domain.Warnf(domain.CodeCache, rel, 0, 0, "cache write failed: %v", err))
			}
		}
	}
	fr.Duration = time.Since(start)

	span.SetAttribute(telemetry.AttrCached, fr.Cached)
	if !fr.Succeeded() {
		span.RecordError(domain.ErrTransformFailed)
	}
	r.finish(fr, diags.WithFile(rel), extra, false)
}

// reuse copies the previous result of a unit outside the recompiled scope.
func (r *compileRun) reuse(id domain.UnitID, path string) bool {
	prev, ok := r.prev.result.File(path)
	if !ok {
		return false
	}
	fr := *prev
	fr.Cached = true
	fr.Duration = 0
	fr.CycleAffected = r.graph.CycleAffected(id)
	if !fr.Succeeded() {
		r.failed[id] = true
	}
	r.finish(fr, r.prev.unitDiags[path], nil, true)
	return true
}

func (r *compileRun) get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.Get(ctx, key)
}

func (r *compileRun) put(ctx context.Context, e *domain.CacheEntry) error {
	if r.store == nil {
		return nil
	}
	return r.store.Put(ctx, e)
}

// finish records the outcome of a unit. unit diagnostics are kept for reuse
// by later watch cycles; extra ones are not.
func (r *compileRun) finish(fr domain.FileResult, unit, extra domain.Diagnostics, reused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, fr)
	if !reused {
		r.compiled[fr.Path] = true
	}
	r.diags = append(r.diags, unit...)
	r.diags = append(r.diags, extra...)
	if len(unit) > 0 {
		r.unitDiags[fr.Path] = unit
	}
}

// imports describes every resolved specifier of id for the module rewriter.
// When ordering is on it also returns the digests that key id on the shapes
// of its dependencies.
func (r *compileRun) imports(id domain.UnitID) (domain.ImportShapes, []ports.DependencyDigest) {
	res := r.graph.Resolutions(id)
	shapes := make(domain.ImportShapes, len(res))
	var digests []ports.DependencyDigest
	for _, rs := range res {
		ri := domain.ResolvedImport{Specifier: rs.Specifier, Kind: rs.Kind}
		digest := ""
		switch rs.Kind {
		case domain.ResolvedExternal:
			ri.Status = domain.ShapeExternal
		case domain.ResolvedAsset:
			ri.Status = domain.ShapeAsset
		case domain.ResolvedUnresolved:
			ri.Status = domain.ShapeUnresolved
		default:
			ri.Status, ri.Shape, digest = r.internalShape(id, rs)
		}
		shapes[rs.Specifier] = ri
		if r.plan.Ordered {
			digests = append(digests, ports.DependencyDigest{
				Specifier: rs.Specifier,
				Kind:      rs.Kind,
				Shape:     digest,
			})
		}
	}
	return shapes, digests
}

func (r *compileRun) internalShape(id domain.UnitID, rs domain.Resolution) (domain.ShapeStatus, *domain.ExportShape, string) {
	switch {
	case !r.plan.Ordered || rs.TypeOnly:
		return domain.ShapeNotNeeded, nil, ""
	case !r.graph.IsOrderingEdge(id, rs.Target):
		return domain.ShapeCyclic, nil, digestCyclic
	case r.failed[rs.Target] || r.shapes[rs.Target] == nil:
		return domain.ShapeFailed, nil, digestFailed
	default:
		s := r.shapes[rs.Target]
		return domain.ShapeKnown, s, s.Canonical()
	}
}
