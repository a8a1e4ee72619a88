// Package scheduler orders compilation units into layers and runs each layer
// on a bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

// UnitFunc compiles one unit. Failures are recorded by the callee; the
// scheduler only cares that the call returned.
type UnitFunc func(ctx context.Context, layer int, id domain.UnitID)

// Scheduler plans and executes a dependency graph.
type Scheduler struct {
	tracer ports.Tracer
}

// NewScheduler creates a new Scheduler.
func NewScheduler(tracer ports.Tracer) *Scheduler {
	return &Scheduler{tracer: tracer}
}

// Plan breaks import cycles and layers the graph. When the module format
// needs no dependency shapes every unit lands in one layer. The returned
// diagnostics hold one CYCLE_DETECTED warning per broken cycle.
func (s *Scheduler) Plan(g *domain.DependencyGraph, cfg domain.CompilerConfig) (*domain.ExecutionPlan, domain.Diagnostics) {
	cycles := g.DetectCycles()
	diags := make(domain.Diagnostics, 0, len(cycles))
	for _, c := range cycles {
		diags = append(diags, cycleDiagnostic(g, c))
	}

	plan := &domain.ExecutionPlan{Ordered: cfg.ModuleFormat.RequiresOrdering()}
	ids := g.SortedIDs()
	if len(ids) == 0 {
		return plan, diags
	}
	if !plan.Ordered {
		plan.Layers = [][]domain.UnitID{ids}
		return plan, diags
	}
	plan.Layers = layer(g, ids)
	return plan, diags
}

func cycleDiagnostic(g *domain.DependencyGraph, c domain.Cycle) domain.Diagnostic {
	names := make([]string, 0, len(c.Units)+1)
	for _, id := range c.Units {
		names = append(names, g.RelPath(g.Unit(id).Path))
	}
	names = append(names, names[0])
	return domain.Warnf(domain.CodeCycle, names[0], 0, 0,
		"import cycle %s; the closing import does not order compilation", strings.Join(names, " -> "))
}

// layer runs Kahn's algorithm over the ordering edges. ids must be in path
// order; every layer keeps that order.
func layer(g *domain.DependencyGraph, ids []domain.UnitID) [][]domain.UnitID {
	indegree := make(map[domain.UnitID]int, len(ids))
	dependents := make(map[domain.UnitID][]domain.UnitID, len(ids))
	for _, id := range ids {
		deps := g.Dependencies(id)
		indegree[id] = len(deps)
		for _, d := range deps {
			dependents[d] = append(dependents[d], id)
		}
	}

	var current []domain.UnitID
	for _, id := range ids {
		if indegree[id] == 0 {
			current = append(current, id)
		}
	}

	position := make(map[domain.UnitID]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	var layers [][]domain.UnitID
	placed := 0
	for len(current) > 0 {
		layers = append(layers, current)
		placed += len(current)
		var next []domain.UnitID
		for _, id := range current {
			for _, dep := range dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		slices.SortFunc(next, func(a, b domain.UnitID) int { return position[a] - position[b] })
		current = next
	}

	// DetectCycles leaves no cycle behind, so this only guards against a graph
	// mutated between planning steps.
	if placed < len(ids) {
		var rest []domain.UnitID
		for _, id := range ids {
			if indegree[id] > 0 {
				rest = append(rest, id)
			}
		}
		layers = append(layers, rest)
	}
	return layers
}

// Run executes plan layer by layer. Units of a layer run concurrently on at
// most parallelism workers, and the next layer starts once all of them have
// returned. A cancelled context stops new units from starting; Run then
// returns the context error.
func (s *Scheduler) Run(ctx context.Context, plan *domain.ExecutionPlan, parallelism int, fn UnitFunc) error {
	for i, ids := range plan.Layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runLayer(ctx, i, ids, parallelism, fn)
	}
	return ctx.Err()
}

func (s *Scheduler) runLayer(ctx context.Context, idx int, ids []domain.UnitID, parallelism int, fn UnitFunc) {
	layerCtx, span := s.tracer.Start(ctx, fmt.Sprintf("layer %d", idx),
		ports.WithAttribute("synapse.layer", idx),
		ports.WithAttribute("synapse.units", len(ids)),
	)
	defer span.End()

	var g errgroup.Group
	g.SetLimit(max(1, parallelism))
	for _, id := range ids {
		if layerCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if layerCtx.Err() != nil {
				return nil
			}
			fn(layerCtx, idx, id)
			return nil
		})
	}
	_ = g.Wait()
}
