package app

import "go.trai.ch/synapse/internal/core/domain"

var (
	Union    = union
	Relevant = relevant
)

func Stale(arrived []string, compiled ...string) bool {
	snap := &snapshot{compiled: make(map[string]bool, len(compiled))}
	for _, p := range compiled {
		snap.compiled[p] = true
	}
	return stale(arrived, snap)
}

func NeedsFull(changed []string, prev *domain.CompileResult) bool {
	return needsFull(changed, &snapshot{result: prev})
}
