package domain

// ExecutionPlan is the order in which units are compiled.
// Units inside a layer have no ordering edge between them; layer N+1 starts
// only after every unit of layer N has finished.
type ExecutionPlan struct {
	Layers [][]UnitID
	// Ordered is false when the module format needs no dependency shapes and
	// every unit sits in a single layer.
	Ordered bool
}

// Len returns the number of units in the plan.
func (p *ExecutionPlan) Len() int {
	n := 0
	for _, l := range p.Layers {
		n += len(l)
	}
	return n
}

// LayerOf returns the layer index of every unit in the plan.
func (p *ExecutionPlan) LayerOf() map[UnitID]int {
	out := make(map[UnitID]int, p.Len())
	for i, l := range p.Layers {
		for _, id := range l {
			out[id] = i
		}
	}
	return out
}
