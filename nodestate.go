package aviary

import "fmt"

/* Node state. One phase owns exactly one NodeState during its solve: named
arrays of length N for the trajectory variables. The balance solver and the
subsystem evaluation functions are the only mutators. */

// NodeState holds the per-node values of every multivalue variable of a phase.
type NodeState struct {
	N      int
	arrays map[string][]float64
}

// NewNodeState returns a state for numNodes trajectory nodes.
func NewNodeState(numNodes int) *NodeState {
	return &NodeState{
		N:      numNodes,
		arrays: make(map[string][]float64),
	}
}

// Array returns the per-node values of a variable, allocating a zeroed slice
// of length N on first use.
func (st *NodeState) Array(name string) []float64 {
	a, found := st.arrays[name]
	if !found {
		a = make([]float64, st.N)
		st.arrays[name] = a
	}
	return a
}

// Has reports whether an array for this variable exists already.
func (st *NodeState) Has(name string) bool {
	_, found := st.arrays[name]
	return found
}

// SetArray replaces the per-node values of a variable. The slice length must
// match N: all multivalue arrays of one phase share the same node count.
func (st *NodeState) SetArray(name string, vals []float64) {
	if len(vals) != st.N {
		panic(fmt.Sprintf("array %q has %d values for %d nodes", name, len(vals), st.N))
	}
	a := st.Array(name)
	copy(a, vals)
}

// Fill sets every node of a variable to the same value.
func (st *NodeState) Fill(name string, v float64) {
	a := st.Array(name)
	for i := range a {
		a[i] = v
	}
}

// Clone returns a deep copy, for use when an evaluation must not disturb the
// owner's state.
func (st *NodeState) Clone() *NodeState {
	c := NewNodeState(st.N)
	for name, a := range st.arrays {
		b := make([]float64, len(a))
		copy(b, a)
		c.arrays[name] = b
	}
	return c
}
