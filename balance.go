package aviary

import (
	"math"

	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

/* Implicit balance solve. Each Balance pairs a computed quantity with a
required quantity over the same node count and drives their difference to zero
by adjusting one control. Residuals are local to a node, so the Jacobian is
block diagonal in node index and each node gets its own dense solve. */

// Balance defines one closure relationship: adjust Control until the LHS
// array matches the RHS array at every active node.
type Balance struct {
	Control string
	LHS     string
	RHS     string
	EqUnits string
	Guess   float64
	// Box bounds on the control, honored only when Bounded.
	Lower, Upper float64
	Bounded      bool
	// ActiveAt limits the nodes where the residual is enforced; nil means all.
	ActiveAt func(node int) bool
}

func (b *Balance) activeAt(node int) bool {
	return b.ActiveAt == nil || b.ActiveAt(node)
}

// BalanceSystem is what the Newton solver iterates on: an evaluable model plus
// its balance relationships over a shared node state.
type BalanceSystem interface {
	Label() string
	NumNodes() int
	Balances() []*Balance
	State() *NodeState
	// Evaluate recomputes every wired component at the current control values.
	Evaluate() error
}

// SolverState tracks the per-phase solve state machine.
type SolverState uint8

const (
	// SolverInitialized means controls hold their initial guesses.
	SolverInitialized SolverState = iota
	// SolverIterating means Newton steps are in progress.
	SolverIterating
	// SolverConverged means all residual norms met both tolerances.
	SolverConverged
	// SolverDiverged means the iteration budget ran out or a solve was singular.
	SolverDiverged
)

func (s SolverState) String() string {
	switch s {
	case SolverInitialized:
		return "initialized"
	case SolverIterating:
		return "iterating"
	case SolverConverged:
		return "converged"
	case SolverDiverged:
		return "diverged"
	}
	panic("cannot stringify unknown solver state")
}

// NewtonSolver drives the balance controls to convergence with per-node dense
// Newton steps and finite-difference Jacobians.
type NewtonSolver struct {
	Atol     float64
	Rtol     float64
	MaxIters int
	Pert     float64
	state    SolverState
	iters    int
	logger   kitlog.Logger
}

// NewNewtonSolver returns a solver with the tolerances used throughout the
// mission analyses.
func NewNewtonSolver(logger kitlog.Logger) *NewtonSolver {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &NewtonSolver{
		Atol:     1e-10,
		Rtol:     1e-10,
		MaxIters: 50,
		Pert:     1e-8,
		state:    SolverInitialized,
		logger:   logger,
	}
}

// State returns the solve state machine position.
func (ns *NewtonSolver) State() SolverState {
	return ns.state
}

// Iterations returns the number of Newton iterations performed.
func (ns *NewtonSolver) Iterations() int {
	return ns.iters
}

// residuals gathers LHS-RHS for every active (balance, node) pair.
func residuals(sys BalanceSystem) []float64 {
	st := sys.State()
	var res []float64
	for _, bal := range sys.Balances() {
		lhs := st.Array(bal.LHS)
		rhs := st.Array(bal.RHS)
		for i := 0; i < sys.NumNodes(); i++ {
			if bal.activeAt(i) {
				res = append(res, lhs[i]-rhs[i])
			}
		}
	}
	return res
}

// Solve runs the state machine to CONVERGED or DIVERGED. On divergence a
// ConvergenceError is returned and the caller owns the retry policy.
func (ns *NewtonSolver) Solve(sys BalanceSystem) error {
	st := sys.State()
	bals := sys.Balances()
	nn := sys.NumNodes()

	// INITIALIZED: seed the controls at the active nodes.
	for _, bal := range bals {
		ctrl := st.Array(bal.Control)
		for i := 0; i < nn; i++ {
			if bal.activeAt(i) {
				ctrl[i] = bal.Guess
			}
		}
	}
	ns.state = SolverIterating
	ns.iters = 0

	if err := sys.Evaluate(); err != nil {
		ns.state = SolverDiverged
		return err
	}
	norm0 := norm2(residuals(sys))
	if norm0 < ns.Atol {
		ns.state = SolverConverged
		ns.iters = 1
		return nil
	}

	for ns.iters = 1; ns.iters <= ns.MaxIters; ns.iters++ {
		if err := ns.step(sys); err != nil {
			ns.state = SolverDiverged
			return err
		}
		if err := sys.Evaluate(); err != nil {
			ns.state = SolverDiverged
			return err
		}
		norm := norm2(residuals(sys))
		ns.logger.Log("level", "debug", "subsys", "solver", "system", sys.Label(), "iter", ns.iters, "residual", norm)
		if norm < ns.Atol && norm/norm0 < ns.Rtol {
			ns.state = SolverConverged
			return nil
		}
	}
	ns.state = SolverDiverged
	norm := norm2(residuals(sys))
	ns.logger.Log("level", "critical", "subsys", "solver", "system", sys.Label(), "status", "diverged", "residual", norm)
	return ConvergenceError{Phase: sys.Label(), Iteration: ns.MaxIters, Norm: norm}
}

// step performs one Newton update of every control at every active node.
func (ns *NewtonSolver) step(sys BalanceSystem) error {
	st := sys.State()
	bals := sys.Balances()
	nn := sys.NumNodes()
	nb := len(bals)

	// Residuals and controls at the current point, per balance per node.
	base := make([][]float64, nb)
	for j, bal := range bals {
		lhs := st.Array(bal.LHS)
		rhs := st.Array(bal.RHS)
		base[j] = make([]float64, nn)
		for i := 0; i < nn; i++ {
			base[j][i] = lhs[i] - rhs[i]
		}
	}

	// Finite-difference columns: perturbing control k at every node at once is
	// valid because residuals never couple across nodes.
	cols := make([][][]float64, nb) // cols[k][j][i] = d r_j / d u_k at node i
	for k, balK := range bals {
		ctrl := st.Array(balK.Control)
		saved := make([]float64, nn)
		copy(saved, ctrl)
		h := make([]float64, nn)
		for i := 0; i < nn; i++ {
			h[i] = ns.Pert * (1 + math.Abs(ctrl[i]))
			ctrl[i] += h[i]
		}
		if err := sys.Evaluate(); err != nil {
			copy(ctrl, saved)
			return err
		}
		cols[k] = make([][]float64, nb)
		for j, balJ := range bals {
			lhs := st.Array(balJ.LHS)
			rhs := st.Array(balJ.RHS)
			cols[k][j] = make([]float64, nn)
			for i := 0; i < nn; i++ {
				cols[k][j][i] = (lhs[i] - rhs[i] - base[j][i]) / h[i]
			}
		}
		copy(ctrl, saved)
	}
	// Restore the unperturbed evaluation before stepping.
	if err := sys.Evaluate(); err != nil {
		return err
	}

	for i := 0; i < nn; i++ {
		// Active balance subset at this node.
		var act []int
		for j, bal := range bals {
			if bal.activeAt(i) {
				act = append(act, j)
			}
		}
		if len(act) == 0 {
			continue
		}
		k := len(act)
		jacob := mat64.NewDense(k, k, nil)
		rhs := mat64.NewVector(k, nil)
		for a, j := range act {
			rhs.SetVec(a, -base[j][i])
			for b, kk := range act {
				jacob.Set(a, b, cols[kk][j][i])
			}
		}
		var invJacob mat64.Dense
		if err := invJacob.Inverse(jacob); err != nil {
			return ConvergenceError{Phase: sys.Label(), Iteration: ns.iters, Singular: true}
		}
		var du mat64.Vector
		du.MulVec(&invJacob, rhs)
		for a, j := range act {
			ctrl := st.Array(bals[j].Control)
			next := ctrl[i] + du.At(a, 0)
			if bals[j].Bounded {
				// Bounds-enforcing update: violating components are clipped to
				// the nearest bound rather than scaling the whole step.
				next = clamp(next, bals[j].Lower, bals[j].Upper)
			}
			ctrl[i] = next
		}
	}
	return nil
}
