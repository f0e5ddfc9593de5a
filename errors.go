package aviary

import "fmt"

/* Error taxonomy. Configuration problems are fatal and never retried;
convergence failures are fatal per phase evaluation and left to the caller. */

// DuplicateVariableError is returned when registering an already known variable.
type DuplicateVariableError struct {
	Name string
}

func (e DuplicateVariableError) Error() string {
	return fmt.Sprintf("variable %q already registered", e.Name)
}

// UnknownVariableError is returned when looking up an unregistered variable.
type UnknownVariableError struct {
	Name string
}

func (e UnknownVariableError) Error() string {
	return fmt.Sprintf("variable %q not registered", e.Name)
}

// UnitIncompatibilityError is returned when two units do not share a dimension.
type UnitIncompatibilityError struct {
	From, To string
}

func (e UnitIncompatibilityError) Error() string {
	return fmt.Sprintf("cannot convert %q to %q", e.From, e.To)
}

// UnsupportedMethodError is returned by a subsystem builder which does not
// implement the requested mission method.
type UnsupportedMethodError struct {
	Subsystem string
	Method    MissionMethod
}

func (e UnsupportedMethodError) Error() string {
	return fmt.Sprintf("subsystem %q does not support method %s", e.Subsystem, e.Method)
}

// IncompatibleOptionsError is returned when a subsystem override references an
// option the subsystem never declared.
type IncompatibleOptionsError struct {
	Subsystem string
	Option    string
}

func (e IncompatibleOptionsError) Error() string {
	return fmt.Sprintf("subsystem %q does not declare option %q", e.Subsystem, e.Option)
}

// PromotionConflictError is returned when two components of one phase produce
// the same variable. The legacy behavior was last-registration-wins; here it
// is a configuration error.
type PromotionConflictError struct {
	Variable string
	First    string
	Second   string
}

func (e PromotionConflictError) Error() string {
	return fmt.Sprintf("variable %q produced by both %q and %q", e.Variable, e.First, e.Second)
}

// ConfigurationError is returned for bad or missing phase options.
type ConfigurationError struct {
	Phase  string
	Detail string
}

func (e ConfigurationError) Error() string {
	if e.Phase == "" {
		return "configuration: " + e.Detail
	}
	return fmt.Sprintf("configuration of phase %q: %s", e.Phase, e.Detail)
}

// NoValidColumnsError is returned when a performance map holds no recognized column.
type NoValidColumnsError struct {
	File string
}

func (e NoValidColumnsError) Error() string {
	return fmt.Sprintf("no valid propeller variables found in %q", e.File)
}

// ConvergenceError is returned when a phase solve diverges. It carries enough
// state for the caller to adjust guesses and re-invoke the whole evaluation.
type ConvergenceError struct {
	Phase     string
	Iteration int
	Norm      float64
	Singular  bool
}

func (e ConvergenceError) Error() string {
	if e.Singular {
		return fmt.Sprintf("phase %q diverged: singular Jacobian at iteration %d", e.Phase, e.Iteration)
	}
	return fmt.Sprintf("phase %q diverged after %d iterations (residual norm %g)", e.Phase, e.Iteration, e.Norm)
}
