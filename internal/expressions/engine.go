package expressions

import "context"

// Engine evaluates branch-condition expressions against process variables.
// Three implementations: Expr (the ${...} default dialect), CEL and GoJQ.
type Engine interface {
	Name() string
	// Compile checks that an expression is well-formed without running it.
	Compile(expression string) error
	Evaluate(ctx context.Context, expression string, vars map[string]any) (any, error)
}
