package expressions

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/flowreader/pkg/schema"
)

// Dialect prefixes recognised on stored conditions. ${...} is the BPMN
// convention and maps to Expr.
const (
	prefixCEL = "cel:"
	prefixJQ  = "jq:"
)

// Condition is a stored branch condition split into its dialect and body.
type Condition struct {
	Raw     string
	Dialect string // engine name; "" for unconditional and default
	Body    string
	// Marked is false when the condition carries no dialect marker and the
	// fallback engine was assumed.
	Marked bool
}

// Unconditional reports whether the condition always holds.
func (c Condition) Unconditional() bool { return c.Raw == "" }

// IsDefault reports whether the condition is the default-branch token.
func (c Condition) IsDefault() bool { return c.Raw == schema.ConditionDefault }

// Conditions evaluates TaskInfo conditions against process variables,
// dispatching each condition to the engine its dialect names.
// It is safe for concurrent use.
type Conditions struct {
	engines  map[string]Engine
	fallback string
}

// NewConditions creates a Conditions with the Expr, CEL and GoJQ engines.
// Conditions without a dialect marker go to the fallback engine ("expr"
// when empty).
func NewConditions(fallback string) (*Conditions, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return NewConditionsWith(fallback, NewExprEngine(), celEngine, NewGoJQEngine())
}

// NewConditionsWith creates a Conditions over the given engines.
func NewConditionsWith(fallback string, engines ...Engine) (*Conditions, error) {
	c := &Conditions{engines: make(map[string]Engine, len(engines)), fallback: fallback}
	for _, e := range engines {
		c.engines[e.Name()] = e
	}
	if c.fallback == "" {
		c.fallback = "expr"
	}
	if _, ok := c.engines[c.fallback]; !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown condition engine %q", c.fallback)
	}
	return c, nil
}

// Fallback returns the engine used for unmarked conditions.
func (c *Conditions) Fallback() string { return c.fallback }

// Parse splits a stored condition into dialect and body.
func (c *Conditions) Parse(raw string) Condition {
	cond := Condition{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == schema.ConditionDefault:
	case strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}"):
		cond.Dialect, cond.Body, cond.Marked = "expr", strings.TrimSpace(trimmed[2:len(trimmed)-1]), true
	case strings.HasPrefix(trimmed, prefixCEL):
		cond.Dialect, cond.Body, cond.Marked = "cel", strings.TrimSpace(trimmed[len(prefixCEL):]), true
	case strings.HasPrefix(trimmed, prefixJQ):
		cond.Dialect, cond.Body, cond.Marked = "jq", strings.TrimSpace(trimmed[len(prefixJQ):]), true
	default:
		cond.Dialect, cond.Body = c.fallback, trimmed
	}
	return cond
}

// Compile checks a stored condition without evaluating it.
func (c *Conditions) Compile(raw string) error {
	cond := c.Parse(raw)
	if cond.Dialect == "" {
		return nil
	}
	engine, err := c.engine(cond.Dialect)
	if err != nil {
		return err
	}
	return engine.Compile(cond.Body)
}

// Evaluate reports whether a branch guarded by raw may be taken. The empty
// condition always holds; the default token never holds on its own (it is
// chosen only when no sibling matches, see Choose).
func (c *Conditions) Evaluate(ctx context.Context, raw string, vars map[string]any) (bool, error) {
	cond := c.Parse(raw)
	switch {
	case cond.Unconditional():
		return true, nil
	case cond.IsDefault():
		return false, nil
	}

	engine, err := c.engine(cond.Dialect)
	if err != nil {
		return false, err
	}
	out, err := engine.Evaluate(ctx, cond.Body, vars)
	if err != nil {
		return false, err
	}
	return truthy(raw, out)
}

// Choose picks the task to run among siblings sharing an ordering: the
// first whose condition holds, in table order, else the default branch.
// ok is false when nothing matches and there is no default.
func (c *Conditions) Choose(ctx context.Context, siblings []schema.TaskEntry, vars map[string]any) (schema.TaskEntry, bool, error) {
	var fallback *schema.TaskEntry
	for i := range siblings {
		e := siblings[i]
		if e.Condition == schema.ConditionDefault {
			if fallback == nil {
				fallback = &siblings[i]
			}
			continue
		}
		ok, err := c.Evaluate(ctx, e.Condition, vars)
		if err != nil {
			return schema.TaskEntry{}, false, schema.NewErrorf(schema.ErrCodeEvaluation,
				"condition %q of task %q could not be evaluated", e.Condition, e.Name).
				WithTask(e.ID).
				WithCause(err)
		}
		if ok {
			return e, true, nil
		}
	}
	if fallback != nil {
		return *fallback, true, nil
	}
	return schema.TaskEntry{}, false, nil
}

func (c *Conditions) engine(name string) (Engine, error) {
	e, ok := c.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "condition engine %q is not configured", name)
	}
	return e, nil
}

// truthy accepts boolean results only; jq's null counts as false.
func truthy(raw string, out any) (bool, error) {
	switch v := out.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return false, schema.NewErrorf(schema.ErrCodeEvaluation,
			"condition %q evaluated to %T (%s), expected a boolean", raw, out, fmt.Sprint(out)).
			WithDetails(map[string]any{"expression": raw})
	}
}
