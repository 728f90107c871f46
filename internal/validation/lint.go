package validation

import (
	"fmt"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/internal/expressions"
	"github.com/rendis/flowreader/pkg/schema"
)

// LintConditions compiles every stored condition of a task table. Conditions
// that do not compile are errors; conditions without a dialect marker are
// warnings, since they depend on the configured fallback engine.
func LintConditions(tasks *schema.TaskTable, conds *expressions.Conditions) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, e := range tasks.Entries() {
		path := fmt.Sprintf("tasks[%s].condition", e.ID)
		cond := conds.Parse(e.Condition)
		if cond.Dialect == "" {
			continue
		}
		if err := conds.Compile(e.Condition); err != nil {
			result.AddError(path, schema.ErrCodeValidation,
				fmt.Sprintf("condition %q of task %q does not compile: %s", e.Condition, e.Name, messageOf(err)))
			continue
		}
		if !cond.Marked {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("condition %q of task %q has no dialect marker; evaluated with %s", e.Condition, e.Name, conds.Fallback()))
		}
	}
	return result
}

// LintDiagram reports shapes the reader accepts but that are likely
// mistakes: diverging gateways without a default flow, conditions on flows
// that do not leave a diverging gateway (the reader ignores them), and
// nodes nothing flows into.
func LintDiagram(d *diagram.Diagram) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, n := range d.Nodes() {
		path := fmt.Sprintf("nodes[%s]", n.ID)
		out := d.Outgoing(n.ID)

		if n.Kind == diagram.NodeKindDivergingGateway {
			hasDefault := false
			for _, f := range out {
				hasDefault = hasDefault || f.Default
			}
			if !hasDefault {
				result.AddWarning(path, schema.ErrCodeValidation,
					fmt.Sprintf("diverging gateway %s has no default flow; a process stalls when no condition matches", n.ID))
			}
		} else {
			for _, f := range out {
				if f.Condition != "" {
					result.AddWarning(fmt.Sprintf("flows[%s].condition", f.ID), schema.ErrCodeValidation,
						fmt.Sprintf("condition on flow %s is ignored: only flows leaving a diverging gateway are guarded", f.ID))
				}
			}
		}

		if n.Kind != diagram.NodeKindStart && len(d.Incoming(n.ID)) == 0 {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("node %q has no incoming flow", n.Label()))
		}
	}
	return result
}

func messageOf(err error) string {
	if wfErr, ok := err.(*schema.WorkflowError); ok {
		return wfErr.Message
	}
	return err.Error()
}
