package reader

import (
	"errors"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/internal/expressions"
	"github.com/rendis/flowreader/internal/validation"
	"github.com/rendis/flowreader/pkg/schema"
)

// Lint runs every check available for a decoded diagram: structural
// warnings, the read itself and, once the diagram reads cleanly, the
// compilation of every branch condition.
func Lint(d *diagram.Diagram, conds *expressions.Conditions) *schema.ValidationResult {
	result := validation.LintDiagram(d)
	wf, err := ReadDiagram(d)
	if err != nil {
		msg := err.Error()
		var wfErr *schema.WorkflowError
		if errors.As(err, &wfErr) {
			msg = wfErr.Message
		}
		result.AddError("diagram", schema.Code(err), msg)
		return result
	}
	result.Merge(validation.LintConditions(wf.Tasks, conds))
	return result
}
