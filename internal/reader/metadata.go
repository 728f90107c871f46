package reader

import (
	"strings"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/pkg/schema"
)

// ReadTitle returns the diagram-level title. A missing or blank title is
// reported as MISSING_METADATA.
func ReadTitle(d *diagram.Diagram) (string, error) {
	if d == nil {
		return "", schema.NewError(schema.ErrCodeMalformedDiagram, "diagram is nil")
	}
	title := strings.TrimSpace(d.Title())
	if title == "" {
		return "", schema.NewError(schema.ErrCodeMissingMetadata, "diagram has no title").
			WithDetails(map[string]any{"field": "title"})
	}
	return title, nil
}

// ReadDiagram extracts the title and the task table. The title is checked
// first, so a diagram lacking both fails with MISSING_METADATA.
func ReadDiagram(d *diagram.Diagram) (*schema.Workflow, error) {
	title, err := ReadTitle(d)
	if err != nil {
		return nil, err
	}
	tasks, err := ReadTasks(d)
	if err != nil {
		return nil, err
	}
	return &schema.Workflow{Title: title, Tasks: tasks}, nil
}
