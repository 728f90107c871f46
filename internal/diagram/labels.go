package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/flowreader/pkg/schema"
)

// nodeLines returns the label lines of a node: its name, then for tasks
// present in the table the ordering, the condition and a last marker.
func nodeLines(n Node, tasks *schema.TaskTable) []string {
	var lines []string
	switch n.Kind {
	case NodeKindStart:
		lines = append(lines, "start")
	case NodeKindEnd:
		lines = append(lines, "end")
	case NodeKindUnsupported:
		lines = append(lines, fmt.Sprintf("%s (%s)", firstLine(n.Label()), n.Element))
	default:
		lines = append(lines, firstLine(n.Label()))
	}

	if tasks == nil || !n.Kind.IsTask() {
		return lines
	}
	info, ok := tasks.Get(n.ID)
	if !ok {
		return lines
	}
	return append(lines, infoLines(info)...)
}

func infoLines(info schema.TaskInfo) []string {
	lines := []string{fmt.Sprintf("#%d", info.Ordering)}
	if info.Condition != "" {
		lines = append(lines, "if "+info.Condition)
	}
	if info.Last {
		lines = append(lines, "[LAST]")
	}
	return lines
}

func flowLabel(f Flow) string {
	if f.Default {
		return schema.ConditionDefault
	}
	return f.Condition
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
