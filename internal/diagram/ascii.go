package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rendis/flowreader/pkg/schema"
)

// RenderASCII renders the tasks of a diagram as a level listing: one row of
// boxes per ordering, in table order. Without a table every task of the
// diagram gets its own row, in declaration order.
func RenderASCII(d *Diagram, tasks *schema.TaskTable) string {
	var b strings.Builder

	if d.Title() != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", d.Title())
	}

	levels := asciiLevels(d, tasks)
	for i, level := range levels {
		var boxes []asciiBox
		for _, n := range level {
			boxes = append(boxes, makeBox(nodeLines(n, tasks)))
		}
		renderBoxRow(&b, boxes)

		if i < len(levels)-1 {
			renderConnector(&b)
		}
	}

	var unsupported []string
	for _, n := range d.Nodes() {
		if n.Kind == NodeKindUnsupported {
			unsupported = append(unsupported, fmt.Sprintf("%s (%s)", n.ID, n.Element))
		}
	}
	if len(unsupported) > 0 {
		b.WriteString("\n--- unsupported elements ---\n")
		for _, u := range unsupported {
			fmt.Fprintf(&b, "  %s\n", u)
		}
	}

	return b.String()
}

// asciiLevels groups task nodes by ordering.
func asciiLevels(d *Diagram, tasks *schema.TaskTable) [][]Node {
	if tasks.Len() == 0 {
		var levels [][]Node
		for _, n := range d.Tasks() {
			levels = append(levels, []Node{n})
		}
		return levels
	}

	var levels [][]Node
	for _, e := range tasks.Entries() {
		n, ok := d.Node(e.ID)
		if !ok {
			n = Node{ID: e.ID, Name: e.Name, Kind: NodeKindTask}
		}
		idx := max(e.Ordering, 1) - 1
		for len(levels) <= idx {
			levels = append(levels, nil)
		}
		levels[idx] = append(levels[idx], n)
	}
	return levels
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox draws a box around content lines.
func makeBox(content []string) asciiBox {
	maxLen := 0
	for _, line := range content {
		maxLen = max(maxLen, utf8.RuneCountInString(line))
	}
	width := maxLen + 4 // 2 border + 2 padding

	lines := make([]string, 0, len(content)+2)
	lines = append(lines, "┌"+strings.Repeat("─", width-2)+"┐")
	for _, line := range content {
		padded := line + strings.Repeat(" ", maxLen-utf8.RuneCountInString(line))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		maxHeight = max(maxHeight, len(box.lines))
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

func renderConnector(b *strings.Builder) {
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}
