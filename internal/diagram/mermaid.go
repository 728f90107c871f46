package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/flowreader/pkg/schema"
)

// RenderMermaid renders a diagram as a Mermaid flowchart. When tasks is not
// nil, task nodes are annotated with their ordering and last tasks get the
// "last" class.
func RenderMermaid(d *Diagram, tasks *schema.TaskTable) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if d.Title() != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", d.Title())
	}

	for _, n := range d.Nodes() {
		fmt.Fprintf(&b, "    %s\n", mermaidNodeDef(n, tasks))
	}

	for _, f := range d.Flows() {
		arrow := "-->"
		if f.Default {
			arrow = "-.->"
		}
		label := ""
		if l := flowLabel(f); l != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(l))
		}
		fmt.Fprintf(&b, "    %s %s%s %s\n", mermaidSafeID(f.Source), arrow, label, mermaidSafeID(f.Target))
	}

	b.WriteString("\n")
	b.WriteString("    classDef last stroke:#2d6a2d,stroke-width:3px\n")
	b.WriteString("    classDef unsupported fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")

	for _, n := range d.Nodes() {
		if cls := mermaidClass(n, tasks); cls != "" {
			fmt.Fprintf(&b, "    class %s %s\n", mermaidSafeID(n.ID), cls)
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the shape of its kind.
func mermaidNodeDef(n Node, tasks *schema.TaskTable) string {
	id := mermaidSafeID(n.ID)
	label := mermaidEscapeLabel(strings.Join(nodeLines(n, tasks), " "))

	switch n.Kind {
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((\"%s\"))", id, label)
	case NodeKindDivergingGateway, NodeKindConvergingGateway:
		return fmt.Sprintf("%s{\"%s\"}", id, label)
	case NodeKindScriptTask:
		return fmt.Sprintf("%s[[\"%s\"]]", id, label)
	case NodeKindTask:
		return fmt.Sprintf("%s[\"%s\"]", id, label)
	case NodeKindUnsupported:
		return fmt.Sprintf("%s>\"%s\"]", id, label)
	}
	return fmt.Sprintf("%s[\"%s\"]", id, label)
}

func mermaidClass(n Node, tasks *schema.TaskTable) string {
	if n.Kind == NodeKindUnsupported {
		return "unsupported"
	}
	if tasks == nil || !n.Kind.IsTask() {
		return ""
	}
	if info, ok := tasks.Get(n.ID); ok && info.Last {
		return "last"
	}
	return ""
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel replaces characters that end a Mermaid label.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;")
	return r.Replace(s)
}
