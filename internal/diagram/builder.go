package diagram

import (
	"fmt"

	"github.com/rendis/flowreader/pkg/schema"
)

// Builder accumulates nodes and flows and produces an immutable Diagram.
// Decoders use it to translate their source format into the model.
type Builder struct {
	title string
	nodes []Node
	flows []Flow
}

// NewBuilder creates a Builder for a diagram with the given title.
func NewBuilder(title string) *Builder {
	return &Builder{title: title}
}

// Title overrides the diagram title.
func (b *Builder) Title(title string) *Builder {
	b.title = title
	return b
}

// AddNode appends a node.
func (b *Builder) AddNode(n Node) *Builder {
	b.nodes = append(b.nodes, n)
	return b
}

// Start adds a start event.
func (b *Builder) Start(id string) *Builder {
	return b.AddNode(Node{ID: id, Kind: NodeKindStart, Element: "startEvent"})
}

// End adds an end event.
func (b *Builder) End(id string) *Builder {
	return b.AddNode(Node{ID: id, Kind: NodeKindEnd, Element: "endEvent"})
}

// Task adds a task.
func (b *Builder) Task(id, name string) *Builder {
	return b.AddNode(Node{ID: id, Name: name, Kind: NodeKindTask, Element: "task"})
}

// ScriptTask adds a script task.
func (b *Builder) ScriptTask(id, name string) *Builder {
	return b.AddNode(Node{ID: id, Name: name, Kind: NodeKindScriptTask, Element: "scriptTask"})
}

// Diverging adds a diverging exclusive gateway.
func (b *Builder) Diverging(id string) *Builder {
	return b.AddNode(Node{ID: id, Kind: NodeKindDivergingGateway, Element: "exclusiveGateway"})
}

// Converging adds a converging exclusive gateway.
func (b *Builder) Converging(id string) *Builder {
	return b.AddNode(Node{ID: id, Kind: NodeKindConvergingGateway, Element: "exclusiveGateway"})
}

// Flow adds an unconditional flow.
func (b *Builder) Flow(source, target string) *Builder {
	return b.AddFlow(Flow{Source: source, Target: target})
}

// Conditional adds a flow guarded by a condition expression.
func (b *Builder) Conditional(source, target, condition string) *Builder {
	return b.AddFlow(Flow{Source: source, Target: target, Condition: condition})
}

// Default adds a gateway's default flow.
func (b *Builder) Default(source, target string) *Builder {
	return b.AddFlow(Flow{Source: source, Target: target, Default: true})
}

// AddFlow appends a flow. Flows without an ID get a generated one.
func (b *Builder) AddFlow(f Flow) *Builder {
	if f.ID == "" {
		f.ID = fmt.Sprintf("flow_%d", len(b.flows)+1)
	}
	b.flows = append(b.flows, f)
	return b
}

// Build checks referential integrity and returns the Diagram snapshot.
// It only rejects what the model itself cannot represent (empty or duplicate
// IDs, dangling flow endpoints, a default flow with a condition); structural
// rules are left to the reader.
func (b *Builder) Build() (*Diagram, error) {
	d := &Diagram{
		title:    b.title,
		nodes:    make(map[string]Node, len(b.nodes)),
		order:    make([]string, 0, len(b.nodes)),
		flows:    make([]Flow, 0, len(b.flows)),
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
	}

	for i, n := range b.nodes {
		if n.ID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "node at index %d has empty ID", i)
		}
		if _, exists := d.nodes[n.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "duplicate node ID: %s", n.ID)
		}
		d.nodes[n.ID] = n
		d.order = append(d.order, n.ID)
	}

	flowIDs := make(map[string]bool, len(b.flows))
	for _, f := range b.flows {
		if flowIDs[f.ID] {
			return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "duplicate flow ID: %s", f.ID)
		}
		flowIDs[f.ID] = true
		if _, ok := d.nodes[f.Source]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "flow %s has unknown source %q", f.ID, f.Source)
		}
		if _, ok := d.nodes[f.Target]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "flow %s has unknown target %q", f.ID, f.Target)
		}
		if f.Default && f.Condition != "" {
			return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "default flow %s must not carry a condition", f.ID)
		}
		d.flows = append(d.flows, f)
		idx := len(d.flows) - 1
		d.outgoing[f.Source] = append(d.outgoing[f.Source], idx)
		d.incoming[f.Target] = append(d.incoming[f.Target], idx)
	}

	return d, nil
}

// GatewayKind infers the direction of an exclusive gateway from its flow
// counts when the source does not declare one. A gateway that both merges
// and splits is mixed, which the engine cannot run.
func GatewayKind(incoming, outgoing int) NodeKind {
	if incoming > 1 && outgoing > 1 {
		return NodeKindUnsupported
	}
	if outgoing > 1 {
		return NodeKindDivergingGateway
	}
	return NodeKindConvergingGateway
}
