package diagram

// NodeKind classifies a diagram node. The set is closed: every switch over
// NodeKind in this module is exhaustive.
type NodeKind string

const (
	NodeKindStart             NodeKind = "start"
	NodeKindEnd               NodeKind = "end"
	NodeKindTask              NodeKind = "task"
	NodeKindScriptTask        NodeKind = "script_task"
	NodeKindDivergingGateway  NodeKind = "diverging_gateway"
	NodeKindConvergingGateway NodeKind = "converging_gateway"
	// NodeKindUnsupported marks elements the sequential engine cannot run
	// (parallel gateways, sub-processes, looping tasks, ...).
	NodeKindUnsupported NodeKind = "unsupported"
)

// IsTask reports whether the kind is a task variant.
func (k NodeKind) IsTask() bool {
	return k == NodeKindTask || k == NodeKindScriptTask
}

// IsGateway reports whether the kind is a gateway variant.
func (k NodeKind) IsGateway() bool {
	return k == NodeKindDivergingGateway || k == NodeKindConvergingGateway
}

// Node is a single diagram element.
type Node struct {
	ID   string
	Name string
	Kind NodeKind
	// Element is the source element type (e.g. "userTask", "parallelGateway"),
	// kept for diagnostics.
	Element string
}

// Label returns the node name, falling back to its ID.
func (n Node) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Flow is a directed sequence flow between two nodes.
type Flow struct {
	ID        string
	Source    string
	Target    string
	Condition string
	Default   bool
}

// Diagram is an immutable snapshot of a process diagram. It is created by
// a Builder and never modified afterwards, so it is safe to share between
// goroutines.
type Diagram struct {
	title    string
	nodes    map[string]Node
	order    []string // node IDs in declaration order
	flows    []Flow
	outgoing map[string][]int // node ID → indices into flows, declaration order
	incoming map[string][]int
}

// Title returns the diagram-level title, or "" if none was declared.
func (d *Diagram) Title() string {
	return d.title
}

// Node returns the node with the given ID.
func (d *Diagram) Node(id string) (Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns all nodes in declaration order.
func (d *Diagram) Nodes() []Node {
	out := make([]Node, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id])
	}
	return out
}

// Flows returns all flows in declaration order.
func (d *Diagram) Flows() []Flow {
	out := make([]Flow, len(d.flows))
	copy(out, d.flows)
	return out
}

// StartEvents returns every start event in declaration order.
func (d *Diagram) StartEvents() []Node {
	return d.byKind(NodeKindStart)
}

// Tasks returns every task and script task in declaration order.
func (d *Diagram) Tasks() []Node {
	var out []Node
	for _, id := range d.order {
		if n := d.nodes[id]; n.Kind.IsTask() {
			out = append(out, n)
		}
	}
	return out
}

// Outgoing returns the flows leaving a node, in declaration order.
func (d *Diagram) Outgoing(id string) []Flow {
	return d.collect(d.outgoing[id])
}

// Incoming returns the flows entering a node, in declaration order.
func (d *Diagram) Incoming(id string) []Flow {
	return d.collect(d.incoming[id])
}

func (d *Diagram) byKind(kind NodeKind) []Node {
	var out []Node
	for _, id := range d.order {
		if n := d.nodes[id]; n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (d *Diagram) collect(idx []int) []Flow {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Flow, len(idx))
	for i, fi := range idx {
		out[i] = d.flows[fi]
	}
	return out
}
