package reader

import (
	"fmt"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/pkg/schema"
)

// branchContext records whether a task opened a diverging-gateway branch
// that has not passed a converging gateway yet. Only the main spine may
// chain tasks directly.
type branchContext int

const (
	mainSpine branchContext = iota
	inBranch
)

func (c branchContext) String() string {
	if c == inBranch {
		return "branch"
	}
	return "spine"
}

// contextAfter returns the context of a node entered from a node of kind from.
func contextAfter(from diagram.NodeKind) branchContext {
	if from == diagram.NodeKindDivergingGateway {
		return inBranch
	}
	return mainSpine
}

type exitKind int

const (
	exitEnd exitKind = iota
	exitConverged
)

// pathExit describes how a walked path finished: at an end event, or at a
// converging gateway after a task with the given ordering.
type pathExit struct {
	kind     exitKind
	gateway  string
	ordering int
}

var terminated = pathExit{kind: exitEnd}

// walker holds the state of a single traversal. It is never shared.
type walker struct {
	d       *diagram.Diagram
	tasks   *schema.TaskTable
	entered map[string]bool // diverging gateways already expanded
	resumed map[string]bool // converging gateways the walk already continued from
	active  map[string]bool // converging gateways whose continuation is being walked
}

// ReadTasks walks the diagram from its start event and returns the task
// table in visit order. The first structural violation aborts the walk;
// no partial table is returned.
func ReadTasks(d *diagram.Diagram) (*schema.TaskTable, error) {
	if d == nil {
		return nil, schema.NewError(schema.ErrCodeMalformedDiagram, "diagram is nil")
	}

	starts := d.StartEvents()
	switch len(starts) {
	case 0:
		return nil, schema.NewError(schema.ErrCodeMalformedDiagram, "diagram has no start event")
	case 1:
	default:
		return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
			"diagram has %d start events, expected exactly one", len(starts)).
			WithDetails(map[string]any{"start_events": nodeIDs(starts)})
	}

	start := starts[0]
	out := d.Outgoing(start.ID)
	if len(out) != 1 {
		return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
			"start event %s must have exactly one outgoing flow, has %d", start.ID, len(out))
	}

	w := &walker{
		d:       d,
		tasks:   schema.NewTaskTable(),
		entered: make(map[string]bool),
		resumed: make(map[string]bool),
		active:  make(map[string]bool),
	}

	exit, err := w.follow(out[0].Target, 1, "", diagram.NodeKindStart)
	if err != nil {
		return nil, err
	}
	if exit.kind == exitConverged {
		return nil, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
			"converging gateway %s has no matching diverging gateway", exit.gateway)
	}

	if err := w.checkReachable(); err != nil {
		return nil, err
	}
	return w.tasks, nil
}

// follow dispatches on the node a flow leads to. ordering is the level a task
// at target would receive; from is the kind of the flow's source node.
func (w *walker) follow(target string, ordering int, condition string, from diagram.NodeKind) (pathExit, error) {
	node, ok := w.d.Node(target)
	if !ok {
		return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "flow leads to unknown node %s", target)
	}

	switch node.Kind {
	case diagram.NodeKindEnd:
		return terminated, nil

	case diagram.NodeKindTask, diagram.NodeKindScriptTask:
		return w.visitTask(node, ordering, condition, contextAfter(from))

	case diagram.NodeKindDivergingGateway:
		if from == diagram.NodeKindDivergingGateway {
			return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
				"diverging gateway %s directly follows another diverging gateway; a branch needs a task before splitting again", node.ID)
		}
		return w.visitDiverging(node, ordering, condition)

	case diagram.NodeKindConvergingGateway:
		if w.active[node.ID] {
			return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
				"flow loops back into converging gateway %s", node.ID)
		}
		if w.resumed[node.ID] {
			return pathExit{}, sharedConvergenceError(node.ID)
		}
		return pathExit{kind: exitConverged, gateway: node.ID, ordering: ordering - 1}, nil

	case diagram.NodeKindStart:
		return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "flow leads back into start event %s", node.ID)

	case diagram.NodeKindUnsupported:
		return pathExit{}, schema.NewErrorf(schema.ErrCodeUnsupportedBranch,
			"element %s (%s) is not supported by the sequential task engine", node.ID, node.Element).
			WithTask(node.ID)
	}

	return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram, "node %s has unknown kind %q", node.ID, node.Kind)
}

// visitTask records a task and resolves its single successor.
func (w *walker) visitTask(node diagram.Node, ordering int, condition string, bc branchContext) (pathExit, error) {
	pos, added := w.tasks.Add(schema.TaskEntry{
		ID:       node.ID,
		Name:     node.Name,
		TaskInfo: schema.TaskInfo{Ordering: ordering, Condition: condition},
	})
	if !added {
		return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
			"task %q is reached more than once; the diagram loops or merges without a converging gateway", node.Label()).
			WithTask(node.ID)
	}

	out := w.d.Outgoing(node.ID)
	if len(out) != 1 {
		return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
			"task %q must have exactly one outgoing flow, has %d", node.Label(), len(out)).
			WithTask(node.ID)
	}

	next, _ := w.d.Node(out[0].Target)
	switch {
	case next.Kind == diagram.NodeKindEnd:
		w.tasks.MarkLast(pos)
		return terminated, nil
	case next.Kind.IsTask() && bc == inBranch:
		return pathExit{}, secondTaskError(node)
	}

	return w.follow(next.ID, ordering+1, condition, node.Kind)
}

// visitDiverging walks every branch of a diverging gateway and, when the
// branches converge, continues after the converging gateway.
func (w *walker) visitDiverging(node diagram.Node, ordering int, condition string) (pathExit, error) {
	if w.entered[node.ID] {
		return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
			"diverging gateway %s is reached more than once; the diagram loops", node.ID)
	}
	w.entered[node.ID] = true

	out := w.d.Outgoing(node.ID)
	if len(out) < 2 {
		return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
			"diverging gateway %s must have at least two outgoing flows, has %d", node.ID, len(out))
	}

	var (
		merge        string
		exitOrdering int
		defaults     int
		ended        []string
	)
	for _, f := range out {
		branchCondition := f.Condition
		switch {
		case f.Default:
			defaults++
			if defaults > 1 {
				return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
					"diverging gateway %s has more than one default flow", node.ID)
			}
			branchCondition = schema.ConditionDefault
		case branchCondition == "":
			branchCondition = condition
		}

		exit, err := w.follow(f.Target, ordering, branchCondition, node.Kind)
		if err != nil {
			return pathExit{}, err
		}
		if exit.kind == exitEnd {
			ended = append(ended, f.Target)
			continue
		}

		if merge == "" {
			merge = exit.gateway
		} else if merge != exit.gateway {
			return pathExit{}, schema.NewErrorf(schema.ErrCodeUnsupportedBranch,
				"branches of gateway %s converge at different gateways %s and %s", node.ID, merge, exit.gateway).
				WithDetails(map[string]any{"gateway": node.ID, "converging": []string{merge, exit.gateway}})
		}
		exitOrdering = max(exitOrdering, exit.ordering)
	}

	switch {
	case merge == "":
		return terminated, nil
	case w.resumed[merge]:
		return pathExit{}, sharedConvergenceError(merge)
	case len(ended) > 0:
		return pathExit{}, schema.NewErrorf(schema.ErrCodeUnsupportedBranch,
			"only some branches of gateway %s converge at %s; branches starting at %v end without converging",
			node.ID, merge, ended).
			WithDetails(map[string]any{"gateway": node.ID, "converging": merge, "ended": ended})
	}
	return w.resume(merge, exitOrdering, condition)
}

// resume continues the walk from a converging gateway once all branches of
// its diverging gateway have reported.
func (w *walker) resume(gatewayID string, exitOrdering int, condition string) (pathExit, error) {
	if w.resumed[gatewayID] {
		return pathExit{}, sharedConvergenceError(gatewayID)
	}
	w.resumed[gatewayID] = true
	w.active[gatewayID] = true
	defer delete(w.active, gatewayID)

	out := w.d.Outgoing(gatewayID)
	if len(out) != 1 {
		return pathExit{}, schema.NewErrorf(schema.ErrCodeMalformedDiagram,
			"converging gateway %s must have exactly one outgoing flow, has %d", gatewayID, len(out))
	}
	return w.follow(out[0].Target, exitOrdering+1, condition, diagram.NodeKindConvergingGateway)
}

// checkReachable verifies the table covers every task node of the diagram.
func (w *walker) checkReachable() error {
	all := w.d.Tasks()
	if w.tasks.Len() == len(all) {
		return nil
	}
	for _, n := range all {
		if _, ok := w.tasks.Get(n.ID); !ok {
			return schema.NewErrorf(schema.ErrCodeMalformedDiagram,
				"task %q is not reachable from the start event", n.Label()).
				WithTask(n.ID).
				WithDetails(map[string]any{"tasks": len(all), "reachable": w.tasks.Len()})
		}
	}
	return schema.NewErrorf(schema.ErrCodeMalformedDiagram,
		"diagram has %d tasks but the walk recorded %d", len(all), w.tasks.Len())
}

// secondTaskError reports a branch whose first task is followed directly by
// another task.
// sharedConvergenceError reports a converging gateway that closes both a
// nested gateway and the gateway enclosing it.
func sharedConvergenceError(gatewayID string) *schema.WorkflowError {
	return schema.NewErrorf(schema.ErrCodeUnsupportedBranch,
		"nested and outer branches share converging gateway %s; give each diverging gateway its own converging gateway", gatewayID).
		WithDetails(map[string]any{"converging": gatewayID})
}

func secondTaskError(first diagram.Node) *schema.WorkflowError {
	return schema.NewError(schema.ErrCodeUnsupportedBranch,
		fmt.Sprintf("Task in parallel branch can not have second task. Please remove task after task with name '%s'.", first.Name)).
		WithTask(first.ID).
		WithDetails(map[string]any{"task_name": first.Name})
}

func nodeIDs(nodes []diagram.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
