package engine

import (
	"context"
	"sort"

	"github.com/rendis/flowreader/internal/expressions"
	"github.com/rendis/flowreader/pkg/schema"
)

// Plan is the execution view of a task table: tasks grouped into levels by
// ordering. The hosting engine runs one level after another; within a
// level, branch conditions decide which tasks run.
type Plan struct {
	tasks *schema.TaskTable
	conds *expressions.Conditions

	// Levels holds task IDs per ordering, in table order. Levels[0] is
	// ordering 1.
	Levels [][]string
}

// BuildPlan groups the tasks of a table into levels.
func BuildPlan(tasks *schema.TaskTable, conds *expressions.Conditions) (*Plan, error) {
	if tasks.Len() == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "task table is empty")
	}
	if conds == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "conditions are required")
	}

	p := &Plan{tasks: tasks, conds: conds}
	p.Levels = computeLevels(tasks)
	for i, level := range p.Levels {
		if len(level) == 0 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "no task has ordering %d", i+1)
		}
	}
	return p, nil
}

// computeLevels groups task IDs by ordering. An ordering below 1 is clamped
// into the first level.
func computeLevels(tasks *schema.TaskTable) [][]string {
	maxLevel := 0
	for _, e := range tasks.Entries() {
		maxLevel = max(maxLevel, e.Ordering)
	}

	levels := make([][]string, max(maxLevel, 1))
	for _, e := range tasks.Entries() {
		d := max(e.Ordering, 1) - 1
		levels[d] = append(levels[d], e.ID)
	}
	return levels
}

// Depth returns the number of levels.
func (p *Plan) Depth() int { return len(p.Levels) }

// Level returns the entries with the given ordering, in table order.
func (p *Plan) Level(ordering int) []schema.TaskEntry {
	if ordering < 1 || ordering > len(p.Levels) {
		return nil
	}
	ids := p.Levels[ordering-1]
	out := make([]schema.TaskEntry, 0, len(ids))
	for _, id := range ids {
		e, _ := p.tasks.Entry(id)
		out = append(out, e)
	}
	return out
}

// LastTasks returns the IDs of the tasks that complete the process, sorted.
func (p *Plan) LastTasks() []string {
	var out []string
	for _, e := range p.tasks.Entries() {
		if e.Last {
			out = append(out, e.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Next picks a single task to run at a level: the first whose condition
// holds, else the level's default branch.
func (p *Plan) Next(ctx context.Context, ordering int, vars map[string]any) (schema.TaskEntry, bool, error) {
	return p.conds.Choose(ctx, p.Level(ordering), vars)
}

// Route resolves the tasks a process instance with the given variables
// would run, until a last task is reached. Diverging gateways are exclusive,
// so each level contributes exactly one task: the first whose condition
// holds, else the level's default branch.
func (p *Plan) Route(ctx context.Context, vars map[string]any) ([]schema.TaskEntry, error) {
	var route []schema.TaskEntry
	for ordering := 1; ordering <= len(p.Levels); ordering++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, ok, err := p.Next(ctx, ordering, vars)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeEvaluation,
				"no branch condition holds at ordering %d and there is no default branch", ordering).
				WithDetails(map[string]any{"ordering": ordering, "route": entryIDs(route)})
		}
		route = append(route, e)
		if e.Last {
			return route, nil
		}
	}
	return route, nil
}

func entryIDs(entries []schema.TaskEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
