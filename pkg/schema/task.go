package schema

import "encoding/json"

// ConditionDefault is the condition recorded for a task reached through a
// gateway's default flow. It is distinct from the empty condition, which
// means the task is not guarded at all.
const ConditionDefault = "default"

// TaskInfo is the scheduling metadata computed for a single task.
type TaskInfo struct {
	Ordering  int    `json:"ordering"`
	Condition string `json:"condition"`
	Last      bool   `json:"last"`
}

// TaskEntry pairs a task identity with its TaskInfo.
type TaskEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	TaskInfo
}

// TaskTable is an ordered mapping from task ID to TaskInfo.
// Iteration follows insertion order, which is the order in which the
// diagram walk first visited each task.
type TaskTable struct {
	entries []TaskEntry
	index   map[string]int
}

// NewTaskTable creates an empty TaskTable.
func NewTaskTable() *TaskTable {
	return &TaskTable{index: make(map[string]int)}
}

// Add appends an entry and returns its position. It returns false if the
// ID is already present; the table is left unchanged in that case.
func (t *TaskTable) Add(entry TaskEntry) (int, bool) {
	if _, exists := t.index[entry.ID]; exists {
		return -1, false
	}
	t.entries = append(t.entries, entry)
	t.index[entry.ID] = len(t.entries) - 1
	return len(t.entries) - 1, true
}

// MarkLast flags the entry at position i as the last task of its branch.
func (t *TaskTable) MarkLast(i int) {
	t.entries[i].Last = true
}

// Get returns the TaskInfo for a task ID.
func (t *TaskTable) Get(id string) (TaskInfo, bool) {
	i, ok := t.index[id]
	if !ok {
		return TaskInfo{}, false
	}
	return t.entries[i].TaskInfo, true
}

// Entry returns the full entry for a task ID.
func (t *TaskTable) Entry(id string) (TaskEntry, bool) {
	i, ok := t.index[id]
	if !ok {
		return TaskEntry{}, false
	}
	return t.entries[i], true
}

// Len returns the number of tasks in the table.
func (t *TaskTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of all entries in visit order.
func (t *TaskTable) Entries() []TaskEntry {
	if t == nil {
		return nil
	}
	out := make([]TaskEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// IDs returns the task IDs in visit order.
func (t *TaskTable) IDs() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, len(t.entries))
	for i, e := range t.entries {
		ids[i] = e.ID
	}
	return ids
}

// MarshalJSON encodes the table as an array so visit order survives.
func (t *TaskTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Entries())
}

// UnmarshalJSON decodes an array of entries, preserving their order. A task
// ID listed twice is a PARSE_ERROR.
func (t *TaskTable) UnmarshalJSON(data []byte) error {
	var entries []TaskEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	decoded := TaskTable{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if _, added := decoded.Add(e); !added {
			return NewErrorf(ErrCodeParse, "task table lists task %s more than once", e.ID).WithTask(e.ID)
		}
	}
	*t = decoded
	return nil
}

// Workflow is the result of reading a diagram: its title and task table.
type Workflow struct {
	ID    string     `json:"id,omitempty"`
	Title string     `json:"title"`
	Tasks *TaskTable `json:"tasks"`
}
