package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowreader/pkg/schema"
)

func newTestConditions(t *testing.T) *Conditions {
	t.Helper()
	c, err := NewConditions("")
	require.NoError(t, err)
	return c
}

func TestConditions_Parse(t *testing.T) {
	c := newTestConditions(t)

	tests := []struct {
		raw     string
		dialect string
		body    string
		marked  bool
	}{
		{"", "", "", false},
		{"default", "", "", false},
		{"${kind==1}", "expr", "kind==1", true},
		{" ${ kind == 2 } ", "expr", "kind == 2", true},
		{"cel: vars.kind == 1", "cel", "vars.kind == 1", true},
		{"jq:.kind == 1", "jq", ".kind == 1", true},
		{"kind == 3", "expr", "kind == 3", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := c.Parse(tt.raw)
			assert.Equal(t, tt.dialect, got.Dialect)
			assert.Equal(t, tt.body, got.Body)
			assert.Equal(t, tt.marked, got.Marked)
		})
	}
}

func TestConditions_UnknownFallback(t *testing.T) {
	_, err := NewConditions("lua")
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	c, err := NewConditions("cel")
	require.NoError(t, err)
	assert.Equal(t, "cel", c.Fallback())
	assert.Equal(t, "cel", c.Parse("vars.x").Dialect)
}

func TestConditions_Evaluate(t *testing.T) {
	c := newTestConditions(t)
	ctx := context.Background()
	vars := map[string]any{"kind": 2}

	tests := []struct {
		raw  string
		want bool
	}{
		{"", true},
		{schema.ConditionDefault, false},
		{"${kind==1}", false},
		{"${kind==2}", true},
		{"cel:vars.kind == 2", true},
		{"jq:.kind == 2", true},
		{"jq:.absent", false},
		{"kind > 1", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := c.Evaluate(ctx, tt.raw, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditions_EvaluateNonBoolean(t *testing.T) {
	c := newTestConditions(t)
	_, err := c.Evaluate(context.Background(), "${kind + 1}", map[string]any{"kind": 1})
	assert.True(t, schema.IsCode(err, schema.ErrCodeEvaluation))
}

func TestConditions_Compile(t *testing.T) {
	c := newTestConditions(t)
	assert.NoError(t, c.Compile(""))
	assert.NoError(t, c.Compile(schema.ConditionDefault))
	assert.NoError(t, c.Compile("${kind==1}"))
	assert.NoError(t, c.Compile("cel:vars.kind == 1"))

	// Bare assignment is not a valid expr expression.
	assert.True(t, schema.IsCode(c.Compile("kind=2"), schema.ErrCodeValidation))
}

func TestConditions_Choose(t *testing.T) {
	c := newTestConditions(t)
	ctx := context.Background()

	siblings := []schema.TaskEntry{
		{ID: "script", Name: "ScriptTask", TaskInfo: schema.TaskInfo{Ordering: 2, Condition: "${kind==1}"}},
		{ID: "t4", Name: "Task4", TaskInfo: schema.TaskInfo{Ordering: 2, Condition: schema.ConditionDefault}},
		{ID: "t3", Name: "Task3", TaskInfo: schema.TaskInfo{Ordering: 2, Condition: "${kind==2}"}},
	}

	got, ok, err := c.Choose(ctx, siblings, map[string]any{"kind": 2})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t3", got.ID)

	got, ok, err = c.Choose(ctx, siblings, map[string]any{"kind": 9})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t4", got.ID)

	_, ok, err = c.Choose(ctx, siblings[:1], map[string]any{"kind": 9})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConditions_ChooseError(t *testing.T) {
	c := newTestConditions(t)
	siblings := []schema.TaskEntry{
		{ID: "bad", Name: "Bad", TaskInfo: schema.TaskInfo{Ordering: 1, Condition: "${kind ==}"}},
	}
	_, _, err := c.Choose(context.Background(), siblings, nil)
	require.Error(t, err)

	var wfErr *schema.WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, "bad", wfErr.TaskID)
	assert.Equal(t, schema.ErrCodeEvaluation, wfErr.Code)
}
