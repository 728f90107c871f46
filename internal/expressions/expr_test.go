package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowreader/pkg/schema"
)

func TestNewExprEngine(t *testing.T) {
	e := NewExprEngine()
	assert.NotNil(t, e)
	assert.Equal(t, "expr", e.Name())
}

func TestExpr_BranchConditions(t *testing.T) {
	e := NewExprEngine()
	vars := map[string]any{"kind": 2, "amount": 150.5, "region": "EU", "tags": []any{"urgent", "vip"}}

	tests := []struct {
		expr string
		want any
	}{
		{"kind == 1", false},
		{"kind == 2", true},
		{`amount > 100 && region == "EU"`, true},
		{`"vip" in tags`, true},
		{`region startsWith "E"`, true},
		{"amount < 100 || kind != 2", false},
		{"kind + 1", 3},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestExpr_UndefinedVariableIsNil(t *testing.T) {
	e := NewExprEngine()
	out, err := e.Evaluate(context.Background(), "missing == nil", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExpr_NilVars(t *testing.T) {
	e := NewExprEngine()
	out, err := e.Evaluate(context.Background(), "1 + 1 == 2", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExpr_EmptyExpression(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.True(t, schema.IsCode(e.Compile(""), schema.ErrCodeValidation))
}

func TestExpr_CompileError(t *testing.T) {
	e := NewExprEngine()
	err := e.Compile("kind = = 2")
	require.Error(t, err)

	var wfErr *schema.WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, schema.ErrCodeValidation, wfErr.Code)
	assert.Equal(t, "kind = = 2", wfErr.Details["expression"])
}

func TestExpr_RuntimeError(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "order.total > 1", map[string]any{"order": 5})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeEvaluation))
}

func TestExpr_ProgramReusedAcrossVariableTypes(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "x == 1", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), "x == 1", map[string]any{"x": "one"})
	require.NoError(t, err)
	assert.Equal(t, false, out)

	e.mu.RLock()
	assert.Len(t, e.cache, 1)
	e.mu.RUnlock()
}

func TestExpr_Concurrent(t *testing.T) {
	e := NewExprEngine()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), "n % 2 == 0", map[string]any{"n": n})
			assert.NoError(t, err)
			assert.Equal(t, n%2 == 0, out)
		}(i)
	}
	wg.Wait()
}
