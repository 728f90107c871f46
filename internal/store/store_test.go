package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	n   int
	err error
}

func (c *countingRecorder) AppendRead(_ context.Context, _ *ReadRecord) error {
	c.n++
	return c.err
}

func TestRecorders_FanOut(t *testing.T) {
	a := &countingRecorder{}
	b := &countingRecorder{err: errors.New("disk full")}
	c := &countingRecorder{}

	err := Recorders{a, nil, b, c}.AppendRead(context.Background(), &ReadRecord{DiagramID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
	assert.Equal(t, 1, c.n)
}

func TestRecorders_Empty(t *testing.T) {
	assert.NoError(t, Recorders(nil).AppendRead(context.Background(), &ReadRecord{}))
}
