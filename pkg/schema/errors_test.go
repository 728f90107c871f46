package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowError_Message(t *testing.T) {
	err := NewError(ErrCodeMalformedDiagram, "no start event")
	assert.Equal(t, "[MALFORMED_DIAGRAM] no start event", err.Error())

	err = NewErrorf(ErrCodeUnsupportedBranch, "second task after %q", "Task9").WithTask("t9")
	assert.Equal(t, `[UNSUPPORTED_BRANCH_STRUCTURE] task t9: second task after "Task9"`, err.Error())
}

func TestWorkflowError_Unwrap(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewError(ErrCodeStore, "load diagram").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	inner := NewError(ErrCodeMissingMetadata, "diagram has no title")
	wrapped := fmt.Errorf("read say-hello: %w", inner)

	assert.True(t, IsCode(wrapped, ErrCodeMissingMetadata))
	assert.False(t, IsCode(wrapped, ErrCodeMalformedDiagram))
	assert.Equal(t, "", Code(errors.New("plain")))
}
