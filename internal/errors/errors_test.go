package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(KindNotFound, "story %s not found", "abc")
	assert.Equal(t, "story abc not found", err.Error())

	wrapped := Wrap(KindLLMUnavailable, stderrors.New("dial tcp: refused"), "complete request")
	assert.Equal(t, "complete request: dial tcp: refused", wrapped.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", New(KindCancelled, "cancelled"), KindCancelled},
		{"wrapped in fmt", fmt.Errorf("outer: %w", New(KindInvalidState, "bad")), KindInvalidState},
		{"plain error", stderrors.New("plain"), Kind("")},
		{"nil cause chain", Wrap(KindFinalizeFailure, nil, "push"), KindFinalizeFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("story", "s1"))
	require.True(t, stderrors.Is(err, &Error{Kind: KindNotFound}))
	require.False(t, stderrors.Is(err, &Error{Kind: KindCancelled}))
	assert.True(t, IsKind(err, KindNotFound))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(KindExecutorFailure, cause, "agent run")
	assert.True(t, stderrors.Is(err, cause))
}
