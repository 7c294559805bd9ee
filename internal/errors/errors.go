// Package errors provides structured error kinds for aura.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies an error for recovery decisions.
type Kind string

const (
	// KindNotFound indicates a story or step does not exist.
	KindNotFound Kind = "not_found"
	// KindConcurrentUpdate indicates an optimistic-versioning conflict.
	KindConcurrentUpdate Kind = "concurrent_update"
	// KindInvalidState indicates an operation not valid for the current status.
	KindInvalidState Kind = "invalid_state"
	// KindLLMUnavailable indicates a transport failure talking to the model.
	KindLLMUnavailable Kind = "llm_unavailable"
	// KindLLMParse indicates the model replied but the payload was unusable.
	KindLLMParse Kind = "llm_parse_error"
	// KindExecutorFailure indicates an agent execution failed.
	KindExecutorFailure Kind = "executor_failure"
	// KindVerificationUnavailable indicates the verification engine itself errored.
	KindVerificationUnavailable Kind = "verification_unavailable"
	// KindCancelled indicates work was stopped by a cancellation request.
	KindCancelled Kind = "cancelled"
	// KindWorktreeUnavailable indicates the worktree could not be created.
	KindWorktreeUnavailable Kind = "worktree_unavailable"
	// KindFinalizeFailure indicates commit/squash/push/PR creation failed.
	KindFinalizeFailure Kind = "finalize_failure"
)

// Error is the structured error type for aura.
type Error struct {
	Kind  Kind
	What  string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, What: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind with a cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, What: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if stderrors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// --- Common constructors ---

// NotFound returns a not_found error for an entity.
func NotFound(entity, id string) *Error {
	return New(KindNotFound, "%s %s not found", entity, id)
}

// InvalidState returns an invalid_state error for a story operation.
func InvalidState(op, id, status string) *Error {
	return New(KindInvalidState, "cannot %s story %s in status %s", op, id, status)
}

// ConcurrentUpdate returns a concurrent_update error for an entity.
func ConcurrentUpdate(entity, id string) *Error {
	return New(KindConcurrentUpdate, "%s %s was modified concurrently", entity, id)
}

// Cancelled returns the canonical cancellation error.
func Cancelled() *Error {
	return New(KindCancelled, "cancelled")
}
