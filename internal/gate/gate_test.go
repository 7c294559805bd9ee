package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/events"
	"github.com/johnazariah/aura-sub015/internal/story"
	"github.com/johnazariah/aura-sub015/internal/verify"
)

type stubVerifier struct {
	result *verify.Result
	err    error
}

func (s *stubVerifier) Run(context.Context, string) (*verify.Result, error) {
	return s.result, s.err
}

func executingStory() *story.Story {
	st := story.New("Story", "", "/repo")
	st.Status = story.StatusExecuting
	st.WorktreePath = "/wt"
	return st
}

func TestEvaluatePass(t *testing.T) {
	v := &stubVerifier{result: &verify.Result{
		Success: true,
		StepResults: []verify.StepResult{
			{Step: verify.Step{Type: verify.StepBuild}, Success: true, Required: true},
		},
	}}
	c := New(v)

	res, err := c.Evaluate(context.Background(), executingStory(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomePassed, res.Outcome)
	assert.True(t, res.Passed())
	assert.Equal(t, 1, res.Wave)
	assert.Equal(t, "1/1 steps passed", res.Summary)
	assert.Empty(t, res.Failures)
	assert.False(t, res.Unavailable)
}

func TestEvaluateRequiredFailure(t *testing.T) {
	v := &stubVerifier{result: &verify.Result{
		Success: false,
		StepResults: []verify.StepResult{
			{
				Step:     verify.Step{Type: verify.StepBuild, Command: "go", WorkDir: "/wt/svc"},
				ExitCode: 2,
				Stderr:   "undefined: Foo",
				Required: true,
			},
			{
				Step:     verify.Step{Type: verify.StepLint},
				ExitCode: 1,
				Required: false,
			},
		},
	}}
	c := New(v)

	res, err := c.Evaluate(context.Background(), executingStory(), 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, res.Passed())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "build", res.Failures[0].Step)
	assert.Equal(t, "/wt/svc", res.Failures[0].Project)
	assert.Equal(t, 2, res.Failures[0].ExitCode)
	assert.Equal(t, "undefined: Foo", res.Failures[0].Output)
}

func TestEvaluateNoStepsPasses(t *testing.T) {
	v := &stubVerifier{result: &verify.Result{Success: true}}
	c := New(v)

	res, err := c.Evaluate(context.Background(), executingStory(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomePassed, res.Outcome)
	assert.Equal(t, "No verification steps detected", res.Summary)
}

func TestEvaluateVerifierErrorIsUnavailableFailure(t *testing.T) {
	v := &stubVerifier{err: errors.New(errors.KindVerificationUnavailable, "toolchain missing")}
	c := New(v)

	res, err := c.Evaluate(context.Background(), executingStory(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Unavailable)
	assert.Contains(t, res.Summary, "toolchain missing")
}

func TestEvaluateMissingWorktree(t *testing.T) {
	c := New(&stubVerifier{result: &verify.Result{Success: true}})

	st := executingStory()
	st.WorktreePath = ""
	_, err := c.Evaluate(context.Background(), st, 1)
	assert.True(t, errors.IsKind(err, errors.KindWorktreeUnavailable))
}

func TestEvaluatePublishesEvent(t *testing.T) {
	pub := events.NewMemoryPublisher()
	defer pub.Close()
	st := executingStory()
	ch := pub.Subscribe(st.ID)

	c := New(&stubVerifier{result: &verify.Result{Success: true}}, WithPublisher(pub))
	_, err := c.Evaluate(context.Background(), st, 3)
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, events.TypeGateEvaluated, ev.Type)
	assert.Equal(t, st.ID, ev.StoryID)
}

func TestResultRoundTrip(t *testing.T) {
	res := &Result{
		Outcome: OutcomeFailed,
		Wave:    2,
		Summary: "1 required failures",
		Failures: []Failure{
			{Step: "build", ExitCode: 1, Output: "boom"},
		},
	}

	data, err := Marshal(res)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, res.Outcome, got.Outcome)
	assert.Equal(t, res.Failures, got.Failures)

	empty, err := Unmarshal(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
