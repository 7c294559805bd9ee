package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/executor"
	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// scriptedExecutor returns per-prompt results, or a default.
type scriptedExecutor struct {
	name    string
	mu      sync.Mutex
	results map[string]*executor.Result
	err     error
	delay   time.Duration

	running int32
	peak    int32
	calls   int32
}

func (s *scriptedExecutor) Name() string { return s.name }

func (s *scriptedExecutor) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	atomic.AddInt32(&s.calls, 1)
	n := atomic.AddInt32(&s.running, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	defer atomic.AddInt32(&s.running, -1)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, errors.Cancelled()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	r, ok := s.results[req.Prompt]
	s.mu.Unlock()
	if ok {
		return r, nil
	}
	return &executor.Result{Success: true, Output: "done: " + req.Prompt}, nil
}

func setup(t *testing.T, exec executor.Executor) (*Dispatcher, store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := executor.NewRegistry()
	reg.Register(exec)
	return New(s, reg), s
}

func storyWithSteps(t *testing.T, s store.Store, mode story.AutomationMode, specs ...*story.Step) *story.Story {
	t.Helper()
	st := story.New("Story", "", "/repo")
	st.Status = story.StatusExecuting
	st.DispatchTarget = "test"
	st.AutomationMode = mode
	st.WorktreePath = "/wt"
	st.Steps = specs
	for _, sp := range specs {
		sp.StoryID = st.ID
	}
	require.NoError(t, s.Create(context.Background(), st))
	return st
}

func TestRunCompletesWave(t *testing.T) {
	exec := &scriptedExecutor{name: "test"}
	d, s := setup(t, exec)

	a := story.NewStep("", "one", "build the thing", 1, 1)
	b := story.NewStep("", "two", "test the thing", 2, 1)
	st := storyWithSteps(t, s, story.AutomationFull, a, b)

	outcome, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, outcome.Started)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, outcome.Completed)
	assert.Empty(t, outcome.Failed)

	got, err := s.GetWithSteps(context.Background(), st.ID)
	require.NoError(t, err)
	for _, step := range got.Steps {
		assert.Equal(t, story.StepCompleted, step.Status)
		assert.Contains(t, step.Output, "done:")
		assert.Equal(t, 1, step.Attempts)
		assert.NotNil(t, step.StartedAt)
		assert.NotNil(t, step.CompletedAt)
	}
}

func TestRunRecordsFailureWithoutRetry(t *testing.T) {
	exec := &scriptedExecutor{
		name: "test",
		results: map[string]*executor.Result{
			"bad step": {Success: false, Output: "partial", Error: "compile error"},
		},
	}
	d, s := setup(t, exec)

	a := story.NewStep("", "bad", "bad step", 1, 1)
	st := storyWithSteps(t, s, story.AutomationFull, a)

	outcome, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, outcome.Failed)
	assert.Equal(t, int32(1), exec.calls)

	got, err := s.GetWithSteps(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, story.StepFailed, got.Steps[0].Status)
	assert.Equal(t, "compile error", got.Steps[0].Error)
	assert.Equal(t, "partial", got.Steps[0].Output)
}

func TestRunAssistedModeAwaitsApproval(t *testing.T) {
	exec := &scriptedExecutor{name: "test"}
	d, s := setup(t, exec)

	a := story.NewStep("", "one", "p", 1, 1)
	st := storyWithSteps(t, s, story.AutomationAssisted, a)

	outcome, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, outcome.AwaitingApproval)
	assert.Empty(t, outcome.Started)
	assert.Equal(t, int32(0), exec.calls)
	assert.Equal(t, story.StepPending, a.Status)
}

func TestRunApprovedStepExecutes(t *testing.T) {
	exec := &scriptedExecutor{name: "test"}
	d, s := setup(t, exec)

	a := story.NewStep("", "one", "p", 1, 1)
	a.Approval = story.ApprovalApproved
	st := storyWithSteps(t, s, story.AutomationAssisted, a)

	outcome, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, outcome.Completed)
}

func TestRunRejectedStepIsSkipped(t *testing.T) {
	exec := &scriptedExecutor{name: "test"}
	d, s := setup(t, exec)

	a := story.NewStep("", "one", "p", 1, 1)
	a.Approval = story.ApprovalRejected
	st := storyWithSteps(t, s, story.AutomationAssisted, a)

	outcome, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, outcome.Skipped)
	assert.Equal(t, story.StepSkipped, a.Status)
	assert.Equal(t, int32(0), exec.calls)
}

func TestRunAutonomousOnlyGatesConfirmationSteps(t *testing.T) {
	exec := &scriptedExecutor{name: "test"}
	d, s := setup(t, exec)

	plain := story.NewStep("", "plain", "p1", 1, 1)
	risky := story.NewStep("", "risky", "p2", 2, 1)
	risky.RequiresConfirmation = true
	st := storyWithSteps(t, s, story.AutomationAutonomous, plain, risky)

	outcome, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{plain.ID}, outcome.Completed)
	assert.Equal(t, []string{risky.ID}, outcome.AwaitingApproval)
}

func TestRunHonorsMaxParallelism(t *testing.T) {
	exec := &scriptedExecutor{name: "test", delay: 50 * time.Millisecond}
	d, s := setup(t, exec)

	var steps []*story.Step
	for i := 0; i < 6; i++ {
		steps = append(steps, story.NewStep("", "s", "p", i+1, 1))
	}
	st := storyWithSteps(t, s, story.AutomationFull, steps...)
	st.MaxParallelism = 2

	_, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, exec.peak, int32(2))
	assert.Equal(t, int32(6), exec.calls)
}

func TestRunCancellationRecordsCancelledSteps(t *testing.T) {
	exec := &scriptedExecutor{name: "test", delay: 10 * time.Second}
	d, s := setup(t, exec)

	a := story.NewStep("", "slow", "p", 1, 1)
	st := storyWithSteps(t, s, story.AutomationFull, a)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	outcome, err := d.Run(ctx, st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, outcome.Failed)

	got, err := s.GetWithSteps(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, story.StepFailed, got.Steps[0].Status)
	assert.Equal(t, "cancelled", got.Steps[0].Error)
}

func TestRunUnknownExecutorFailsStep(t *testing.T) {
	exec := &scriptedExecutor{name: "other"}
	d, s := setup(t, exec)

	a := story.NewStep("", "one", "p", 1, 1)
	st := storyWithSteps(t, s, story.AutomationFull, a)

	outcome, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, outcome.Failed)
	assert.Contains(t, a.Error, "no executor registered")
}

func TestRerunInvalidatesDownstreamPendingSteps(t *testing.T) {
	exec := &scriptedExecutor{name: "test"}
	d, s := setup(t, exec)

	up := story.NewStep("", "up", "p1", 1, 1)
	up.Attempts = 1 // previously executed
	mid := story.NewStep("", "mid", "p2", 2, 2)
	mid.DependsOn = []string{up.ID}
	mid.Output = "stale output"
	far := story.NewStep("", "far", "p3", 3, 3)
	far.DependsOn = []string{mid.ID}
	unrelated := story.NewStep("", "other", "p4", 4, 2)
	st := storyWithSteps(t, s, story.AutomationFull, up, mid, far, unrelated)

	_, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)

	got, err := s.GetWithSteps(context.Background(), st.ID)
	require.NoError(t, err)
	byName := map[string]*story.Step{}
	for _, step := range got.Steps {
		byName[step.Name] = step
	}

	assert.True(t, byName["mid"].NeedsRework)
	assert.Equal(t, "stale output", byName["mid"].PreviousOutput)
	assert.Equal(t, story.StepPending, byName["mid"].Status)
	assert.True(t, byName["far"].NeedsRework)
	assert.False(t, byName["other"].NeedsRework)
}

func TestTerminalStepsClearAgentAssignment(t *testing.T) {
	exec := &scriptedExecutor{
		name: "test",
		results: map[string]*executor.Result{
			"p1": {Success: true, Output: "o", AgentSessionID: "sess-42"},
			"p2": {Success: false, Output: "partial", Error: "boom"},
		},
	}
	d, s := setup(t, exec)

	a := story.NewStep("", "one", "p1", 1, 1)
	b := story.NewStep("", "two", "p2", 2, 1)
	st := storyWithSteps(t, s, story.AutomationFull, a, b)

	_, err := d.Run(context.Background(), st, 1)
	require.NoError(t, err)

	// AssignedAgentID tracks an in-flight claim only; once a step
	// reaches a terminal status it must be empty.
	got, err := s.GetWithSteps(context.Background(), st.ID)
	require.NoError(t, err)
	for _, step := range got.Steps {
		assert.Empty(t, step.AssignedAgentID, "step %s", step.Name)
	}
}
