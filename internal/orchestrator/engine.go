// Package orchestrator drives the story state machine: analyze, plan,
// run waves through gates, and finalize. It is the only mutator of
// story status; every other component reports results back through it.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/johnazariah/aura-sub015/internal/analyzer"
	"github.com/johnazariah/aura-sub015/internal/decompose"
	"github.com/johnazariah/aura-sub015/internal/dispatch"
	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/events"
	"github.com/johnazariah/aura-sub015/internal/executor"
	"github.com/johnazariah/aura-sub015/internal/finalize"
	"github.com/johnazariah/aura-sub015/internal/gate"
	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/story"
	"github.com/johnazariah/aura-sub015/internal/worktree"
)

// Components are the collaborators the engine coordinates.
type Components struct {
	Store      store.Store
	Worktrees  *worktree.Manager
	Analyzer   *analyzer.Analyzer
	Decomposer *decompose.Decomposer
	Dispatcher *dispatch.Dispatcher
	Gates      *gate.Controller
	Finalizer  *finalize.Finalizer
}

// Engine is the orchestrator. All public methods take a story id, hold
// that story's lock for the duration of the call, and persist every
// status change before acting on it.
type Engine struct {
	store      store.Store
	worktrees  *worktree.Manager
	analyzer   *analyzer.Analyzer
	decomposer *decompose.Decomposer
	dispatcher *dispatch.Dispatcher
	gates      *gate.Controller
	finalizer  *finalize.Finalizer
	publisher  events.Publisher
	logger     *slog.Logger
	locks      *lockRegistry
}

// Option configures the Engine.
type Option func(*Engine)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates the engine.
func New(c Components, opts ...Option) *Engine {
	e := &Engine{
		store:      c.Store,
		worktrees:  c.Worktrees,
		analyzer:   c.Analyzer,
		decomposer: c.Decomposer,
		dispatcher: c.Dispatcher,
		gates:      c.Gates,
		finalizer:  c.Finalizer,
		publisher:  events.NewLogPublisher(nil),
		logger:     slog.Default(),
		locks:      newLockRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateRequest carries the createStory parameters. Zero-valued
// optional fields fall back to story defaults.
type CreateRequest struct {
	Title          string
	Description    string
	RepositoryPath string
	IssueURL       string
	AutomationMode story.AutomationMode
	GateMode       story.GateMode
	DispatchTarget string
	MaxParallelism int
}

// Create validates the request and persists a new story in status
// created.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*story.Story, error) {
	if req.Title == "" {
		return nil, errors.New(errors.KindInvalidState, "story title is required")
	}
	if req.RepositoryPath == "" {
		return nil, errors.New(errors.KindInvalidState, "repository path is required")
	}

	st := story.New(req.Title, req.Description, req.RepositoryPath)
	st.IssueURL = req.IssueURL
	if req.AutomationMode != "" {
		if !story.IsValidAutomationMode(req.AutomationMode) {
			return nil, errors.New(errors.KindInvalidState, "invalid automation mode %q", req.AutomationMode)
		}
		st.AutomationMode = req.AutomationMode
	}
	if req.GateMode != "" {
		if !story.IsValidGateMode(req.GateMode) {
			return nil, errors.New(errors.KindInvalidState, "invalid gate mode %q", req.GateMode)
		}
		st.GateMode = req.GateMode
	}
	if req.DispatchTarget != "" {
		st.DispatchTarget = req.DispatchTarget
	} else if st.DispatchTarget == "" {
		st.DispatchTarget = executor.AgentCLIName
	}
	if req.MaxParallelism > 0 {
		st.MaxParallelism = req.MaxParallelism
	}

	if err := e.store.Create(ctx, st); err != nil {
		return nil, err
	}
	e.logger.Info("story created", "story_id", st.ID, "title", st.Title)
	return st, nil
}

// Get loads a story with its steps.
func (e *Engine) Get(ctx context.Context, id string) (*story.Story, error) {
	return e.store.GetWithSteps(ctx, id)
}

// List returns stories matching the filter, newest first.
func (e *Engine) List(ctx context.Context, f store.Filter) ([]*story.Story, error) {
	return e.store.List(ctx, f)
}

// Delete destroys the story's worktree (best effort) and removes it
// from the store.
func (e *Engine) Delete(ctx context.Context, id string) error {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return err
	}
	if st.WorktreePath != "" {
		if err := e.worktrees.Destroy(ctx, st); err != nil {
			e.logger.Warn("worktree cleanup failed", "story_id", id, "error", err)
		}
	}
	return e.store.Delete(ctx, id)
}

// Analyze runs analysis on a created story. Calling it on an analyzed
// or later story returns the current state unchanged.
func (e *Engine) Analyze(ctx context.Context, id string) (*story.Story, error) {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != story.StatusCreated {
		if len(st.AnalyzedContext) > 0 || st.Status.IsTerminal() {
			return st, nil
		}
		return nil, errors.InvalidState("analyze", id, string(st.Status))
	}

	if err := e.setStatus(ctx, st, story.StatusAnalyzing); err != nil {
		return nil, err
	}

	ac, err := e.analyzer.Analyze(ctx, st)
	if err != nil {
		return st, e.fail(ctx, st, err)
	}
	blob, err := ac.Marshal()
	if err != nil {
		return st, e.fail(ctx, st, err)
	}
	st.AnalyzedContext = blob
	if err := e.setStatus(ctx, st, story.StatusAnalyzed); err != nil {
		return nil, err
	}
	return st, nil
}

// Plan decomposes an analyzed story into wave-layered steps. Calling it
// on a planned or later story returns the current state unchanged.
func (e *Engine) Plan(ctx context.Context, id string) (*story.Story, error) {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != story.StatusAnalyzed {
		if len(st.Steps) > 0 || st.Status.IsTerminal() {
			return st, nil
		}
		return nil, errors.InvalidState("plan", id, string(st.Status))
	}

	ac, err := analyzer.Unmarshal(st.AnalyzedContext)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidState, err, "story %s has unreadable analysis", id)
	}

	if err := e.setStatus(ctx, st, story.StatusPlanning); err != nil {
		return nil, err
	}

	steps, plan, err := e.decomposer.Decompose(ctx, st, ac, decompose.Config{
		MaxParallelism: st.MaxParallelism,
	})
	if err != nil {
		return st, e.fail(ctx, st, err)
	}
	planBlob, err := plan.Marshal()
	if err != nil {
		return st, e.fail(ctx, st, err)
	}
	st.Steps = steps
	st.ExecutionPlan = planBlob
	if err := e.setStatus(ctx, st, story.StatusPlanned); err != nil {
		return nil, err
	}
	e.logger.Info("story planned",
		"story_id", id, "steps", len(steps), "waves", st.MaxWave())
	return st, nil
}

// Run advances the story: dispatch the current wave, evaluate its gate,
// and repeat while gates pass under auto_proceed. It stops at
// gate_pending when the gate mode is pause_always or the final wave has
// passed, at gate_failed on a failed gate, and in executing when steps
// await approval. Run on a terminal story is a no-op.
func (e *Engine) Run(ctx context.Context, id string) (*story.Story, error) {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status.IsTerminal() || st.Status == story.StatusGateFailed {
		return st, nil
	}

	switch st.Status {
	case story.StatusPlanned:
		if _, err := e.worktrees.Ensure(ctx, st); err != nil {
			// No worktree means nothing can execute; the story is dead
			// on arrival, not retryable from planned.
			return st, e.fail(ctx, st, err)
		}
		st.CurrentWave = 1
		if err := e.setStatus(ctx, st, story.StatusExecuting); err != nil {
			return nil, err
		}
	case story.StatusExecuting, story.StatusGatePending:
	default:
		return nil, errors.InvalidState("run", id, string(st.Status))
	}

	for {
		if st.Status == story.StatusExecuting {
			proceed, err := e.runWave(ctx, st)
			if err != nil || !proceed {
				return st, err
			}
		}

		// gate_pending: evaluate (or re-evaluate a stale result) and
		// decide whether to advance.
		proceed, err := e.applyGate(ctx, st)
		if err != nil || !proceed {
			return st, err
		}
	}
}

// runWave dispatches the current wave. Returns false when the run loop
// should stop: steps are awaiting approval, or the wave could not reach
// a terminal state.
func (e *Engine) runWave(ctx context.Context, st *story.Story) (bool, error) {
	outcome, err := e.dispatcher.Run(ctx, st, st.CurrentWave)
	if err != nil {
		return false, err
	}
	if len(outcome.AwaitingApproval) > 0 {
		e.logger.Info("wave awaiting approvals",
			"story_id", st.ID, "wave", st.CurrentWave,
			"steps", len(outcome.AwaitingApproval))
		return false, nil
	}
	if ctx.Err() != nil {
		return false, e.cancelLocked(ctx, st)
	}
	if !st.WaveTerminal(st.CurrentWave) {
		return false, errors.New(errors.KindInvalidState,
			"wave %d of story %s did not reach a terminal state", st.CurrentWave, st.ID)
	}
	if err := e.setStatus(ctx, st, story.StatusGatePending); err != nil {
		return false, err
	}
	return true, nil
}

// applyGate evaluates the gate for the current wave and routes the
// result. Returns true when the run loop should continue with the next
// wave.
func (e *Engine) applyGate(ctx context.Context, st *story.Story) (bool, error) {
	last, err := gate.Unmarshal(st.GateResult)
	if err != nil || last == nil || last.Wave != st.CurrentWave {
		last, err = e.evaluateGate(ctx, st)
		if err != nil {
			return false, err
		}
	}

	if !last.Passed() {
		if err := e.setStatus(ctx, st, story.StatusGateFailed); err != nil {
			return false, err
		}
		return false, nil
	}

	if st.CurrentWave >= st.MaxWave() {
		// Final wave passed; completion happens through Finalize.
		return false, nil
	}
	if st.GateMode == story.GatePauseAlways {
		return false, nil
	}

	st.CurrentWave++
	if err := e.setStatus(ctx, st, story.StatusExecuting); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) evaluateGate(ctx context.Context, st *story.Story) (*gate.Result, error) {
	result, err := e.gates.Evaluate(ctx, st, st.CurrentWave)
	if err != nil {
		return nil, err
	}
	blob, err := gate.Marshal(result)
	if err != nil {
		return nil, err
	}
	st.GateResult = blob
	if err := e.store.Update(ctx, st); err != nil {
		return nil, err
	}
	return result, nil
}

// ResumeGate advances a story paused at a passing gate to the next
// wave. The final wave resumes through Finalize instead.
func (e *Engine) ResumeGate(ctx context.Context, id string) (*story.Story, error) {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != story.StatusGatePending {
		return nil, errors.InvalidState("resume", id, string(st.Status))
	}
	result, err := gate.Unmarshal(st.GateResult)
	if err != nil || result == nil || !result.Passed() {
		return nil, errors.New(errors.KindInvalidState,
			"story %s has no passing gate to resume from", id)
	}
	if st.CurrentWave >= st.MaxWave() {
		return nil, errors.New(errors.KindInvalidState,
			"story %s has passed its final wave; finalize it instead", id)
	}

	st.CurrentWave++
	if err := e.setStatus(ctx, st, story.StatusExecuting); err != nil {
		return nil, err
	}
	return st, nil
}

// Approve records an approval decision on a step. Rejection leaves the
// step pending; the dispatcher marks it skipped on the next run.
func (e *Engine) Approve(ctx context.Context, storyID, stepID string, approved bool, feedback string) (*story.Step, error) {
	unlock := e.lock(storyID)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, storyID)
	if err != nil {
		return nil, err
	}
	var step *story.Step
	for _, s := range st.Steps {
		if s.ID == stepID {
			step = s
			break
		}
	}
	if step == nil {
		return nil, errors.NotFound("step", stepID)
	}
	if step.Status != story.StepPending {
		return nil, errors.InvalidState("approve", stepID, string(step.Status))
	}

	if approved {
		step.Approval = story.ApprovalApproved
	} else {
		step.Approval = story.ApprovalRejected
	}
	step.ApprovalFeedback = feedback
	if err := e.store.UpdateStep(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// Remediate re-opens the current wave after a failed gate: failed steps
// become pending again (attempts preserved) and the story returns to
// executing, same wave.
func (e *Engine) Remediate(ctx context.Context, id string) (*story.Story, error) {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != story.StatusGateFailed {
		return nil, errors.InvalidState("remediate", id, string(st.Status))
	}

	for _, step := range st.StepsInWave(st.CurrentWave) {
		if step.Status != story.StepFailed {
			continue
		}
		step.Status = story.StepPending
		step.NeedsRework = true
		if step.Output != "" {
			step.PreviousOutput = step.Output
		}
		step.StartedAt = nil
		step.CompletedAt = nil
		if err := e.store.UpdateStep(ctx, step); err != nil {
			return nil, err
		}
	}

	// The stale gate result must not short-circuit the next evaluation.
	st.GateResult = nil
	if err := e.setStatus(ctx, st, story.StatusExecuting); err != nil {
		return nil, err
	}
	return st, nil
}

// Cancel moves a non-terminal story to cancelled. In-flight work is
// expected to be cancelled through the caller's context.
func (e *Engine) Cancel(ctx context.Context, id string) (*story.Story, error) {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status.IsTerminal() {
		return st, nil
	}
	if err := e.cancelLocked(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Finalize completes a story whose final gate passed. The finalizer
// persists completion; a failure leaves the story retryable.
func (e *Engine) Finalize(ctx context.Context, id string, opts finalize.Options) (*story.Story, *finalize.Outcome, error) {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if st.Status != story.StatusGatePending {
		return nil, nil, errors.InvalidState("finalize", id, string(st.Status))
	}
	result, err := gate.Unmarshal(st.GateResult)
	if err != nil || result == nil || !result.Passed() {
		return nil, nil, errors.New(errors.KindFinalizeFailure,
			"story %s gate has not passed", id)
	}
	if st.CurrentWave < st.MaxWave() {
		return nil, nil, errors.New(errors.KindFinalizeFailure,
			"story %s has %d waves left to run", id, st.MaxWave()-st.CurrentWave)
	}

	outcome, err := e.finalizer.Finalize(ctx, st, opts)
	if err != nil {
		return st, nil, err
	}
	e.publishStatus(st)
	return st, outcome, nil
}

// lock acquires the story's mutex and returns the unlock func.
func (e *Engine) lock(id string) func() {
	l := e.locks.get(id)
	l.Lock()
	return l.Unlock
}

// setStatus transitions and persists, publishing the change.
func (e *Engine) setStatus(ctx context.Context, st *story.Story, to story.Status) error {
	if !story.CanTransition(st.Status, to) {
		return errors.InvalidState(fmt.Sprintf("transition to %s", to), st.ID, string(st.Status))
	}
	st.Status = to
	if err := e.store.Update(ctx, st); err != nil {
		return err
	}
	e.publishStatus(st)
	return nil
}

// fail records a fatal error on the story and returns the cause.
func (e *Engine) fail(ctx context.Context, st *story.Story, cause error) error {
	st.Status = story.StatusFailed
	if err := e.store.Update(ctx, st); err != nil {
		e.logger.Error("failed to persist failure",
			"story_id", st.ID, "error", err, "cause", cause)
	}
	e.publishStatus(st)
	return cause
}

func (e *Engine) cancelLocked(ctx context.Context, st *story.Story) error {
	st.Status = story.StatusCancelled
	// Persist with a fresh context so cancellation itself is recorded.
	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.WithoutCancel(ctx)
	}
	if err := e.store.Update(persistCtx, st); err != nil {
		return err
	}
	e.publishStatus(st)
	return nil
}

func (e *Engine) publishStatus(st *story.Story) {
	e.publisher.Publish(events.Event{
		Type:    events.TypeStoryStatus,
		StoryID: st.ID,
		Data:    map[string]any{"status": st.Status},
	})
}
