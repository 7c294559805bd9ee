// Package dispatch runs the steps of a wave through registered executors.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/events"
	"github.com/johnazariah/aura-sub015/internal/executor"
	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// WaveOutcome summarizes one dispatched wave.
type WaveOutcome struct {
	Started          []string `json:"started"`
	Completed        []string `json:"completed"`
	Failed           []string `json:"failed"`
	Skipped          []string `json:"skipped"`
	AwaitingApproval []string `json:"awaiting_approval"`
}

// Dispatcher executes waves. Step updates are written through the store
// on start and on terminal status so a crash mid-wave leaves a
// recoverable state.
type Dispatcher struct {
	store     store.Store
	registry  *executor.Registry
	publisher events.Publisher
	logger    *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher.
func New(st store.Store, registry *executor.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     st,
		registry:  registry,
		publisher: events.NewLogPublisher(nil),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run dispatches every pending step of the given wave. Steps needing an
// approval that has not been granted are left pending and reported in
// AwaitingApproval; rejected steps are marked skipped. In-flight steps
// share a cancellation root: cancelling ctx records them as failed with
// error "cancelled". Intra-wave concurrency is bounded by the story's
// maxParallelism.
func (d *Dispatcher) Run(ctx context.Context, st *story.Story, wave int) (*WaveOutcome, error) {
	outcome := &WaveOutcome{}
	var mu sync.Mutex

	var runnable []*story.Step
	for _, step := range st.StepsInWave(wave) {
		if step.Status != story.StepPending {
			continue
		}
		if story.RequiresApproval(st.AutomationMode, step) && step.Approval != story.ApprovalApproved {
			if step.Approval == story.ApprovalRejected {
				if err := d.markSkipped(ctx, step); err != nil {
					return nil, err
				}
				outcome.Skipped = append(outcome.Skipped, step.ID)
				continue
			}
			outcome.AwaitingApproval = append(outcome.AwaitingApproval, step.ID)
			d.publisher.Publish(events.Event{
				Type:    events.TypeApprovalRequired,
				StoryID: st.ID,
				StepID:  step.ID,
			})
			continue
		}
		runnable = append(runnable, step)
	}

	d.publisher.Publish(events.Event{
		Type:    events.TypeWaveStarted,
		StoryID: st.ID,
		Data:    map[string]any{"wave": wave, "steps": len(runnable)},
	})

	limit := st.MaxParallelism
	if limit < 1 {
		limit = story.DefaultMaxParallelism
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, step := range runnable {
		mu.Lock()
		outcome.Started = append(outcome.Started, step.ID)
		mu.Unlock()

		g.Go(func() error {
			terminal, err := d.runStep(gctx, st, step)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			switch terminal {
			case story.StepCompleted:
				outcome.Completed = append(outcome.Completed, step.ID)
			case story.StepFailed:
				outcome.Failed = append(outcome.Failed, step.ID)
			}
			return nil
		})
	}

	err := g.Wait()

	d.publisher.Publish(events.Event{
		Type:    events.TypeWaveFinished,
		StoryID: st.ID,
		Data: map[string]any{
			"wave":      wave,
			"completed": len(outcome.Completed),
			"failed":    len(outcome.Failed),
		},
	})
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// runStep drives one step from pending to a terminal status, persisting
// on start and on completion. The returned error reports persistence
// problems only; executor failures land on the step itself.
func (d *Dispatcher) runStep(ctx context.Context, st *story.Story, step *story.Step) (story.StepStatus, error) {
	target := step.ExecutorOverride
	if target == "" {
		target = st.DispatchTarget
	}
	exec, err := d.registry.Resolve(target)
	if err != nil {
		return d.finishStep(ctx, st, step, story.StepFailed, "", err.Error())
	}

	rerun := step.Attempts > 0

	now := time.Now().UTC()
	step.Status = story.StepRunning
	step.StartedAt = &now
	step.CompletedAt = nil
	step.Attempts++
	step.AssignedAgentID = fmt.Sprintf("%s-%s-%d", exec.Name(), step.ID[:8], step.Attempts)
	if err := d.store.UpdateStep(ctx, step); err != nil {
		return "", fmt.Errorf("persist step start: %w", err)
	}
	d.publisher.Publish(events.Event{
		Type:    events.TypeStepStarted,
		StoryID: st.ID,
		StepID:  step.ID,
	})

	task := buildTask(st, step)
	result, execErr := exec.Execute(ctx, executor.Request{
		WorkingDirectory: task.WorkDir,
		Prompt:           task.Prompt,
		Context:          task.Context,
	})

	var terminal story.StepStatus
	switch {
	case execErr != nil && (errors.IsKind(execErr, errors.KindCancelled) || ctx.Err() != nil):
		terminal, err = d.finishStep(ctx, st, step, story.StepFailed, "", "cancelled")
	case execErr != nil:
		terminal, err = d.finishStep(ctx, st, step, story.StepFailed, "", execErr.Error())
	case result.Success:
		terminal, err = d.finishStep(ctx, st, step, story.StepCompleted, result.Output, "")
	default:
		terminal, err = d.finishStep(ctx, st, step, story.StepFailed, result.Output, result.Error)
	}
	if err != nil {
		return "", err
	}
	if result != nil && result.AgentSessionID != "" {
		d.logger.Debug("executor session",
			"story_id", st.ID, "step_id", step.ID, "session_id", result.AgentSessionID)
	}

	if terminal == story.StepCompleted && rerun {
		if err := d.invalidateDownstream(ctx, st, step); err != nil {
			return "", err
		}
	}
	return terminal, nil
}

// finishStep records a terminal status. Persistence here uses a
// background-derived context so a cancelled wave still records its
// "cancelled" steps.
func (d *Dispatcher) finishStep(ctx context.Context, st *story.Story, step *story.Step, status story.StepStatus, output, errText string) (story.StepStatus, error) {
	now := time.Now().UTC()
	step.Status = status
	step.Output = output
	step.Error = errText
	step.CompletedAt = &now
	step.AssignedAgentID = ""
	if status == story.StepCompleted {
		step.Error = ""
		step.NeedsRework = false
	}

	persistCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := d.store.UpdateStep(persistCtx, step); err != nil {
		return "", fmt.Errorf("persist step finish: %w", err)
	}
	d.publisher.Publish(events.Event{
		Type:    events.TypeStepFinished,
		StoryID: st.ID,
		StepID:  step.ID,
		Data:    map[string]any{"status": status},
	})
	d.logger.Info("step finished",
		"story_id", st.ID, "step_id", step.ID, "status", status)
	return status, nil
}

// markSkipped records a rejected step as skipped.
func (d *Dispatcher) markSkipped(ctx context.Context, step *story.Step) error {
	now := time.Now().UTC()
	step.Status = story.StepSkipped
	step.CompletedAt = &now
	if err := d.store.UpdateStep(ctx, step); err != nil {
		return fmt.Errorf("persist skipped step: %w", err)
	}
	return nil
}

// invalidateDownstream flags every pending step transitively dependent on
// the re-executed step: needsRework is set and the superseded output
// preserved. Status and attempts are untouched.
func (d *Dispatcher) invalidateDownstream(ctx context.Context, st *story.Story, reran *story.Step) error {
	dependents := make(map[string]bool)
	dependents[reran.ID] = true

	// Steps are ordered, and dependencies always point backwards, so one
	// forward pass closes the transitive set.
	for _, step := range st.Steps {
		for _, dep := range step.DependsOn {
			if dependents[dep] {
				dependents[step.ID] = true
				break
			}
		}
	}

	for _, step := range st.Steps {
		if step.ID == reran.ID || !dependents[step.ID] {
			continue
		}
		if step.Status != story.StepPending || step.NeedsRework {
			continue
		}
		step.NeedsRework = true
		if step.Output != "" {
			step.PreviousOutput = step.Output
		}
		if err := d.store.UpdateStep(ctx, step); err != nil {
			return fmt.Errorf("persist rework flag: %w", err)
		}
	}
	return nil
}
