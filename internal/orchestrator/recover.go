package orchestrator

import (
	"context"

	"github.com/johnazariah/aura-sub015/internal/gate"
	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// Recover repairs stories left mid-flight by a crash. Called once at
// process startup, before any other operation:
//
//   - analyzing without a stored analysis rolls back to created;
//     with one, forward to analyzed
//   - planning without stored steps rolls back to analyzed
//   - executing: running steps become failed with error "interrupted",
//     the story moves to gate_pending with a freshly evaluated gate
//
// Status writes here bypass the transition guard deliberately; this is
// repair, not a transition.
func (e *Engine) Recover(ctx context.Context) error {
	for _, status := range []story.Status{
		story.StatusAnalyzing, story.StatusPlanning,
		story.StatusExecuting, story.StatusGatePending,
	} {
		stories, err := e.store.List(ctx, store.Filter{Status: status})
		if err != nil {
			return err
		}
		for _, s := range stories {
			if err := e.recoverStory(ctx, s.ID); err != nil {
				e.logger.Error("story recovery failed",
					"story_id", s.ID, "error", err)
			}
		}
	}
	return nil
}

func (e *Engine) recoverStory(ctx context.Context, id string) error {
	unlock := e.lock(id)
	defer unlock()

	st, err := e.store.GetWithSteps(ctx, id)
	if err != nil {
		return err
	}

	switch st.Status {
	case story.StatusAnalyzing:
		if len(st.AnalyzedContext) > 0 {
			st.Status = story.StatusAnalyzed
		} else {
			st.Status = story.StatusCreated
		}

	case story.StatusPlanning:
		if len(st.Steps) > 0 {
			st.Status = story.StatusPlanned
		} else {
			st.Status = story.StatusAnalyzed
		}

	case story.StatusExecuting:
		for _, step := range st.Steps {
			if step.Status != story.StepRunning {
				continue
			}
			step.Status = story.StepFailed
			step.Error = "interrupted"
			if err := e.store.UpdateStep(ctx, step); err != nil {
				return err
			}
		}
		st.Status = story.StatusGatePending
		st.GateResult = nil
		if err := e.store.Update(ctx, st); err != nil {
			return err
		}
		if _, err := e.evaluateGate(ctx, st); err != nil {
			e.logger.Warn("post-recovery gate evaluation failed",
				"story_id", st.ID, "error", err)
		}
		e.publishStatus(st)
		e.logger.Info("story recovered", "story_id", st.ID, "status", st.Status)
		return nil

	case story.StatusGatePending:
		// A persisted gate result for the current wave is still valid;
		// nothing to repair.
		if result, err := gate.Unmarshal(st.GateResult); err == nil &&
			result != nil && result.Wave == st.CurrentWave {
			return nil
		}
		if _, err := e.evaluateGate(ctx, st); err != nil {
			e.logger.Warn("post-recovery gate evaluation failed",
				"story_id", st.ID, "error", err)
		}
		return nil

	default:
		return nil
	}

	if err := e.store.Update(ctx, st); err != nil {
		return err
	}
	e.publishStatus(st)
	e.logger.Info("story recovered", "story_id", st.ID, "status", st.Status)
	return nil
}
