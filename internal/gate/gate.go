// Package gate classifies the verification outcome between waves.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/events"
	"github.com/johnazariah/aura-sub015/internal/story"
	"github.com/johnazariah/aura-sub015/internal/verify"
)

// Outcome is the gate classification for one wave.
type Outcome string

const (
	// OutcomePassed means every required verification step succeeded.
	OutcomePassed Outcome = "passed"
	// OutcomeFailed means a required step failed, or verification itself
	// could not run.
	OutcomeFailed Outcome = "failed"
)

// Failure names one failed required verification step.
type Failure struct {
	Project  string `json:"project"`
	Step     string `json:"step"`
	Command  string `json:"command"`
	ExitCode int    `json:"exitCode"`
	TimedOut bool   `json:"timedOut"`
	Output   string `json:"output"`
}

// Result is the persisted gate outcome. Unavailable distinguishes "the
// checks ran and failed" from "the checks could not run at all"; the
// latter never advances a story.
type Result struct {
	Outcome     Outcome   `json:"outcome"`
	Wave        int       `json:"wave"`
	Summary     string    `json:"summary"`
	Unavailable bool      `json:"unavailable,omitempty"`
	Failures    []Failure `json:"failures,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Passed reports whether the gate allows the story to advance.
func (r *Result) Passed() bool {
	return r.Outcome == OutcomePassed
}

// Verifier runs verification against a directory tree.
type Verifier interface {
	Run(ctx context.Context, root string) (*verify.Result, error)
}

// Controller evaluates gates by running verification in the story's
// worktree.
type Controller struct {
	verifier  Verifier
	publisher events.Publisher
	logger    *slog.Logger
}

// Option configures the Controller.
type Option func(*Controller)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a gate controller around a verifier.
func New(v Verifier, opts ...Option) *Controller {
	c := &Controller{
		verifier:  v,
		publisher: events.NewLogPublisher(nil),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate runs verification in the story's worktree and classifies the
// outcome for the given wave. A verifier error is a failed gate, not an
// evaluation error; only a missing worktree aborts evaluation.
func (c *Controller) Evaluate(ctx context.Context, st *story.Story, wave int) (*Result, error) {
	if st.WorktreePath == "" {
		return nil, errors.New(errors.KindWorktreeUnavailable,
			"story %s has no worktree to verify", st.ID)
	}

	result := &Result{Wave: wave, EvaluatedAt: time.Now().UTC()}

	vres, err := c.verifier.Run(ctx, st.WorktreePath)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Unavailable = true
		result.Summary = fmt.Sprintf("verification unavailable: %v", err)
		c.logger.Warn("gate verification unavailable",
			"story_id", st.ID, "wave", wave, "error", err)
	} else {
		result.Summary = vres.Summary()
		if vres.Success {
			result.Outcome = OutcomePassed
		} else {
			result.Outcome = OutcomeFailed
			result.Failures = collectFailures(vres)
		}
	}

	c.publisher.Publish(events.Event{
		Type:    events.TypeGateEvaluated,
		StoryID: st.ID,
		Data: map[string]any{
			"wave":    wave,
			"outcome": result.Outcome,
			"summary": result.Summary,
		},
	})
	c.logger.Info("gate evaluated",
		"story_id", st.ID, "wave", wave, "outcome", result.Outcome,
		"summary", result.Summary)
	return result, nil
}

// collectFailures extracts the failed required steps from a verification
// run, with stderr preferred as the step's output.
func collectFailures(vres *verify.Result) []Failure {
	var failures []Failure
	for _, sr := range vres.StepResults {
		if sr.Success || !sr.Required {
			continue
		}
		output := sr.Stderr
		if output == "" {
			output = sr.Stdout
		}
		failures = append(failures, Failure{
			Project:  sr.Step.WorkDir,
			Step:     string(sr.Step.Type),
			Command:  sr.Step.Command,
			ExitCode: sr.ExitCode,
			TimedOut: sr.TimedOut,
			Output:   output,
		})
	}
	return failures
}

// Marshal serializes a gate result for the story's gateResult column.
func Marshal(r *Result) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal gate result: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes a stored gate result. A nil or empty blob
// returns nil without error.
func Unmarshal(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal gate result: %w", err)
	}
	return &r, nil
}
