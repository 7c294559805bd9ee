// Package verify detects buildable projects under a directory and runs
// their verification steps.
package verify

import (
	"fmt"
	"log/slog"
	"time"
)

// ProjectType classifies a detected project.
type ProjectType string

const (
	ProjectDotnet ProjectType = "dotnet"
	ProjectNPM    ProjectType = "npm"
	ProjectCargo  ProjectType = "cargo"
	ProjectGo     ProjectType = "go"
	ProjectPython ProjectType = "python"
)

// StepType names what a verification step checks.
type StepType string

const (
	StepBuild  StepType = "build"
	StepFormat StepType = "format"
	StepLint   StepType = "lint"
	StepVet    StepType = "vet"
)

// Step is one runnable verification command.
type Step struct {
	Type     StepType      `json:"type"`
	Command  string        `json:"command"`
	Args     []string      `json:"args"`
	WorkDir  string        `json:"work_dir"`
	Required bool          `json:"required"`
	Timeout  time.Duration `json:"timeout"`
}

// Project is a detected project root with its verification steps.
type Project struct {
	Type  ProjectType `json:"type"`
	Name  string      `json:"name"`
	Path  string      `json:"path"`
	Steps []Step      `json:"steps"`
}

// StepResult records the outcome of one step. TimedOut marks a step that
// exhausted its own timeout; Cancelled marks one interrupted because the
// surrounding run was cancelled.
type StepResult struct {
	Step      Step   `json:"step"`
	ExitCode  int    `json:"exit_code"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	TimedOut  bool   `json:"timed_out"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Success   bool   `json:"success"`
	Required  bool   `json:"required"`
}

// Result aggregates a verification run. Success holds unless a required
// step failed.
type Result struct {
	Projects    []Project    `json:"projects"`
	StepResults []StepResult `json:"step_results"`
	Success     bool         `json:"success"`
}

// Summary returns a one-line human summary of the run.
func (r *Result) Summary() string {
	if len(r.StepResults) == 0 {
		return "No verification steps detected"
	}
	if r.Success {
		passed := 0
		for _, sr := range r.StepResults {
			if sr.Success {
				passed++
			}
		}
		return fmt.Sprintf("%d/%d steps passed", passed, len(r.StepResults))
	}
	failures := 0
	for _, sr := range r.StepResults {
		if sr.Required && !sr.Success {
			failures++
		}
	}
	return fmt.Sprintf("%d required failures", failures)
}

// DefaultStepTimeout applies when a step has no explicit timeout.
const DefaultStepTimeout = 10 * time.Minute

// Engine detects projects and runs their steps. Verification never touches
// story state; it reads the filesystem, spawns processes, and returns a
// value.
type Engine struct {
	stepTimeout time.Duration
	exclude     []string
	logger      *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithStepTimeout overrides the default per-step timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) { e.stepTimeout = d }
}

// WithExcludes appends glob patterns skipped during detection.
func WithExcludes(patterns ...string) Option {
	return func(e *Engine) { e.exclude = append(e.exclude, patterns...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a verification engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		stepTimeout: DefaultStepTimeout,
		exclude:     defaultExcludes(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
