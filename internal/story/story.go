// Package story defines the core data model for aura: the Story aggregate
// and the Steps it owns.
package story

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a story.
type Status string

const (
	StatusCreated     Status = "created"
	StatusAnalyzing   Status = "analyzing"
	StatusAnalyzed    Status = "analyzed"
	StatusPlanning    Status = "planning"
	StatusPlanned     Status = "planned"
	StatusExecuting   Status = "executing"
	StatusGatePending Status = "gate_pending"
	StatusGateFailed  Status = "gate_failed"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{
		StatusCreated, StatusAnalyzing, StatusAnalyzed, StatusPlanning,
		StatusPlanned, StatusExecuting, StatusGatePending, StatusGateFailed,
		StatusCompleted, StatusFailed, StatusCancelled,
	}
}

// IsValidStatus returns true if s is a valid status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusCreated, StatusAnalyzing, StatusAnalyzed, StatusPlanning,
		StatusPlanned, StatusExecuting, StatusGatePending, StatusGateFailed,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses no transition leaves.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// GateMode controls whether a passing gate advances automatically.
type GateMode string

const (
	// GateAutoProceed advances to the next wave when the gate passes.
	GateAutoProceed GateMode = "auto_proceed"
	// GatePauseAlways waits for an explicit resume after every passing gate.
	GatePauseAlways GateMode = "pause_always"
)

// IsValidGateMode returns true if m is a valid gate mode.
func IsValidGateMode(m GateMode) bool {
	return m == GateAutoProceed || m == GatePauseAlways
}

// AutomationMode controls whether per-step human approval is required
// before dispatch.
type AutomationMode string

const (
	// AutomationAssisted requires approval for every step.
	AutomationAssisted AutomationMode = "assisted"
	// AutomationAutonomous requires approval only for steps flagged
	// requires_confirmation.
	AutomationAutonomous AutomationMode = "autonomous"
	// AutomationFull never requires approval.
	AutomationFull AutomationMode = "full_autonomous"
)

// IsValidAutomationMode returns true if m is a valid automation mode.
func IsValidAutomationMode(m AutomationMode) bool {
	return m == AutomationAssisted || m == AutomationAutonomous || m == AutomationFull
}

// Story is a unit of development work: the aggregate root of the data model.
// A story exclusively owns its steps; deleting the story deletes them.
type Story struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// RepositoryPath is the absolute path of the source repository.
	// Empty for repository-less stories.
	RepositoryPath string `yaml:"repository_path,omitempty" json:"repository_path,omitempty"`

	Status Status `yaml:"status" json:"status"`

	// WorktreePath and GitBranch are set once a worktree exists and are
	// stable thereafter.
	WorktreePath string `yaml:"worktree_path,omitempty" json:"worktree_path,omitempty"`
	GitBranch    string `yaml:"git_branch,omitempty" json:"git_branch,omitempty"`

	// AnalyzedContext and ExecutionPlan are opaque JSON blobs owned by the
	// analyzer and decomposer respectively. The store round-trips them
	// without interpretation.
	AnalyzedContext []byte `yaml:"-" json:"analyzed_context,omitempty"`
	ExecutionPlan   []byte `yaml:"-" json:"execution_plan,omitempty"`

	// CurrentWave is 0 until the first wave is dispatched.
	CurrentWave int `yaml:"current_wave" json:"current_wave"`

	GateMode GateMode `yaml:"gate_mode" json:"gate_mode"`

	// GateResult holds the last gate outcome as opaque JSON owned by the
	// gate controller.
	GateResult []byte `yaml:"-" json:"gate_result,omitempty"`

	// MaxParallelism bounds concurrent steps per wave.
	MaxParallelism int `yaml:"max_parallelism" json:"max_parallelism"`

	// DispatchTarget names the executor registered with the dispatcher.
	DispatchTarget string `yaml:"dispatch_target,omitempty" json:"dispatch_target,omitempty"`

	AutomationMode AutomationMode `yaml:"automation_mode" json:"automation_mode"`

	// IssueURL links the story to an external tracker issue, if any.
	IssueURL string `yaml:"issue_url,omitempty" json:"issue_url,omitempty"`

	PullRequestURL string `yaml:"pull_request_url,omitempty" json:"pull_request_url,omitempty"`

	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`

	// Version is the optimistic-concurrency counter managed by the store.
	Version int64 `yaml:"-" json:"version"`

	// Steps is the owned step collection, ordered by Order ascending.
	// Populated only when loaded with steps.
	Steps []*Step `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// DefaultMaxParallelism is the per-wave concurrency bound when unset.
const DefaultMaxParallelism = 4

// New creates a story with the given title in status created.
func New(title, description, repositoryPath string) *Story {
	now := time.Now().UTC()
	return &Story{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    description,
		RepositoryPath: repositoryPath,
		Status:         StatusCreated,
		GateMode:       GateAutoProceed,
		AutomationMode: AutomationAutonomous,
		MaxParallelism: DefaultMaxParallelism,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ShortID returns the first 8 characters of the story id, used for branch
// and worktree naming.
func (s *Story) ShortID() string {
	id := strings.ReplaceAll(s.ID, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// IsTerminal returns true if the story is in a terminal state.
func (s *Story) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// MaxWave returns the highest wave number across the loaded steps,
// or 0 when no steps are loaded.
func (s *Story) MaxWave() int {
	maxWave := 0
	for _, st := range s.Steps {
		if st.Wave > maxWave {
			maxWave = st.Wave
		}
	}
	return maxWave
}

// StepsInWave returns the loaded steps assigned to the given wave,
// preserving order.
func (s *Story) StepsInWave(wave int) []*Step {
	var steps []*Step
	for _, st := range s.Steps {
		if st.Wave == wave {
			steps = append(steps, st)
		}
	}
	return steps
}

// WaveTerminal reports whether every step whose wave is <= the given wave
// has reached a terminal status.
func (s *Story) WaveTerminal(wave int) bool {
	for _, st := range s.Steps {
		if st.Wave <= wave && !st.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// transitions is the closed set of legal status transitions. Cancel and
// fatal-failure edges are handled separately since they apply from any
// non-terminal state.
var transitions = map[Status][]Status{
	StatusCreated:     {StatusAnalyzing},
	StatusAnalyzing:   {StatusAnalyzed, StatusFailed},
	StatusAnalyzed:    {StatusPlanning},
	StatusPlanning:    {StatusPlanned, StatusFailed},
	StatusPlanned:     {StatusExecuting},
	StatusExecuting:   {StatusGatePending},
	StatusGatePending: {StatusExecuting, StatusGateFailed, StatusCompleted, StatusGatePending},
	StatusGateFailed:  {StatusExecuting},
}

// CanTransition reports whether from -> to is a legal status transition.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled || to == StatusFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
