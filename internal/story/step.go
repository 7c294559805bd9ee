package story

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus represents the current state of a step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// ValidStepStatuses returns all valid step status values.
func ValidStepStatuses() []StepStatus {
	return []StepStatus{StepPending, StepRunning, StepCompleted, StepFailed, StepSkipped}
}

// IsValidStepStatus returns true if s is a valid step status value.
func IsValidStepStatus(s StepStatus) bool {
	switch s {
	case StepPending, StepRunning, StepCompleted, StepFailed, StepSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses a step does not leave on its own.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// Approval is the human decision recorded on a step.
type Approval string

const (
	// ApprovalNone means no decision has been recorded.
	ApprovalNone Approval = ""
	// ApprovalApproved allows the step to be dispatched.
	ApprovalApproved Approval = "approved"
	// ApprovalRejected blocks the step from being dispatched.
	ApprovalRejected Approval = "rejected"
)

// Step is one scheduled unit of execution within a story. Steps are created
// only during decomposition; wave and order are immutable afterwards.
type Step struct {
	ID      string `yaml:"id" json:"id"`
	StoryID string `yaml:"story_id" json:"story_id"`

	// Order is the 1-based total order used for stable iteration.
	Order int `yaml:"order" json:"order"`

	// Wave is a positive integer; steps sharing a wave may run in parallel.
	Wave int `yaml:"wave" json:"wave"`

	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Capability classifies the work, e.g. "coding", "testing", "review".
	Capability string `yaml:"capability,omitempty" json:"capability,omitempty"`
	Language   string `yaml:"language,omitempty" json:"language,omitempty"`

	Status StepStatus `yaml:"status" json:"status"`

	Approval         Approval `yaml:"approval,omitempty" json:"approval,omitempty"`
	ApprovalFeedback string   `yaml:"approval_feedback,omitempty" json:"approval_feedback,omitempty"`

	// RequiresConfirmation marks steps that need approval under the
	// autonomous automation mode.
	RequiresConfirmation bool `yaml:"requires_confirmation,omitempty" json:"requires_confirmation,omitempty"`

	// DependsOn lists step ids this step declared dependencies on during
	// decomposition. Used for downstream invalidation; wave assignment
	// already encodes the ordering.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Input, Output, and Error are opaque blobs. Output is the
	// authoritative record of what the agent produced.
	Input  string `yaml:"input,omitempty" json:"input,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`

	// Attempts counts dispatches; incremented each time the step starts.
	Attempts int `yaml:"attempts" json:"attempts"`

	// AssignedAgentID identifies the executor session handling this step.
	// Set on dispatch, cleared on terminal status.
	AssignedAgentID string `yaml:"assigned_agent_id,omitempty" json:"assigned_agent_id,omitempty"`

	// ExecutorOverride overrides the story's dispatch target for this step.
	ExecutorOverride string `yaml:"executor_override,omitempty" json:"executor_override,omitempty"`

	// NeedsRework is set when a downstream rerun invalidates this step's
	// output; PreviousOutput preserves the superseded output. Neither
	// changes status on its own.
	NeedsRework    bool   `yaml:"needs_rework,omitempty" json:"needs_rework,omitempty"`
	PreviousOutput string `yaml:"previous_output,omitempty" json:"previous_output,omitempty"`

	StartedAt   *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`

	// Version is the optimistic-concurrency counter managed by the store.
	Version int64 `yaml:"-" json:"version"`
}

// NewStep creates a pending step owned by the given story.
func NewStep(storyID, name, description string, order, wave int) *Step {
	return &Step{
		ID:          uuid.NewString(),
		StoryID:     storyID,
		Name:        name,
		Description: description,
		Order:       order,
		Wave:        wave,
		Status:      StepPending,
	}
}

// RequiresApproval evaluates the approval policy for a step at dispatch
// time. Approval state never travels through step status.
func RequiresApproval(mode AutomationMode, step *Step) bool {
	switch mode {
	case AutomationAssisted:
		return true
	case AutomationAutonomous:
		return step.RequiresConfirmation
	case AutomationFull:
		return false
	default:
		// Unknown modes fall back to the safest policy.
		return true
	}
}

// ContiguousWaves checks invariant: if any step has wave k>1, some step has
// wave k-1. Returns true for an empty slice.
func ContiguousWaves(steps []*Step) bool {
	if len(steps) == 0 {
		return true
	}
	present := make(map[int]bool)
	maxWave := 0
	for _, s := range steps {
		if s.Wave < 1 {
			return false
		}
		present[s.Wave] = true
		if s.Wave > maxWave {
			maxWave = s.Wave
		}
	}
	for w := 1; w <= maxWave; w++ {
		if !present[w] {
			return false
		}
	}
	return true
}
