package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	s := New("Add a README", "write docs", "/tmp/repo")

	require.NotEmpty(t, s.ID)
	assert.Equal(t, StatusCreated, s.Status)
	assert.Equal(t, GateAutoProceed, s.GateMode)
	assert.Equal(t, AutomationAutonomous, s.AutomationMode)
	assert.Equal(t, DefaultMaxParallelism, s.MaxParallelism)
	assert.Equal(t, 0, s.CurrentWave)
	assert.Len(t, s.ShortID(), 8)
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range ValidStatuses() {
		assert.True(t, IsValidStatus(s), "expected %q valid", s)
	}
	assert.False(t, IsValidStatus("paused"))
	assert.False(t, IsValidStatus(""))
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusExecuting.IsTerminal())
	assert.False(t, StatusGateFailed.IsTerminal())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"created to analyzing", StatusCreated, StatusAnalyzing, true},
		{"analyzing to analyzed", StatusAnalyzing, StatusAnalyzed, true},
		{"planned to executing", StatusPlanned, StatusExecuting, true},
		{"executing always gates first", StatusExecuting, StatusCompleted, false},
		{"gate pending to executing", StatusGatePending, StatusExecuting, true},
		{"gate pending to completed", StatusGatePending, StatusCompleted, true},
		{"gate failed remediate", StatusGateFailed, StatusExecuting, true},
		{"any to cancelled", StatusExecuting, StatusCancelled, true},
		{"any to failed", StatusAnalyzing, StatusFailed, true},
		{"terminal is final", StatusCompleted, StatusExecuting, false},
		{"cancelled is final", StatusCancelled, StatusFailed, false},
		{"skip planning", StatusCreated, StatusPlanned, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRequiresApproval(t *testing.T) {
	plain := &Step{Name: "implement"}
	flagged := &Step{Name: "migrate db", RequiresConfirmation: true}

	assert.True(t, RequiresApproval(AutomationAssisted, plain))
	assert.True(t, RequiresApproval(AutomationAssisted, flagged))
	assert.False(t, RequiresApproval(AutomationAutonomous, plain))
	assert.True(t, RequiresApproval(AutomationAutonomous, flagged))
	assert.False(t, RequiresApproval(AutomationFull, plain))
	assert.False(t, RequiresApproval(AutomationFull, flagged))
	assert.True(t, RequiresApproval(AutomationMode("bogus"), plain))
}

func TestContiguousWaves(t *testing.T) {
	mk := func(waves ...int) []*Step {
		steps := make([]*Step, len(waves))
		for i, w := range waves {
			steps[i] = &Step{Wave: w}
		}
		return steps
	}

	assert.True(t, ContiguousWaves(nil))
	assert.True(t, ContiguousWaves(mk(1)))
	assert.True(t, ContiguousWaves(mk(1, 1, 2, 3)))
	assert.False(t, ContiguousWaves(mk(1, 3)))
	assert.False(t, ContiguousWaves(mk(2)))
	assert.False(t, ContiguousWaves(mk(0, 1)))
}

func TestWaveHelpers(t *testing.T) {
	s := New("two waves", "", "/tmp/r")
	s.Steps = []*Step{
		{Wave: 1, Status: StepCompleted},
		{Wave: 1, Status: StepFailed},
		{Wave: 2, Status: StepPending},
	}

	assert.Equal(t, 2, s.MaxWave())
	assert.Len(t, s.StepsInWave(1), 2)
	assert.True(t, s.WaveTerminal(1))
	assert.False(t, s.WaveTerminal(2))
}
