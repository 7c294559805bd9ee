package dispatch

import (
	"fmt"
	"strings"

	"github.com/johnazariah/aura-sub015/internal/story"
)

// Task is the dispatch-time projection of a step: everything an executor
// needs, denormalized from the story. Tasks are never persisted.
type Task struct {
	StoryID    string
	StepID     string
	Executor   string
	WorkDir    string
	Prompt     string
	Context    string
	Capability string
	Language   string
}

// buildTask projects a step onto a Task. The execution context names the
// story and step and folds in the outputs of completed dependencies so
// the agent sees what upstream steps produced.
func buildTask(st *story.Story, step *story.Step) Task {
	target := step.ExecutorOverride
	if target == "" {
		target = st.DispatchTarget
	}

	var ctx strings.Builder
	fmt.Fprintf(&ctx, "Story %s, step %s (%s).\n", st.ID, step.ID, step.Name)
	if step.Capability != "" {
		fmt.Fprintf(&ctx, "Capability: %s\n", step.Capability)
	}
	if step.Language != "" {
		fmt.Fprintf(&ctx, "Language: %s\n", step.Language)
	}
	if step.NeedsRework && step.PreviousOutput != "" {
		fmt.Fprintf(&ctx, "\nThis step is being redone; its previous result was:\n%s\n",
			step.PreviousOutput)
	}

	byID := make(map[string]*story.Step, len(st.Steps))
	for _, s := range st.Steps {
		byID[s.ID] = s
	}
	for _, depID := range step.DependsOn {
		dep, ok := byID[depID]
		if !ok || dep.Status != story.StepCompleted || dep.Output == "" {
			continue
		}
		fmt.Fprintf(&ctx, "\nOutput of dependency %q:\n%s\n", dep.Name, dep.Output)
	}

	prompt := step.Description
	if prompt == "" {
		prompt = step.Name
	}

	return Task{
		StoryID:    st.ID,
		StepID:     step.ID,
		Executor:   target,
		WorkDir:    st.WorktreePath,
		Prompt:     prompt,
		Context:    ctx.String(),
		Capability: step.Capability,
		Language:   step.Language,
	}
}
