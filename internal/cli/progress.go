// Package cli implements the aura command-line interface.
// This file renders engine events as live progress output.
package cli

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/johnazariah/aura-sub015/internal/events"
	"github.com/johnazariah/aura-sub015/internal/gate"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// watchProgress prints engine events for the story until the returned
// stop func is called. Silent under --quiet and --json.
func (a *app) watchProgress(st *story.Story) (stop func()) {
	if quiet || jsonOut {
		return func() {}
	}

	names := make(map[string]string, len(st.Steps))
	for _, step := range st.Steps {
		names[step.ID] = step.Name
	}

	ch := a.bus.Subscribe(st.ID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			printEvent(ev, names)
		}
	}()
	return func() {
		a.bus.Unsubscribe(st.ID, ch)
		<-done
	}
}

func printEvent(ev events.Event, names map[string]string) {
	name := names[ev.StepID]
	if name == "" && ev.StepID != "" {
		name = ev.StepID[:8]
	}
	data, _ := ev.Data.(map[string]any)

	switch ev.Type {
	case events.TypeWaveStarted:
		fmt.Printf("Wave %v: dispatching %v step(s)\n", data["wave"], data["steps"])
	case events.TypeStepStarted:
		fmt.Printf("  %s %s\n", color.CyanString("▶"), name)
	case events.TypeStepFinished:
		glyph := color.GreenString("✓")
		if s, ok := data["status"].(story.StepStatus); ok && s != story.StepCompleted {
			glyph = color.RedString("✗")
			if s == story.StepSkipped {
				glyph = color.New(color.Faint).Sprint("−")
			}
		}
		fmt.Printf("  %s %s\n", glyph, name)
	case events.TypeApprovalRequired:
		fmt.Printf("  %s %s awaits approval\n", color.YellowString("?"), name)
	case events.TypeGateEvaluated:
		outcome := "failed"
		if o, ok := data["outcome"].(gate.Outcome); ok && o == gate.OutcomePassed {
			outcome = "passed"
		}
		if outcome == "passed" {
			fmt.Printf("Gate %v: %s\n", data["wave"], color.GreenString("passed"))
		} else {
			fmt.Printf("Gate %v: %s (%v)\n", data["wave"], color.RedString("failed"), data["summary"])
		}
	}
}
