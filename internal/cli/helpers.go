// Package cli implements the aura command-line interface.
// This file contains shared helper functions used across multiple commands.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// resolveStory loads a story by full id or unambiguous id prefix.
func resolveStory(ctx context.Context, a *app, ref string) (*story.Story, error) {
	st, err := a.engine.Get(ctx, ref)
	if err == nil {
		return st, nil
	}
	if !errors.IsKind(err, errors.KindNotFound) {
		return nil, err
	}

	all, err := a.engine.List(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	var matches []*story.Story
	for _, s := range all {
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("story %s not found", ref)
	case 1:
		return a.engine.Get(ctx, matches[0].ID)
	default:
		return nil, fmt.Errorf("story ref %s is ambiguous (%d matches)", ref, len(matches))
	}
}

func statusColor(s story.Status) *color.Color {
	switch s {
	case story.StatusCompleted:
		return color.New(color.FgGreen)
	case story.StatusFailed, story.StatusGateFailed:
		return color.New(color.FgRed)
	case story.StatusExecuting, story.StatusAnalyzing, story.StatusPlanning:
		return color.New(color.FgCyan)
	case story.StatusGatePending:
		return color.New(color.FgYellow)
	case story.StatusCancelled:
		return color.New(color.Faint)
	default:
		return color.New()
	}
}

func stepGlyph(s story.StepStatus) string {
	switch s {
	case story.StepCompleted:
		return color.GreenString("✓")
	case story.StepFailed:
		return color.RedString("✗")
	case story.StepRunning:
		return color.CyanString("▶")
	case story.StepSkipped:
		return color.New(color.Faint).Sprint("−")
	default:
		return "·"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
