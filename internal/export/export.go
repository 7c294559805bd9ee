// Package export renders story artifacts as markdown files. Output is
// deterministic for a given story state so repeated exports are
// idempotent.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/johnazariah/aura-sub015/internal/analyzer"
	"github.com/johnazariah/aura-sub015/internal/gate"
	"github.com/johnazariah/aura-sub015/internal/git"
	"github.com/johnazariah/aura-sub015/internal/story"
	"github.com/johnazariah/aura-sub015/internal/util"
)

// Artifact names an exportable document.
type Artifact string

const (
	// ArtifactResearch is the analyzed context as research.md.
	ArtifactResearch Artifact = "research"
	// ArtifactPlan is the wave/step table as plan.md.
	ArtifactPlan Artifact = "plan"
	// ArtifactChanges is per-step outputs plus a diffstat as changes.md.
	ArtifactChanges Artifact = "changes"
)

// AllArtifacts is the default include set.
var AllArtifacts = []Artifact{ArtifactResearch, ArtifactPlan, ArtifactChanges}

// Exported names one written file.
type Exported struct {
	Type Artifact `json:"type"`
	Path string   `json:"path"`
}

// Result lists what was written and what was skipped.
type Result struct {
	Exported []Exported `json:"exported"`
	Warnings []string   `json:"warnings,omitempty"`
}

// Exporter writes story artifacts.
type Exporter struct {
	runner git.CommandRunner
	logger *slog.Logger
}

// Option configures the Exporter.
type Option func(*Exporter)

// WithRunner sets the git command runner used for the diffstat.
func WithRunner(r git.CommandRunner) Option {
	return func(e *Exporter) { e.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// New creates an exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		runner: git.NewExecRunner(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes the requested artifacts under outputDir, defaulting to
// .aura/export/<shortID> inside the repository. Artifacts whose source
// data is missing are skipped with a warning rather than failing the
// whole export.
func (e *Exporter) Export(ctx context.Context, st *story.Story, outputDir string, include []Artifact) (*Result, error) {
	if outputDir == "" {
		outputDir = filepath.Join(st.RepositoryPath, ".aura", "export", st.ShortID())
	}
	if len(include) == 0 {
		include = AllArtifacts
	}

	result := &Result{}
	for _, artifact := range include {
		var (
			content string
			warning string
			err     error
		)
		switch artifact {
		case ArtifactResearch:
			content, warning = e.research(st)
		case ArtifactPlan:
			content, warning = e.plan(st)
		case ArtifactChanges:
			content, warning = e.changes(ctx, st)
		default:
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown artifact %q", artifact))
			continue
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
			continue
		}

		path := filepath.Join(outputDir, string(artifact)+".md")
		if err = util.AtomicWriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		result.Exported = append(result.Exported, Exported{Type: artifact, Path: path})
	}

	e.logger.Info("artifacts exported",
		"story_id", st.ID, "count", len(result.Exported), "dir", outputDir)
	return result, nil
}

func (e *Exporter) research(st *story.Story) (string, string) {
	if len(st.AnalyzedContext) == 0 {
		return "", "no analysis to export; run analyze first"
	}
	ac, err := analyzer.Unmarshal(st.AnalyzedContext)
	if err != nil {
		return "", fmt.Sprintf("analysis unreadable: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Research: %s\n\n", st.Title)
	fmt.Fprintf(&b, "%s\n", ac.Summary)
	writeList(&b, "Core requirements", ac.CoreRequirements)
	writeList(&b, "Technical constraints", ac.TechnicalConstraints)
	if len(ac.AffectedFiles) > 0 {
		b.WriteString("\n## Affected files\n\n")
		for _, f := range ac.AffectedFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}
	if ac.SuggestedApproach != "" {
		fmt.Fprintf(&b, "\n## Suggested approach\n\n%s\n", ac.SuggestedApproach)
	}
	return b.String(), ""
}

func (e *Exporter) plan(st *story.Story) (string, string) {
	if len(st.Steps) == 0 {
		return "", "no plan to export; run plan first"
	}

	byWave := make(map[int][]*story.Step)
	for _, step := range st.Steps {
		byWave[step.Wave] = append(byWave[step.Wave], step)
	}
	var waves []int
	for w := range byWave {
		waves = append(waves, w)
	}
	sort.Ints(waves)

	byID := make(map[string]*story.Step, len(st.Steps))
	for _, step := range st.Steps {
		byID[step.ID] = step
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Plan: %s\n\n", st.Title)
	fmt.Fprintf(&b, "%d steps across %d waves, max parallelism %d.\n",
		len(st.Steps), len(waves), st.MaxParallelism)

	for _, w := range waves {
		steps := byWave[w]
		sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

		fmt.Fprintf(&b, "\n## Wave %d\n\n", w)
		b.WriteString("| # | Step | Status | Depends on |\n")
		b.WriteString("|---|------|--------|------------|\n")
		for _, step := range steps {
			var deps []string
			for _, depID := range step.DependsOn {
				if dep, ok := byID[depID]; ok {
					deps = append(deps, dep.Name)
				}
			}
			depText := strings.Join(deps, ", ")
			if depText == "" {
				depText = "-"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
				step.Order, step.Name, step.Status, depText)
		}
	}
	return b.String(), ""
}

func (e *Exporter) changes(ctx context.Context, st *story.Story) (string, string) {
	var executed []*story.Step
	for _, step := range st.Steps {
		if step.Status == story.StepCompleted || step.Status == story.StepFailed {
			executed = append(executed, step)
		}
	}
	if len(executed) == 0 {
		return "", "no executed steps to export; run the story first"
	}
	sort.Slice(executed, func(i, j int) bool {
		if executed[i].Wave != executed[j].Wave {
			return executed[i].Wave < executed[j].Wave
		}
		return executed[i].Order < executed[j].Order
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Changes: %s\n", st.Title)

	if stat := e.diffstat(ctx, st); stat != "" {
		fmt.Fprintf(&b, "\n## Diffstat\n\n```\n%s\n```\n", stat)
	}

	if gr, err := gate.Unmarshal(st.GateResult); err == nil && gr != nil {
		fmt.Fprintf(&b, "\n## Last gate\n\nWave %d: %s (%s)\n", gr.Wave, gr.Outcome, gr.Summary)
	}

	for _, step := range executed {
		fmt.Fprintf(&b, "\n## Wave %d / step %d: %s (%s)\n\n", step.Wave, step.Order, step.Name, step.Status)
		if step.Output != "" {
			fmt.Fprintf(&b, "%s\n", step.Output)
		}
		if step.Error != "" {
			fmt.Fprintf(&b, "\nError: %s\n", step.Error)
		}
	}
	return b.String(), ""
}

// diffstat summarizes the worktree's changes against the default
// branch. Best effort; an empty string means no stat was available.
func (e *Exporter) diffstat(ctx context.Context, st *story.Story) string {
	if st.WorktreePath == "" {
		return ""
	}
	repo, err := git.NewContext(ctx, st.RepositoryPath, git.WithRunner(e.runner))
	if err != nil {
		return ""
	}
	wt := repo.InWorktree(st.WorktreePath)
	defaultBranch, err := repo.DefaultBranch(ctx)
	if err != nil {
		return ""
	}
	base, err := wt.MergeBase(ctx, defaultBranch, "HEAD")
	if err != nil {
		return ""
	}
	stat, err := wt.RunGit(ctx, "diff", "--stat", base, "HEAD")
	if err != nil {
		e.logger.Warn("diffstat failed", "story_id", st.ID, "error", err)
		return ""
	}
	return strings.TrimSpace(stat)
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
