// Package decompose turns an analyzed story into an ordered, wave-layered
// execution plan.
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/johnazariah/aura-sub015/internal/analyzer"
	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/llm"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// WorkItem is one unit emitted by the model. DependsOn may only name
// earlier items, which also rules out cycles.
type WorkItem struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Capability           string   `json:"capability,omitempty"`
	Language             string   `json:"language,omitempty"`
	DependsOn            []string `json:"dependsOn,omitempty"`
	RequiresConfirmation bool     `json:"requiresConfirmation,omitempty"`
}

// Plan is the persisted execution plan blob on the story.
type Plan struct {
	Items []WorkItem `json:"items"`
}

// Config tunes a decomposition run.
type Config struct {
	MaxParallelism int
	IncludeTests   bool
}

const systemPrompt = `You split a development story into executable work
items. Respond with a single JSON object {"items": [...]} and nothing
else. Each item has: id (short unique string), title, description,
capability (e.g. "coding", "testing", "review"), language, dependsOn
(array of ids of EARLIER items only), requiresConfirmation (boolean, true
for risky changes such as schema migrations or deletions).`

// Decomposer performs the LLM decomposition with one re-request on an
// invalid response.
type Decomposer struct {
	client llm.Client
	logger *slog.Logger
}

// Option configures the Decomposer.
type Option func(*Decomposer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decomposer) { d.logger = l }
}

// New creates a decomposer over the given client.
func New(client llm.Client, opts ...Option) *Decomposer {
	d := &Decomposer{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose produces the story's steps: topologically ordered, wave
// numbers assigned by longest-path layering and capped at
// cfg.MaxParallelism. The returned plan is what was accepted from the
// model and is stored on the story for export.
func (d *Decomposer) Decompose(ctx context.Context, st *story.Story, ac *analyzer.Context, cfg Config) ([]*story.Step, *Plan, error) {
	prompt := buildPrompt(st, ac, cfg)

	items, err := d.request(ctx, prompt)
	if err == nil {
		err = Validate(items)
	}
	if err != nil {
		if !errors.IsKind(err, errors.KindLLMParse) {
			return nil, nil, err
		}
		// One corrective re-request, then give up.
		d.logger.Warn("decomposition invalid, re-requesting",
			"story_id", st.ID, "error", err)
		retryPrompt := prompt + fmt.Sprintf(
			"\n\nYour previous response was invalid: %v. Respond again with valid JSON.", err)
		items, err = d.request(ctx, retryPrompt)
		if err == nil {
			err = Validate(items)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	maxParallelism := cfg.MaxParallelism
	if maxParallelism < 1 {
		maxParallelism = st.MaxParallelism
	}
	if maxParallelism < 1 {
		maxParallelism = story.DefaultMaxParallelism
	}
	waves := CapWaves(items, maxParallelism)

	// Emission order is already topological since dependencies point
	// backwards; the 1-based order is the emission index.
	idToStep := make(map[string]*story.Step, len(items))
	steps := make([]*story.Step, 0, len(items))
	for i, item := range items {
		step := story.NewStep(st.ID, item.Title, item.Description, i+1, waves[item.ID])
		step.Capability = item.Capability
		step.Language = item.Language
		step.RequiresConfirmation = item.RequiresConfirmation
		for _, dep := range item.DependsOn {
			step.DependsOn = append(step.DependsOn, idToStep[dep].ID)
		}
		idToStep[item.ID] = step
		steps = append(steps, step)
	}
	return steps, &Plan{Items: items}, nil
}

func (d *Decomposer) request(ctx context.Context, prompt string) ([]WorkItem, error) {
	resp, err := d.client.Complete(ctx, llm.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, err
	}
	var plan Plan
	if err := llm.ParseJSON(resp.Text, &plan); err != nil {
		return nil, err
	}
	return plan.Items, nil
}

// Validate checks the closed rules on a decomposition: at least one item,
// unique non-empty ids, and dependsOn referencing earlier ids only.
func Validate(items []WorkItem) error {
	if len(items) == 0 {
		return errors.New(errors.KindLLMParse, "empty decomposition")
	}
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ID == "" {
			return errors.New(errors.KindLLMParse, "item %d has no id", i)
		}
		if seen[item.ID] {
			return errors.New(errors.KindLLMParse, "duplicate item id %q", item.ID)
		}
		if item.Title == "" {
			return errors.New(errors.KindLLMParse, "item %q has no title", item.ID)
		}
		for _, dep := range item.DependsOn {
			if !seen[dep] {
				return errors.New(errors.KindLLMParse,
					"item %q depends on %q which is not an earlier item", item.ID, dep)
			}
		}
		seen[item.ID] = true
	}
	return nil
}

// Marshal encodes the plan for storage on the story.
func (p *Plan) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return data, nil
}

// UnmarshalPlan decodes a stored plan blob.
func UnmarshalPlan(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

func buildPrompt(st *story.Story, ac *analyzer.Context, cfg Config) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Story: %s\n", st.Title)
	if st.Description != "" {
		fmt.Fprintf(&sb, "Description:\n%s\n", st.Description)
	}
	if ac != nil {
		fmt.Fprintf(&sb, "\nAnalysis summary: %s\n", ac.Summary)
		if len(ac.CoreRequirements) > 0 {
			sb.WriteString("Requirements:\n")
			for _, r := range ac.CoreRequirements {
				fmt.Fprintf(&sb, "- %s\n", r)
			}
		}
		if len(ac.TechnicalConstraints) > 0 {
			sb.WriteString("Constraints:\n")
			for _, c := range ac.TechnicalConstraints {
				fmt.Fprintf(&sb, "- %s\n", c)
			}
		}
		if len(ac.AffectedFiles) > 0 {
			sb.WriteString("Affected files:\n")
			for _, f := range ac.AffectedFiles {
				fmt.Fprintf(&sb, "- %s\n", f)
			}
		}
		if ac.SuggestedApproach != "" {
			fmt.Fprintf(&sb, "Suggested approach: %s\n", ac.SuggestedApproach)
		}
	}
	if cfg.IncludeTests {
		sb.WriteString("\nInclude dedicated testing work items.")
	} else {
		sb.WriteString("\nDo not emit separate testing work items.")
	}
	sb.WriteString("\nDecompose this story into work items.")
	return sb.String()
}
