// Package analyzer turns a story description into structured analysis
// using the model provider.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/johnazariah/aura-sub015/internal/codeindex"
	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/llm"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// Context is the analyzer's structured output. It is stored on the story
// as opaque JSON; only the decomposer reads it back.
type Context struct {
	Summary              string   `json:"summary"`
	CoreRequirements     []string `json:"coreRequirements"`
	TechnicalConstraints []string `json:"technicalConstraints"`
	AffectedFiles        []string `json:"affectedFiles"`
	SuggestedApproach    string   `json:"suggestedApproach"`
}

// retrievalLimit caps code-index hits folded into the prompt.
const retrievalLimit = 8

const systemPrompt = `You are a senior engineer analyzing a development
story before implementation. Respond with a single JSON object and nothing
else, using exactly these keys: summary (string), coreRequirements (array
of strings), technicalConstraints (array of strings), affectedFiles (array
of repository-relative paths), suggestedApproach (string).`

// Analyzer composes the analysis prompt and performs one LLM call.
// It never retries; an unusable response fails the story.
type Analyzer struct {
	client llm.Client
	index  codeindex.Index
	logger *slog.Logger
}

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithIndex attaches a code index for retrieval. Analysis proceeds
// without retrieval when the index is nil or a search fails.
func WithIndex(idx codeindex.Index) Option {
	return func(a *Analyzer) { a.index = idx }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// New creates an analyzer over the given client.
func New(client llm.Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze performs the single analysis call for the story.
func (a *Analyzer) Analyze(ctx context.Context, st *story.Story) (*Context, error) {
	prompt := a.buildPrompt(ctx, st)

	resp, err := a.client.Complete(ctx, llm.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, err
	}

	var result Context
	if err := llm.ParseJSON(resp.Text, &result); err != nil {
		return nil, err
	}
	if result.Summary == "" {
		return nil, errors.New(errors.KindLLMParse, "analysis missing summary")
	}
	return &result, nil
}

// Marshal encodes the analysis for storage on the story.
func (c *Context) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a stored analysis blob.
func Unmarshal(data []byte) (*Context, error) {
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &c, nil
}

func (a *Analyzer) buildPrompt(ctx context.Context, st *story.Story) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", st.Title)
	if st.Description != "" {
		fmt.Fprintf(&sb, "Description:\n%s\n", st.Description)
	}
	if st.RepositoryPath != "" {
		fmt.Fprintf(&sb, "Repository: %s\n", st.RepositoryPath)
	}

	if a.index != nil && st.RepositoryPath != "" {
		query := st.Title
		if st.Description != "" {
			query += " " + st.Description
		}
		hits, err := a.index.Search(ctx, st.RepositoryPath, query, retrievalLimit)
		if err != nil {
			a.logger.Warn("code index search failed, analyzing without retrieval",
				"story_id", st.ID, "error", err)
		} else if len(hits) > 0 {
			sb.WriteString("\nPossibly relevant files:\n")
			for _, h := range hits {
				fmt.Fprintf(&sb, "- %s: %s\n", h.Path, h.Snippet)
			}
		}
	}

	sb.WriteString("\nAnalyze this story.")
	return sb.String()
}
