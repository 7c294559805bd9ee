package executor

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnazariah/aura-sub015/internal/llm"
)

// LLMName is the in-process dispatch target.
const LLMName = "llm"

// LLM is the in-process cooperative executor: one completion per step,
// with the step output being the model's reply. It cannot touch the
// filesystem; it suits planning and review capability steps.
type LLM struct {
	client llm.Client
}

// NewLLM creates the in-process executor.
func NewLLM(client llm.Client) *LLM {
	return &LLM{client: client}
}

func (e *LLM) Name() string { return LLMName }

const llmSystemPrompt = `You are an autonomous software agent executing one
step of a development plan inside the repository at the given path. Do the
work described and report exactly what you produced.`

// Execute performs the completion. Transport failures surface as errors;
// the dispatcher maps them to step failures.
func (e *LLM) Execute(ctx context.Context, req Request) (*Result, error) {
	prompt := req.Prompt
	if req.Context != "" {
		prompt = req.Context + "\n\n" + req.Prompt
	}
	resp, err := e.client.Complete(ctx, llm.Request{
		System: llmSystemPrompt,
		Prompt: "Repository: " + req.WorkingDirectory + "\n\n" + prompt,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Success:        true,
		Output:         resp.Text,
		AgentSessionID: LLMName + "-" + uuid.NewString()[:8],
	}, nil
}
