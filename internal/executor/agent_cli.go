package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/johnazariah/aura-sub015/internal/errors"
)

// AgentCLIName is the default dispatch target.
const AgentCLIName = "agent-cli"

// AgentCLI spawns an external coding agent binary in the worktree, feeds
// it the prompt, and uses its exit code as success. The agent's stdout
// and stderr become the step's output and error.
type AgentCLI struct {
	// Path is the agent binary, e.g. "claude".
	Path string
	// ExtraArgs are appended to every invocation.
	ExtraArgs []string
	// Timeout bounds each execution; 0 means no deadline.
	Timeout time.Duration
}

// NewAgentCLI creates the out-of-process executor.
func NewAgentCLI(path string, extraArgs []string, timeout time.Duration) *AgentCLI {
	return &AgentCLI{Path: path, ExtraArgs: extraArgs, Timeout: timeout}
}

func (a *AgentCLI) Name() string { return AgentCLIName }

// Execute runs the agent. On cancellation or deadline the whole process
// group is killed so agent-spawned children do not outlive the step.
func (a *AgentCLI) Execute(ctx context.Context, req Request) (*Result, error) {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	prompt := req.Prompt
	if req.Context != "" {
		prompt = req.Context + "\n\n" + req.Prompt
	}

	args := append(append([]string{}, a.ExtraArgs...), "-p", prompt)
	cmd := exec.Command(a.Path, args...)
	cmd.Dir = req.WorkingDirectory
	setProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(errors.KindExecutorFailure, err,
			"start agent %s", a.Path)
	}
	sessionID := fmt.Sprintf("%s-%d", AgentCLIName, cmd.Process.Pid)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var runErr error
	select {
	case <-ctx.Done():
		_ = killProcessGroup(cmd.Process.Pid)
		_ = cmd.Process.Kill()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
		if ctx.Err() == context.Canceled {
			return nil, errors.Cancelled()
		}
		return &Result{
			Success:        false,
			Output:         stdout.String(),
			Error:          "agent execution deadline exceeded",
			AgentSessionID: sessionID,
		}, nil
	case runErr = <-done:
	}

	result := &Result{
		Success:        runErr == nil,
		Output:         stdout.String(),
		Error:          stderr.String(),
		AgentSessionID: sessionID,
	}
	if runErr != nil && result.Error == "" {
		result.Error = runErr.Error()
	}
	return result, nil
}
