package verify

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Run detects projects under root and executes every step. The returned
// error covers engine-level failures only; individual step failures are
// recorded in the result.
func (e *Engine) Run(ctx context.Context, root string) (*Result, error) {
	projects, err := e.Detect(root)
	if err != nil {
		return nil, err
	}
	return e.RunProjects(ctx, projects)
}

// RunProjects executes the steps of already detected projects.
func (e *Engine) RunProjects(ctx context.Context, projects []Project) (*Result, error) {
	result := &Result{Projects: projects, Success: true}

	for _, p := range projects {
		for _, s := range p.Steps {
			sr := e.runStep(ctx, s)
			result.StepResults = append(result.StepResults, sr)
			if sr.Required && !sr.Success {
				result.Success = false
			}
			e.logger.Debug("verification step finished",
				"project", p.Name, "step", s.Type,
				"success", sr.Success, "timed_out", sr.TimedOut)
		}
	}
	return result, nil
}

// runStep spawns the step command, waits up to the step timeout, and on
// expiry kills the whole process tree.
func (e *Engine) runStep(ctx context.Context, s Step) StepResult {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = e.stepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(s.Command, s.Args...)
	cmd.Dir = s.WorkDir
	setProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := StepResult{Step: s, Required: s.Required}

	if err := cmd.Start(); err != nil {
		result.ExitCode = -1
		result.Stderr = err.Error()
		return result
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	reaped := true
	select {
	case <-stepCtx.Done():
		_ = killProcessGroup(cmd.Process.Pid)
		_ = cmd.Process.Kill()
		// Reap the child so Wait's goroutine finishes.
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			reaped = false
		}
		if ctx.Err() != nil {
			result.Cancelled = true
		} else {
			result.TimedOut = true
		}
		result.ExitCode = -1
	case err := <-done:
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else if err != nil {
			result.ExitCode = -1
			if result.Stderr == "" {
				result.Stderr = err.Error()
			}
		}
	}

	// An unreaped child can still write into the buffers; leave them
	// empty rather than race with its Wait goroutine.
	if reaped {
		result.Stdout = stdout.String()
		if result.Stderr == "" {
			result.Stderr = stderr.String()
		}
	}
	result.Success = result.ExitCode == 0 && !result.TimedOut && !result.Cancelled
	return result
}
