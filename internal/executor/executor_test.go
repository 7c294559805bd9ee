package executor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/llm"
)

type stubExecutor struct{ name string }

func (s *stubExecutor) Name() string { return s.name }
func (s *stubExecutor) Execute(context.Context, Request) (*Result, error) {
	return &Result{Success: true}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExecutor{name: "a"})
	r.Register(&stubExecutor{name: "b"})

	e, err := r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, "a", e.Name())

	_, err = r.Resolve("missing")
	assert.True(t, errors.IsKind(err, errors.KindExecutorFailure))

	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestAgentCLISuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	// sh -c 'echo ran' ignores the -p prompt args but exercises the flow.
	a := NewAgentCLI("sh", []string{"-c", "echo ran"}, time.Minute)

	res, err := a.Execute(context.Background(), Request{
		WorkingDirectory: t.TempDir(),
		Prompt:           "do the thing",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Output, "ran")
	assert.NotEmpty(t, res.AgentSessionID)
}

func TestAgentCLIFailureCapturesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	a := NewAgentCLI("sh", []string{"-c", "echo broke >&2; exit 2"}, time.Minute)

	res, err := a.Execute(context.Background(), Request{
		WorkingDirectory: t.TempDir(),
		Prompt:           "p",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "broke")
}

func TestAgentCLIDeadline(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	a := NewAgentCLI("sh", []string{"-c", "sleep 30"}, 100*time.Millisecond)

	start := time.Now()
	res, err := a.Execute(context.Background(), Request{
		WorkingDirectory: t.TempDir(),
		Prompt:           "p",
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "deadline")
}

func TestAgentCLICancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	a := NewAgentCLI("sh", []string{"-c", "sleep 30"}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := a.Execute(ctx, Request{WorkingDirectory: t.TempDir(), Prompt: "p"})
	assert.True(t, errors.IsKind(err, errors.KindCancelled))
}

func TestAgentCLIMissingBinary(t *testing.T) {
	a := NewAgentCLI("/definitely/not/a/binary", nil, time.Minute)

	_, err := a.Execute(context.Background(), Request{
		WorkingDirectory: t.TempDir(),
		Prompt:           "p",
	})
	assert.True(t, errors.IsKind(err, errors.KindExecutorFailure))
}

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) Complete(context.Context, llm.Request) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text}, nil
}

func TestLLMExecutor(t *testing.T) {
	e := NewLLM(&fakeLLM{text: "done: wrote handler"})

	res, err := e.Execute(context.Background(), Request{
		WorkingDirectory: "/wt",
		Prompt:           "write a handler",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "done: wrote handler", res.Output)
}

func TestLLMExecutorPropagatesTransportError(t *testing.T) {
	e := NewLLM(&fakeLLM{err: errors.New(errors.KindLLMUnavailable, "down")})

	_, err := e.Execute(context.Background(), Request{Prompt: "p"})
	assert.True(t, errors.IsKind(err, errors.KindLLMUnavailable))
}
