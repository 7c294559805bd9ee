// Package executor runs individual steps through pluggable agents.
package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/johnazariah/aura-sub015/internal/errors"
)

// Request is everything an executor needs to run one step.
type Request struct {
	// WorkingDirectory is the story's worktree.
	WorkingDirectory string
	// Prompt is the step instruction.
	Prompt string
	// Context carries upstream step outputs and analysis excerpts.
	Context string
}

// Result is the executor outcome. A false Success with no transport error
// means the agent ran and failed; the dispatcher records Error on the step.
type Result struct {
	Success        bool
	Output         string
	Error          string
	AgentSessionID string
}

// Executor runs one request to completion, honoring ctx cancellation.
type Executor interface {
	Name() string
	Execute(ctx context.Context, req Request) (*Result, error)
}

// Registry maps dispatch target names to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor under its name, replacing any previous one.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Name()] = e
}

// Resolve returns the executor for the given dispatch target.
func (r *Registry) Resolve(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	if !ok {
		return nil, errors.New(errors.KindExecutorFailure,
			"no executor registered for dispatch target %q", name)
	}
	return e, nil
}

// Names returns the registered dispatch targets, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
