// Package cli implements the aura command-line interface.
// This file wires the configured components into an engine.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/johnazariah/aura-sub015/internal/analyzer"
	"github.com/johnazariah/aura-sub015/internal/codeindex"
	"github.com/johnazariah/aura-sub015/internal/config"
	"github.com/johnazariah/aura-sub015/internal/decompose"
	"github.com/johnazariah/aura-sub015/internal/dispatch"
	"github.com/johnazariah/aura-sub015/internal/events"
	"github.com/johnazariah/aura-sub015/internal/executor"
	"github.com/johnazariah/aura-sub015/internal/finalize"
	"github.com/johnazariah/aura-sub015/internal/gate"
	"github.com/johnazariah/aura-sub015/internal/hosting"
	_ "github.com/johnazariah/aura-sub015/internal/hosting/github"
	_ "github.com/johnazariah/aura-sub015/internal/hosting/gitlab"
	"github.com/johnazariah/aura-sub015/internal/llm"
	"github.com/johnazariah/aura-sub015/internal/orchestrator"
	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/verify"
	"github.com/johnazariah/aura-sub015/internal/worktree"
)

// app bundles the engine with everything a command needs to tear down.
type app struct {
	cfg    *config.Config
	store  store.Store
	engine *orchestrator.Engine
	bus    *events.MemoryPublisher
}

func (a *app) Close() error {
	a.bus.Close()
	return a.store.Close()
}

// openApp builds the engine from the loaded configuration and repairs any
// stories a previous process left mid-flight.
func openApp(ctx context.Context) (*app, error) {
	if err := requireInit(); err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dsn := cfg.Store.DSN
	if dsn == "" && cfg.Store.Dialect == "sqlite" {
		dsn = filepath.Join(config.AuraDir, "aura.db")
	}
	st, err := store.Open(ctx, cfg.Store.Dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	client := llm.NewAnthropic(cfg.LLM.Model, llm.WithMaxTokens(cfg.LLM.MaxTokens))

	registry := executor.NewRegistry()
	registry.Register(executor.NewAgentCLI(cfg.Executor.AgentPath, cfg.Executor.AgentArgs, cfg.Executor.Timeout))
	registry.Register(executor.NewLLM(client))

	verifier := verify.NewEngine(
		verify.WithStepTimeout(cfg.Verify.StepTimeout),
		verify.WithExcludes(cfg.Verify.Exclude...),
	)

	hostingCfg := hosting.Config{
		Provider: cfg.Hosting.Provider,
		BaseURL:  cfg.Hosting.BaseURL,
		Token:    cfg.Hosting.Token,
	}

	bus := events.NewMemoryPublisher()

	engine := orchestrator.New(orchestrator.Components{
		Store:      st,
		Worktrees:  worktree.NewManager(st),
		Analyzer:   analyzer.New(client, analyzer.WithIndex(codeindex.NewGrepIndex())),
		Decomposer: decompose.New(client),
		Dispatcher: dispatch.New(st, registry, dispatch.WithPublisher(bus)),
		Gates:      gate.New(verifier, gate.WithPublisher(bus)),
		Finalizer:  finalize.New(st, hostingCfg),
	}, orchestrator.WithPublisher(bus))

	if err := engine.Recover(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("recover stories: %w", err)
	}
	return &app{cfg: cfg, store: st, engine: engine, bus: bus}, nil
}

func logLevel() slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// requireInit checks that aura has been initialized in the current directory.
func requireInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if !config.IsInitialized(cwd) {
		return fmt.Errorf("aura is not initialized here; run 'aura init' first")
	}
	return nil
}
