// Package config provides configuration management for aura.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/johnazariah/aura-sub015/internal/story"
)

const (
	// AuraDir is the aura configuration directory.
	AuraDir = ".aura"
	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	// Dialect is "sqlite" (default) or "postgres".
	Dialect string `yaml:"dialect" mapstructure:"dialect"`
	// DSN is the database path (sqlite) or connection string (postgres).
	// Empty means .aura/aura.db for sqlite.
	DSN string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	// Model is the model identifier passed to the provider.
	Model string `yaml:"model" mapstructure:"model"`
	// MaxTokens bounds each completion.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ExecutorConfig configures agent execution.
type ExecutorConfig struct {
	// Default is the dispatch target used when the story does not name one.
	Default string `yaml:"default" mapstructure:"default"`
	// AgentPath is the agent CLI binary for the out-of-process executor.
	AgentPath string `yaml:"agent_path" mapstructure:"agent_path"`
	// AgentArgs are extra arguments appended to every agent invocation.
	AgentArgs []string `yaml:"agent_args,omitempty" mapstructure:"agent_args"`
	// Timeout is the per-execution deadline; 0 means unlimited.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// VerifyConfig configures the verification engine.
type VerifyConfig struct {
	// StepTimeout is the default per-step timeout.
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
	// Exclude lists additional glob patterns skipped during detection.
	Exclude []string `yaml:"exclude,omitempty" mapstructure:"exclude"`
}

// HostingConfig configures the git hosting provider used for PR creation.
type HostingConfig struct {
	// Provider is "github", "gitlab", or "" for detection from the remote.
	Provider string `yaml:"provider,omitempty" mapstructure:"provider"`
	// BaseURL overrides the API endpoint for self-hosted instances.
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	// Token overrides the environment token lookup.
	Token string `yaml:"token,omitempty" mapstructure:"token"`
}

// JiraConfig configures read-only issue fetching.
type JiraConfig struct {
	SiteURL  string `yaml:"site_url,omitempty" mapstructure:"site_url"`
	Email    string `yaml:"email,omitempty" mapstructure:"email"`
	APIToken string `yaml:"api_token,omitempty" mapstructure:"api_token"`
}

// Config represents the aura configuration.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// MaxParallelism is the default per-wave concurrency bound for new
	// stories.
	MaxParallelism int `yaml:"max_parallelism" mapstructure:"max_parallelism"`

	// GateMode is the default gate mode for new stories.
	GateMode story.GateMode `yaml:"gate_mode" mapstructure:"gate_mode"`

	// AutomationMode is the default automation mode for new stories.
	AutomationMode story.AutomationMode `yaml:"automation_mode" mapstructure:"automation_mode"`

	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Executor ExecutorConfig `yaml:"executor" mapstructure:"executor"`
	Verify   VerifyConfig   `yaml:"verify" mapstructure:"verify"`
	Hosting  HostingConfig  `yaml:"hosting" mapstructure:"hosting"`
	Jira     JiraConfig     `yaml:"jira" mapstructure:"jira"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version:        1,
		MaxParallelism: story.DefaultMaxParallelism,
		GateMode:       story.GateAutoProceed,
		AutomationMode: story.AutomationAutonomous,
		Store: StoreConfig{
			Dialect: "sqlite",
		},
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 8192,
		},
		Executor: ExecutorConfig{
			Default:   "agent-cli",
			AgentPath: "claude",
			Timeout:   30 * time.Minute,
		},
		Verify: VerifyConfig{
			StepTimeout: 10 * time.Minute,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.MaxParallelism < 1 {
		return fmt.Errorf("max_parallelism must be positive, got %d", c.MaxParallelism)
	}
	if !story.IsValidGateMode(c.GateMode) {
		return fmt.Errorf("invalid gate_mode %q", c.GateMode)
	}
	if !story.IsValidAutomationMode(c.AutomationMode) {
		return fmt.Errorf("invalid automation_mode %q", c.AutomationMode)
	}
	switch c.Store.Dialect {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid store dialect %q", c.Store.Dialect)
	}
	return nil
}

// Path returns the config file path under the given project directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, AuraDir, ConfigFileName)
}

// Save writes the configuration to .aura/config.yaml under projectDir.
func (c *Config) Save(projectDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := Path(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// IsInitialized returns true if .aura exists under projectDir.
func IsInitialized(projectDir string) bool {
	info, err := os.Stat(filepath.Join(projectDir, AuraDir))
	return err == nil && info.IsDir()
}
