package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration for the given project directory.
//
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.aura/config.yaml) - optional
//  3. Project config (<projectDir>/.aura/config.yaml) - optional
//  4. Environment variables (AURA_*)
func Load(projectDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	def := Default()
	setDefaults(v, def)

	// User config is best-effort.
	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, AuraDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			v.SetConfigFile(userPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read user config %s: %w", userPath, err)
			}
		}
	}

	// Project config errors are fatal.
	projectPath := Path(projectDir)
	if _, err := os.Stat(projectPath); err == nil {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read project config %s: %w", projectPath, err)
		}
	}

	v.SetEnvPrefix("AURA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers defaults with viper so env-only overrides still see
// the full key space.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("version", def.Version)
	v.SetDefault("max_parallelism", def.MaxParallelism)
	v.SetDefault("gate_mode", string(def.GateMode))
	v.SetDefault("automation_mode", string(def.AutomationMode))
	v.SetDefault("store.dialect", def.Store.Dialect)
	v.SetDefault("store.dsn", def.Store.DSN)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.max_tokens", def.LLM.MaxTokens)
	v.SetDefault("executor.default", def.Executor.Default)
	v.SetDefault("executor.agent_path", def.Executor.AgentPath)
	v.SetDefault("executor.timeout", def.Executor.Timeout)
	v.SetDefault("verify.step_timeout", def.Verify.StepTimeout)
}
