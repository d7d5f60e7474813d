// Package config loads the YAML configuration of the agentloop CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/memory"
)

// Provider kinds understood by the CLI.
const (
	KindEcho      = "echo"
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindOllama    = "ollama"
)

// Config is the top-level configuration file.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Agent    AgentConfig    `yaml:"agent"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ProviderConfig selects and parameterizes the model backend.
type ProviderConfig struct {
	Kind        string  `yaml:"kind"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// AgentConfig mirrors agent.Config.
type AgentConfig struct {
	MaxSteps           int    `yaml:"max_steps"`
	AllowParallelTools bool   `yaml:"allow_parallel_tools"`
	SystemPrompt       string `yaml:"system_prompt"`
	MaxMessages        int    `yaml:"max_messages"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// MetricsConfig exposes Prometheus metrics over HTTP when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given: the offline
// echo provider with warn level text logs.
func Default() Config {
	return Config{
		Provider: ProviderConfig{Kind: KindEcho, Temperature: 0.7, MaxTokens: 4096},
		Agent: AgentConfig{
			MaxSteps:           agent.DefaultMaxSteps,
			AllowParallelTools: true,
			MaxMessages:        memory.DefaultMaxMessages,
		},
		Logging: LoggingConfig{Level: "warn", Format: "text"},
	}
}

// Load reads a YAML file on top of Default. Environment variables referenced
// as ${VAR} or $VAR are expanded before parsing so secrets can live in the
// environment.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	switch c.Provider.Kind {
	case KindEcho, KindOpenAI, KindAnthropic, KindOllama:
	case "":
		return fmt.Errorf("config: provider kind is required")
	default:
		return fmt.Errorf("config: unknown provider kind %q", c.Provider.Kind)
	}

	if c.Agent.MaxSteps < 0 {
		return fmt.Errorf("config: agent: max_steps must not be negative")
	}
	if c.Agent.MaxMessages < 0 {
		return fmt.Errorf("config: agent: max_messages must not be negative")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging: %w", err)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: logging: unknown format %q", c.Logging.Format)
	}

	return nil
}

// AgentConfig converts the agent section for agent.New.
func (c Config) AgentConfig() agent.Config {
	return agent.Config{
		ModelName:          c.Provider.Model,
		MaxSteps:           c.Agent.MaxSteps,
		AllowParallelTools: c.Agent.AllowParallelTools,
		SystemPrompt:       c.Agent.SystemPrompt,
		MaxMessages:        c.Agent.MaxMessages,
	}
}

// Logger builds the logger described by the logging section.
func (c Config) Logger() (*logging.AgentLogger, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("config: logging: %w", err)
	}
	return logging.NewSlogLogger(level, c.Logging.Format, false).WithComponent("agentloop"), nil
}
