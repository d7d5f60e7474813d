package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("AGENTLOOP_TEST_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "agentloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider:
  kind: openai
  model: gpt-4o-mini
  api_key: ${AGENTLOOP_TEST_KEY}
agent:
  max_steps: 3
  system_prompt: be brief
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, KindOpenAI, cfg.Provider.Kind)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	// unset keys keep their defaults
	assert.True(t, cfg.Agent.AllowParallelTools)
	assert.Equal(t, 200, cfg.Agent.MaxMessages)
	assert.InDelta(t, 0.7, cfg.Provider.Temperature, 0.0001)

	ac := cfg.AgentConfig()
	assert.Equal(t, "gpt-4o-mini", ac.ModelName)
	assert.Equal(t, "be brief", ac.SystemPrompt)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("provider: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "missing kind", mutate: func(c *Config) { c.Provider.Kind = "" }, wantErr: "kind is required"},
		{name: "unknown kind", mutate: func(c *Config) { c.Provider.Kind = "gemini" }, wantErr: "unknown provider kind"},
		{name: "negative steps", mutate: func(c *Config) { c.Agent.MaxSteps = -1 }, wantErr: "max_steps"},
		{name: "negative messages", mutate: func(c *Config) { c.Agent.MaxMessages = -1 }, wantErr: "max_messages"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "unknown format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	l, err := cfg.Logger()
	require.NoError(t, err)
	assert.NotNil(t, l)

	cfg.Logging.Level = "loud"
	_, err = cfg.Logger()
	assert.Error(t, err)
}
