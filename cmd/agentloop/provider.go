package main

import (
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/model/anthropic"
	"github.com/hupe1980/agentloop/model/echo"
	"github.com/hupe1980/agentloop/model/ollama"
	"github.com/hupe1980/agentloop/model/openai"
)

// newProvider builds the backend selected by c.Kind. Empty fields keep the
// backend's own defaults.
func newProvider(c config.ProviderConfig) (model.Provider, error) {
	switch c.Kind {
	case config.KindEcho:
		return echo.NewModel(), nil
	case config.KindOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if c.Model != "" {
				o.Model = c.Model
			}
			o.APIKey = c.APIKey
			o.BaseURL = c.BaseURL
			applySampling(c, &o.Temperature, &o.MaxCompletionTokens)
		}), nil
	case config.KindAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if c.Model != "" {
				o.Model = sdk.Model(c.Model)
			}
			o.APIKey = c.APIKey
			o.BaseURL = c.BaseURL
			applySampling(c, &o.Temperature, &o.MaxTokens)
		}), nil
	case config.KindOllama:
		return ollama.NewModel(func(o *ollama.Options) {
			if c.Model != "" {
				o.Model = c.Model
			}
			if c.BaseURL != "" {
				o.BaseURL = c.BaseURL
			}
			applySampling(c, &o.Temperature, &o.MaxTokens)
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", c.Kind)
	}
}

func applySampling(c config.ProviderConfig, temperature *float64, maxTokens *int64) {
	if c.Temperature > 0 {
		*temperature = c.Temperature
	}
	if c.MaxTokens > 0 {
		*maxTokens = c.MaxTokens
	}
}
