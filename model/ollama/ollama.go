// Package ollama provides a model.Provider for a local Ollama server. Ollama
// exposes an OpenAI-compatible API under /v1, so the provider reuses the
// openai adapter pointed at that endpoint.
package ollama

import (
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentloop/model/openai"
)

// DefaultBaseURL is the OpenAI-compatible endpoint of a default Ollama install.
const DefaultBaseURL = "http://localhost:11434/v1"

// Options configure the Ollama provider.
type Options struct {
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
	// ClientOptions are appended to the SDK client options.
	ClientOptions []option.RequestOption
}

// NewModel creates a provider for the given Ollama model (e.g. "llama3.1").
func NewModel(optFns ...func(o *Options)) *openai.Model {
	opts := Options{
		Model:       "llama3.1",
		BaseURL:     DefaultBaseURL,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return openai.NewModel(func(o *openai.Options) {
		o.Model = opts.Model
		o.BaseURL = opts.BaseURL
		// Ollama ignores the key, but the SDK requires one to be set.
		o.APIKey = "ollama"
		o.Temperature = opts.Temperature
		o.MaxCompletionTokens = opts.MaxTokens
		o.ProviderName = "ollama"
		o.ClientOptions = opts.ClientOptions
	})
}
