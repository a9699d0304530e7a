package services

import (
	"log/slog"
	"strings"
)

// Credentials is everything the registry needs to construct provider
// clients. Presence of a key is checked here and in IsAvailable; validity
// is only discovered at call time.
type Credentials struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	OllamaBaseURL   string

	DefaultProvider string
	DefaultModel    string
}

// modelAliases maps short model names to backend-specific canonical
// identifiers. Aliasing lives entirely inside the factory; callers only
// ever see the short names they configured.
var modelAliases = map[string]map[string]string{
	"anthropic": {
		"":             "claude-3-5-sonnet-20241022",
		"claude":       "claude-3-5-sonnet-20241022",
		"claude-haiku": "claude-3-5-haiku-20241022",
	},
	"openai": {
		"":         "gpt-4o",
		"gpt":      "gpt-4o",
		"gpt-mini": "gpt-4o-mini",
	},
	"gemini": {
		"":             "gemini-2.0-flash",
		"gemini":       "gemini-2.0-flash",
		"gemini-flash": "gemini-2.0-flash",
	},
	"ollama": {
		"": "llama3.1",
	},
}

// Registry constructs provider clients from a named backend and model.
// Create is a pure factory: it never performs network I/O and never
// fails. Unknown names and missing credentials resolve to the null
// provider.
type Registry struct {
	creds  Credentials
	logger *slog.Logger
}

func NewRegistry(creds Credentials, logger *slog.Logger) *Registry {
	return &Registry{creds: creds, logger: logger}
}

// Create builds a client for the named backend. An empty provider name
// falls back to the configured default; an empty model name falls back to
// the backend's canonical default.
func (r *Registry) Create(providerName, modelName string) ProviderClient {
	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" {
		name = strings.ToLower(r.creds.DefaultProvider)
		if modelName == "" {
			modelName = r.creds.DefaultModel
		}
	}

	model := resolveModel(name, modelName)

	var client ProviderClient
	switch name {
	case "anthropic":
		client = NewAnthropicClient(r.creds.AnthropicAPIKey, model, r.logger)
	case "openai", "chatgpt":
		client = NewOpenAIClient(r.creds.OpenAIAPIKey, model, r.logger)
	case "gemini", "google":
		client = NewGeminiClient(r.creds.GeminiAPIKey, model, r.logger)
	case "ollama":
		client = NewOllamaClient(r.creds.OllamaBaseURL, model, r.logger)
	default:
		r.logger.Warn("unknown provider, falling back to null", "provider", providerName)
		return NewNullProvider()
	}

	if !client.IsAvailable() {
		r.logger.Warn("provider has no credential configured, falling back to null",
			"provider", name)
		return NewNullProvider()
	}
	return client
}

func resolveModel(provider, model string) string {
	aliases, ok := modelAliases[canonicalProvider(provider)]
	if !ok {
		return model
	}
	if canonical, ok := aliases[strings.ToLower(strings.TrimSpace(model))]; ok {
		return canonical
	}
	return model
}

func canonicalProvider(name string) string {
	switch name {
	case "chatgpt":
		return "openai"
	case "google":
		return "gemini"
	default:
		return name
	}
}
