package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func TestRegistry_UnknownProviderFallsBackToNull(t *testing.T) {
	r := NewRegistry(Credentials{AnthropicAPIKey: "key"}, testLogger())

	client := r.Create("unknown_backend", "whatever")
	require.NotNil(t, client)
	assert.Equal(t, "null", client.Name())
	assert.False(t, client.IsAvailable())

	resp, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, UnavailableMessage, resp.Dialogue)
	assert.Empty(t, resp.Actions)
}

func TestRegistry_MissingCredentialFallsBackToNull(t *testing.T) {
	r := NewRegistry(Credentials{}, testLogger())
	for _, provider := range []string{"anthropic", "openai", "gemini", "ollama"} {
		client := r.Create(provider, "")
		assert.Equal(t, "null", client.Name(), provider)
	}
}

func TestRegistry_CreateWithCredential(t *testing.T) {
	r := NewRegistry(Credentials{
		AnthropicAPIKey: "a",
		OpenAIAPIKey:    "o",
		GeminiAPIKey:    "g",
		OllamaBaseURL:   "http://localhost:11434",
	}, testLogger())

	tests := map[string]string{
		"anthropic": "anthropic",
		"openai":    "openai",
		"chatgpt":   "openai",
		"gemini":    "gemini",
		"google":    "gemini",
		"ollama":    "ollama",
		"Anthropic": "anthropic", // case-insensitive
	}
	for in, want := range tests {
		client := r.Create(in, "")
		assert.Equal(t, want, client.Name(), in)
		assert.True(t, client.IsAvailable(), in)
	}
}

func TestRegistry_EmptyProviderUsesDefault(t *testing.T) {
	r := NewRegistry(Credentials{
		OllamaBaseURL:   "http://localhost:11434",
		DefaultProvider: "ollama",
	}, testLogger())

	client := r.Create("", "")
	assert.Equal(t, "ollama", client.Name())
}

func TestResolveModel_Aliases(t *testing.T) {
	assert.Equal(t, "claude-3-5-sonnet-20241022", resolveModel("anthropic", "claude"))
	assert.Equal(t, "claude-3-5-sonnet-20241022", resolveModel("anthropic", ""))
	assert.Equal(t, "gpt-4o-mini", resolveModel("chatgpt", "gpt-mini"))
	assert.Equal(t, "gemini-2.0-flash", resolveModel("google", "gemini"))
	// Unrecognized names pass through untouched.
	assert.Equal(t, "claude-3-opus-20240229", resolveModel("anthropic", "claude-3-opus-20240229"))
	assert.Equal(t, "anything", resolveModel("not-a-provider", "anything"))
}
