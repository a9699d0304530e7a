package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/pantheonmod/pantheon/pkg/prayer"
)

// OpenAIClient implements ProviderClient over the official OpenAI SDK.
type OpenAIClient struct {
	apiKey string
	model  string
	client openai.Client
	logger *slog.Logger
}

func NewOpenAIClient(apiKey, model string, logger *slog.Logger) *OpenAIClient {
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}
}

func (o *OpenAIClient) Name() string { return "openai" }

func (o *OpenAIClient) IsAvailable() bool { return o.apiKey != "" }

// Generate calls the chat completions API. OpenAI has no separate system
// slot per part, so personality and context are joined into one system
// message.
func (o *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*prayer.AIResponse, error) {
	system := strings.TrimSpace(req.Personality + "\n\n" + req.Context)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(req.Prompt),
		},
	}
	if req.Generation.Temperature > 0 {
		params.Temperature = openai.Float(req.Generation.Temperature)
	}
	if req.Generation.TopP > 0 {
		params.TopP = openai.Float(req.Generation.TopP)
	}
	if req.Generation.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Generation.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return &prayer.AIResponse{
		Success:  true,
		Dialogue: content,
	}, nil
}
