package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pantheonmod/pantheon/pkg/prayer"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient implements ProviderClient for Anthropic Claude.
type AnthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopK        *int               `json:"top_k,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicClient(apiKey, model string, logger *slog.Logger) *AnthropicClient {
	return &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		// Per-call deadlines come from ctx; this is a hard upper bound.
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

func (a *AnthropicClient) Name() string { return "anthropic" }

func (a *AnthropicClient) IsAvailable() bool { return a.apiKey != "" }

// Generate calls the Anthropic messages API. Personality and context are
// packaged as the system prompt; the composed prayer prompt rides as the
// single user message.
func (a *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*prayer.AIResponse, error) {
	system := strings.TrimSpace(req.Personality + "\n\n" + req.Context)

	body := anthropicRequest{
		Model:     a.model,
		MaxTokens: req.Generation.MaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.Generation.Temperature > 0 {
		body.Temperature = &req.Generation.Temperature
	}
	if req.Generation.TopK > 0 {
		body.TopK = &req.Generation.TopK
	}
	if req.Generation.TopP > 0 {
		body.TopP = &req.Generation.TopP
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicBaseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("API error: %s", parsed.Error.Message)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	return &prayer.AIResponse{
		Success:  true,
		Dialogue: text.String(),
	}, nil
}
