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

// OllamaClient implements ProviderClient for a self-hosted Ollama server.
// Availability means a base URL is configured; the server itself may
// still be down, which surfaces as an ordinary call error.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func NewOllamaClient(baseURL, model string, logger *slog.Logger) *OllamaClient {
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

func (o *OllamaClient) Name() string { return "ollama" }

func (o *OllamaClient) IsAvailable() bool { return o.baseURL != "" }

func (o *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*prayer.AIResponse, error) {
	system := strings.TrimSpace(req.Personality + "\n\n" + req.Context)

	body := ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		Stream: false,
		Options: map[string]any{
			"temperature": req.Generation.Temperature,
			"top_k":       req.Generation.TopK,
			"top_p":       req.Generation.TopP,
			"num_predict": req.Generation.MaxTokens,
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
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

	var parsed ollamaChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("API error: %s", parsed.Error)
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return &prayer.AIResponse{
		Success:  true,
		Dialogue: parsed.Message.Content,
	}, nil
}
