package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/pantheonmod/pantheon/pkg/prayer"
)

// GeminiClient implements ProviderClient over the google genai SDK. The
// underlying SDK client is built lazily on first call so that the factory
// stays free of I/O.
type GeminiClient struct {
	apiKey string
	model  string
	logger *slog.Logger

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiClient(apiKey, model string, logger *slog.Logger) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, model: model, logger: logger}
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) IsAvailable() bool { return g.apiKey != "" }

func (g *GeminiClient) init(ctx context.Context) error {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return g.initErr
}

// safetySettings translates the deity's safety-category thresholds into
// the backend's native setting shape. Unknown categories or severities
// are skipped rather than guessed.
func safetySettings(safety map[string]string) []*genai.SafetySetting {
	categories := map[string]genai.HarmCategory{
		"harassment":        genai.HarmCategoryHarassment,
		"hate_speech":       genai.HarmCategoryHateSpeech,
		"sexually_explicit": genai.HarmCategorySexuallyExplicit,
		"dangerous_content": genai.HarmCategoryDangerousContent,
	}
	thresholds := map[string]genai.HarmBlockThreshold{
		"block_low":    genai.HarmBlockThresholdBlockLowAndAbove,
		"block_medium": genai.HarmBlockThresholdBlockMediumAndAbove,
		"block_high":   genai.HarmBlockThresholdBlockOnlyHigh,
		"block_none":   genai.HarmBlockThresholdBlockNone,
	}

	var out []*genai.SafetySetting
	for category, severity := range safety {
		cat, okCat := categories[strings.ToLower(category)]
		th, okTh := thresholds[strings.ToLower(severity)]
		if !okCat || !okTh {
			continue
		}
		out = append(out, &genai.SafetySetting{Category: cat, Threshold: th})
	}
	return out
}

// Generate calls the Gemini API. Personality and context ride as the
// system instruction; the composed prompt is the sole user content.
func (g *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*prayer.AIResponse, error) {
	if err := g.init(ctx); err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	temp := float32(req.Generation.Temperature)
	topP := float32(req.Generation.TopP)
	topK := float32(req.Generation.TopK)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: int32(req.Generation.MaxTokens),
		SystemInstruction: &genai.Content{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: strings.TrimSpace(req.Personality + "\n\n" + req.Context)},
			},
		},
		SafetySettings: safetySettings(req.Safety),
	}

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.Prompt}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return &prayer.AIResponse{
		Success:  true,
		Dialogue: text,
	}, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				sb.WriteString(p.Text)
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}
