package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/fdg312/diet-hub/internal/config"
)

// GeminiProvider ходит в Gemini API через google.golang.org/genai.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	timeout     time.Duration
}

func NewGeminiProvider(ctx context.Context, cfg *config.Config) (*GeminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.GeminiBaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.GeminiBaseURL + "/"
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}

	return &GeminiProvider{
		client:      client,
		model:       cfg.GeminiModel,
		maxTokens:   int32(cfg.AIMaxOutputTokens),
		temperature: float32(cfg.AITemperature),
		timeout:     time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func (p *GeminiProvider) Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(systemPrompt(req), genai.RoleUser),
		genai.NewContentFromText(greetingAck, genai.RoleModel),
	}
	for _, msg := range req.Messages {
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}

	text, err := p.generate(ctx, contents, "")
	if err != nil {
		return ReplyResponse{}, err
	}
	return ReplyResponse{AssistantText: text}, nil
}

func (p *GeminiProvider) AnalyzeFood(ctx context.Context, description string) (FoodEstimate, error) {
	text, err := p.generate(ctx, []*genai.Content{
		genai.NewContentFromText(foodPrompt(description), genai.RoleUser),
	}, "application/json")
	if err != nil {
		return FoodEstimate{}, err
	}
	return parseFoodEstimate(text)
}

func (p *GeminiProvider) EstimateBasal(ctx context.Context, req BasalRequest) (BasalEstimate, error) {
	text, err := p.generate(ctx, []*genai.Content{
		genai.NewContentFromText(basalPrompt(req), genai.RoleUser),
	}, "application/json")
	if err != nil {
		return BasalEstimate{}, err
	}
	return parseBasalEstimate(text)
}

func (p *GeminiProvider) generate(ctx context.Context, contents []*genai.Content, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(p.temperature),
		MaxOutputTokens:  p.maxTokens,
		ResponseMIMEType: mimeType,
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini response is empty")
	}
	return text, nil
}
