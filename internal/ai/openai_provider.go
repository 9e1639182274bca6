package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fdg312/diet-hub/internal/config"
)

const openAIChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

type OpenAIProvider struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	endpoint    string
	httpClient  *http.Client
}

func NewOpenAIProvider(cfg *config.Config) *OpenAIProvider {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}

	return &OpenAIProvider{
		apiKey:      cfg.OpenAIAPIKey,
		model:       cfg.OpenAIModel,
		maxTokens:   cfg.AIMaxOutputTokens,
		temperature: cfg.AITemperature,
		endpoint:    openAIChatCompletionsURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (p *OpenAIProvider) Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error) {
	content, err := p.complete(ctx, p.buildMessages(req), false)
	if err != nil {
		return ReplyResponse{}, err
	}
	return ReplyResponse{AssistantText: content}, nil
}

func (p *OpenAIProvider) AnalyzeFood(ctx context.Context, description string) (FoodEstimate, error) {
	content, err := p.complete(ctx, []chatMessageRequest{
		{Role: "user", Content: foodPrompt(description)},
	}, true)
	if err != nil {
		return FoodEstimate{}, err
	}
	return parseFoodEstimate(content)
}

func (p *OpenAIProvider) EstimateBasal(ctx context.Context, req BasalRequest) (BasalEstimate, error) {
	content, err := p.complete(ctx, []chatMessageRequest{
		{Role: "user", Content: basalPrompt(req)},
	}, true)
	if err != nil {
		return BasalEstimate{}, err
	}
	return parseBasalEstimate(content)
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []chatMessageRequest, jsonMode bool) (string, error) {
	requestPayload := chatCompletionsRequest{
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Messages:    messages,
	}
	if jsonMode {
		requestPayload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(requestPayload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai request failed with status %d", resp.StatusCode)
	}

	var parsed chatCompletionsResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response does not contain choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) buildMessages(req ReplyRequest) []chatMessageRequest {
	messages := make([]chatMessageRequest, 0, len(req.Messages)+1)
	messages = append(messages, chatMessageRequest{
		Role:    "system",
		Content: systemPrompt(req),
	})
	for _, msg := range req.Messages {
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			continue
		}
		messages = append(messages, chatMessageRequest{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}

type chatCompletionsRequest struct {
	Model          string               `json:"model"`
	Messages       []chatMessageRequest `json:"messages"`
	Temperature    float64              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
