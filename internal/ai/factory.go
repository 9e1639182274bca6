package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/fdg312/diet-hub/internal/config"
)

const (
	ModeMock   = config.AIModeMock
	ModeOpenAI = config.AIModeOpenAI
	ModeGemini = config.AIModeGemini
)

// NewProvider выбирает реализацию по AI_MODE. Неизвестный режим — mock.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.AIMode))
	if mode == "" {
		mode = ModeMock
	}

	switch mode {
	case ModeOpenAI:
		return NewOpenAIProvider(cfg), nil
	case ModeGemini:
		provider, err := NewGeminiProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		return provider, nil
	default:
		return NewMockProvider(), nil
	}
}
