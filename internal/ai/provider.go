package ai

import (
	"context"
	"time"

	"github.com/fdg312/diet-hub/internal/storage"
)

// Provider — внешняя LLM: чат, оценка блюда, расчёт базового обмена.
type Provider interface {
	Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error)
	AnalyzeFood(ctx context.Context, description string) (FoodEstimate, error)
	EstimateBasal(ctx context.Context, req BasalRequest) (BasalEstimate, error)
}

type ChatMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// ProfileSnapshot — то, что ассистент знает о пользователе.
type ProfileSnapshot struct {
	WeightKg       float64
	GoalType       string
	TargetCalories int
}

// DaySnapshot — потреблено за день и цели.
type DaySnapshot struct {
	Date     string
	Consumed storage.Macros
	Goals    storage.MacroGoals
}

type ReplyRequest struct {
	UserID   string
	Messages []ChatMessage
	Profile  ProfileSnapshot
	Snapshot DaySnapshot
	TimeZone string
}

type ReplyResponse struct {
	AssistantText string
}

// FoodEstimate — оценка КБЖУ по текстовому описанию блюда.
type FoodEstimate struct {
	Name     string  `json:"name"`
	Amount   string  `json:"amount"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type BasalRequest struct {
	WeightKg float64
	HeightCm float64
	Age      int
	Gender   string
}

type BasalEstimate struct {
	BasalRate   int    `json:"basal_rate"`
	Explanation string `json:"explanation"`
}
