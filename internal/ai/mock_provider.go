package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
)

type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error) {
	_ = ctx

	lastUserMessage := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	remaining := float64(req.Snapshot.Goals.Calories) - req.Snapshot.Consumed.Calories
	if remaining < 0 {
		remaining = 0
	}

	text := fmt.Sprintf(
		"Mock-ответ: сегодня съедено %.0f ккал из %d, осталось %.0f ккал. %s",
		req.Snapshot.Consumed.Calories,
		req.Snapshot.Goals.Calories,
		remaining,
		"Это демо-режим, рекомендации не являются медицинским заключением.",
	)

	lowered := strings.ToLower(lastUserMessage)
	if strings.Contains(lowered, "белк") || strings.Contains(lowered, "protein") {
		left := float64(req.Snapshot.Goals.Protein) - req.Snapshot.Consumed.Protein
		if left < 0 {
			left = 0
		}
		text += fmt.Sprintf(" До цели по белку осталось %.0f г.", left)
	} else if strings.Contains(lowered, "рецепт") || strings.Contains(lowered, "recipe") {
		text += " Попробуйте омлет из двух яиц с овощами: около 200 ккал и 14 г белка."
	}

	return ReplyResponse{AssistantText: text}, nil
}

type mockFood struct {
	keywords []string
	estimate FoodEstimate
}

// Значения на одну типичную порцию.
var mockFoods = []mockFood{
	{[]string{"рис", "rice", "arroz"}, FoodEstimate{Name: "Рис отварной", Amount: "150 г", Calories: 195, Protein: 4, Carbs: 42, Fat: 0.5}},
	{[]string{"куриц", "chicken", "frango"}, FoodEstimate{Name: "Куриная грудка", Amount: "150 г", Calories: 248, Protein: 46, Carbs: 0, Fat: 5}},
	{[]string{"яйц", "egg", "ovo"}, FoodEstimate{Name: "Яйца", Amount: "2 шт", Calories: 155, Protein: 13, Carbs: 1, Fat: 11}},
	{[]string{"овсян", "oat", "aveia"}, FoodEstimate{Name: "Овсянка", Amount: "60 г сухой", Calories: 228, Protein: 8, Carbs: 40, Fat: 4}},
	{[]string{"банан", "banana"}, FoodEstimate{Name: "Банан", Amount: "1 шт", Calories: 105, Protein: 1, Carbs: 27, Fat: 0.4}},
	{[]string{"творог", "cottage"}, FoodEstimate{Name: "Творог 5%", Amount: "200 г", Calories: 242, Protein: 34, Carbs: 6, Fat: 10}},
}

func (p *MockProvider) AnalyzeFood(ctx context.Context, description string) (FoodEstimate, error) {
	_ = ctx

	lowered := strings.ToLower(strings.TrimSpace(description))
	if lowered == "" {
		return FoodEstimate{}, fmt.Errorf("empty description")
	}

	for _, food := range mockFoods {
		for _, kw := range food.keywords {
			if strings.Contains(lowered, kw) {
				return food.estimate, nil
			}
		}
	}

	return FoodEstimate{
		Name:     strings.TrimSpace(description),
		Amount:   "1 порция",
		Calories: 300,
		Protein:  15,
		Carbs:    35,
		Fat:      10,
	}, nil
}

func (p *MockProvider) EstimateBasal(ctx context.Context, req BasalRequest) (BasalEstimate, error) {
	_ = ctx

	if req.WeightKg <= 0 || req.HeightCm <= 0 || req.Age <= 0 {
		return BasalEstimate{}, fmt.Errorf("weight, height and age are required")
	}

	return BasalEstimate{
		BasalRate:   MifflinStJeor(req.WeightKg, req.HeightCm, req.Age, req.Gender),
		Explanation: "Рассчитано по формуле Миффлина-Сан Жеора без учёта активности.",
	}, nil
}

// MifflinStJeor returns resting energy expenditure in kcal.
// Anything other than "female" uses the male constant.
func MifflinStJeor(weightKg, heightCm float64, age int, gender string) int {
	bmr := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if strings.EqualFold(strings.TrimSpace(gender), "female") {
		bmr -= 161
	} else {
		bmr += 5
	}
	return int(math.Round(bmr))
}
