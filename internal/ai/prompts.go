package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const greetingAck = "Понял. Чем помочь с питанием сегодня?"

func systemPrompt(req ReplyRequest) string {
	goal := req.Profile.GoalType
	if goal == "" {
		goal = "maintain"
	}
	weight := "?"
	if req.Profile.WeightKg > 0 {
		weight = strconv.FormatFloat(req.Profile.WeightKg, 'f', -1, 64)
	}
	target := "?"
	if req.Profile.TargetCalories > 0 {
		target = strconv.Itoa(req.Profile.TargetCalories)
	}

	return fmt.Sprintf(
		"Ты опытный и доброжелательный ИИ-нутрициолог. Не ставь диагнозы и не заменяй врача. "+
			"Данные пользователя: вес=%s кг, целевые калории=%s ккал, цель=%s. "+
			"Сегодня (%s) съедено: %.0f ккал, белки %.0f г, углеводы %.0f г, жиры %.0f г. "+
			"Дневные цели: %d ккал, белки %d г, углеводы %d г, жиры %d г. "+
			"Отвечай кратко, мотивирующе и с опорой на науку. "+
			"Если просят рецепт, предлагай вариант, который укладывается в оставшиеся макросы.",
		weight,
		target,
		goal,
		req.Snapshot.Date,
		req.Snapshot.Consumed.Calories,
		req.Snapshot.Consumed.Protein,
		req.Snapshot.Consumed.Carbs,
		req.Snapshot.Consumed.Fat,
		req.Snapshot.Goals.Calories,
		req.Snapshot.Goals.Protein,
		req.Snapshot.Goals.Carbs,
		req.Snapshot.Goals.Fat,
	)
}

func foodPrompt(description string) string {
	return fmt.Sprintf(
		"Оцени пищевую ценность блюда или приёма пищи. Описание: %q. "+
			"Верни ТОЛЬКО JSON без markdown и пояснений в формате: "+
			"{\"name\":\"короткое понятное название\",\"calories\":0,\"protein\":0,\"carbs\":0,\"fat\":0,"+
			"\"amount\":\"оценка порции, например 1 тарелка или 200 г\"}. "+
			"calories в ккал, protein/carbs/fat в граммах, целые числа.",
		description,
	)
}

func basalPrompt(req BasalRequest) string {
	return fmt.Sprintf(
		"Данные: вес %.1f кг, рост %.1f см, возраст %d лет, пол %s. "+
			"Рассчитай базовый обмен (BMR) по формуле Миффлина-Сан Жеора. "+
			"Не применяй коэффициент активности, нужен только обмен в покое. "+
			"Верни ТОЛЬКО JSON: {\"basal_rate\":0,\"explanation\":\"одно короткое предложение\"}. basal_rate — целое число.",
		req.WeightKg,
		req.HeightCm,
		req.Age,
		req.Gender,
	)
}

// stripCodeFences removes ```json ... ``` wrappers the models like to add.
func stripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func decodeJSONObject(text string) (map[string]any, error) {
	cleaned := stripCodeFences(text)
	if start := strings.Index(cleaned, "{"); start > 0 {
		cleaned = cleaned[start:]
	}
	if end := strings.LastIndex(cleaned, "}"); end >= 0 && end < len(cleaned)-1 {
		cleaned = cleaned[:end+1]
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return raw, nil
}

func parseFoodEstimate(text string) (FoodEstimate, error) {
	raw, err := decodeJSONObject(text)
	if err != nil {
		return FoodEstimate{}, err
	}

	return FoodEstimate{
		Name:     stringField(raw, "name"),
		Amount:   stringField(raw, "amount"),
		Calories: numberField(raw, "calories"),
		Protein:  numberField(raw, "protein"),
		Carbs:    numberField(raw, "carbs"),
		Fat:      numberField(raw, "fat"),
	}, nil
}

func parseBasalEstimate(text string) (BasalEstimate, error) {
	raw, err := decodeJSONObject(text)
	if err != nil {
		return BasalEstimate{}, err
	}

	rate := numberField(raw, "basal_rate")
	if rate == 0 {
		rate = numberField(raw, "tmb")
	}
	if rate <= 0 {
		return BasalEstimate{}, fmt.Errorf("model returned no basal rate")
	}

	return BasalEstimate{
		BasalRate:   int(math.Round(rate)),
		Explanation: stringField(raw, "explanation"),
	}, nil
}

func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// numberField accepts numbers or numeric strings; anything else, NaN or negative is 0.
func numberField(raw map[string]any, key string) float64 {
	var f float64
	switch v := raw[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
