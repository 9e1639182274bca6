package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFoodEstimate_StripsFencesAndCoerces(t *testing.T) {
	text := "```json\n{\"name\":\"Омлет\",\"calories\":\"210\",\"protein\":14,\"carbs\":\"n/a\",\"fat\":-3,\"amount\":\"2 яйца\"}\n```"

	est, err := parseFoodEstimate(text)
	require.NoError(t, err)

	assert.Equal(t, "Омлет", est.Name)
	assert.Equal(t, "2 яйца", est.Amount)
	assert.Equal(t, 210.0, est.Calories)
	assert.Equal(t, 14.0, est.Protein)
	assert.Zero(t, est.Carbs)
	assert.Zero(t, est.Fat)
}

func TestParseFoodEstimate_ProseAroundJSON(t *testing.T) {
	est, err := parseFoodEstimate("Вот оценка: {\"name\":\"Суп\",\"calories\":120} приятного аппетита")
	require.NoError(t, err)
	assert.Equal(t, "Суп", est.Name)
	assert.Equal(t, 120.0, est.Calories)
}

func TestParseFoodEstimate_InvalidJSON(t *testing.T) {
	_, err := parseFoodEstimate("не знаю")
	require.Error(t, err)
}

func TestParseBasalEstimate_AcceptsLegacyKey(t *testing.T) {
	est, err := parseBasalEstimate(`{"tmb": 1780.4, "explanation": "Миффлин"}`)
	require.NoError(t, err)
	assert.Equal(t, 1780, est.BasalRate)
	assert.Equal(t, "Миффлин", est.Explanation)
}

func TestParseBasalEstimate_ZeroIsError(t *testing.T) {
	_, err := parseBasalEstimate(`{"basal_rate": 0}`)
	require.Error(t, err)
}

func TestSystemPrompt_IncludesDayContext(t *testing.T) {
	prompt := systemPrompt(ReplyRequest{
		Profile: ProfileSnapshot{WeightKg: 80, GoalType: "cut", TargetCalories: 2290},
		Snapshot: DaySnapshot{
			Date: "2026-03-01",
		},
	})
	assert.Contains(t, prompt, "вес=80")
	assert.Contains(t, prompt, "целевые калории=2290")
	assert.Contains(t, prompt, "цель=cut")
	assert.Contains(t, prompt, "2026-03-01")
}
