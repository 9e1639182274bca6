package goals

import (
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/diet-hub/internal/storage"
)

// GoalsDTO — дневные цели по калориям и БЖУ.
type GoalsDTO struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// ProfileDTO — профиль пользователя с рассчитанными целями.
type ProfileDTO struct {
	Name              string    `json:"name"`
	WeightKg          float64   `json:"weight_kg"`
	HeightCm          float64   `json:"height_cm"`
	Age               int       `json:"age"`
	Gender            string    `json:"gender"`
	ActivityFactor    float64   `json:"activity_factor"`
	GoalType          string    `json:"goal_type"`
	BasalRate         int       `json:"basal_rate"`
	ProteinMultiplier float64   `json:"protein_multiplier"`
	TimeZone          string    `json:"timezone,omitempty"`
	TDEE              int       `json:"tdee"`
	TargetCalories    int       `json:"target_calories"`
	Goals             GoalsDTO  `json:"goals"`
	ManualGoals       bool      `json:"manual_goals"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetGoalsResponse — ответ GET /v1/goals
type GetGoalsResponse struct {
	Profile   *ProfileDTO `json:"profile"`
	Goals     GoalsDTO    `json:"goals"`
	IsDefault bool        `json:"is_default"`
}

// UpsertProfileRequest — тело PUT /v1/goals
type UpsertProfileRequest struct {
	Name              string    `json:"name"`
	WeightKg          float64   `json:"weight_kg"`
	HeightCm          float64   `json:"height_cm"`
	Age               int       `json:"age"`
	Gender            string    `json:"gender"`
	ActivityFactor    float64   `json:"activity_factor"`
	GoalType          string    `json:"goal_type"`
	BasalRate         int       `json:"basal_rate"`
	ProteinMultiplier float64   `json:"protein_multiplier"`
	TimeZone          string    `json:"timezone"`
	ManualGoals       bool      `json:"manual_goals"`
	Goals             *GoalsDTO `json:"goals,omitempty"`
}

// Normalize applies defaults before validation.
func (r *UpsertProfileRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Gender = strings.ToLower(strings.TrimSpace(r.Gender))
	r.GoalType = NormalizeGoalType(r.GoalType)
	r.TimeZone = strings.TrimSpace(r.TimeZone)
	if r.ActivityFactor == 0 {
		r.ActivityFactor = DefaultActivityFactor
	}
	r.ProteinMultiplier = ClampProteinMultiplier(r.ProteinMultiplier)
}

// Validate validates the upsert request.
func (r *UpsertProfileRequest) Validate() error {
	if r.WeightKg < 20 || r.WeightKg > 400 {
		return fmt.Errorf("weight_kg must be between 20 and 400")
	}

	if r.HeightCm < 0 || r.HeightCm > 260 {
		return fmt.Errorf("height_cm must be between 0 and 260")
	}

	if r.Age < 0 || r.Age > 120 {
		return fmt.Errorf("age must be between 0 and 120")
	}

	if r.Gender != "" && r.Gender != "male" && r.Gender != "female" {
		return fmt.Errorf("gender must be male or female")
	}

	if r.ActivityFactor < 1.0 || r.ActivityFactor > 2.5 {
		return fmt.Errorf("activity_factor must be between 1.0 and 2.5")
	}

	if r.BasalRate < 0 || r.BasalRate > 5000 {
		return fmt.Errorf("basal_rate must be between 0 and 5000")
	}

	if r.TimeZone != "" {
		if _, err := time.LoadLocation(r.TimeZone); err != nil {
			return fmt.Errorf("timezone is not a valid IANA zone")
		}
	}

	if r.ManualGoals {
		if r.Goals == nil {
			return fmt.Errorf("goals are required when manual_goals is true")
		}
		if r.Goals.Calories < 800 || r.Goals.Calories > 6000 {
			return fmt.Errorf("goals.calories must be between 800 and 6000")
		}
		if r.Goals.Protein < 0 || r.Goals.Protein > 400 ||
			r.Goals.Carbs < 0 || r.Goals.Carbs > 800 ||
			r.Goals.Fat < 0 || r.Goals.Fat > 400 {
			return fmt.Errorf("goals macros are out of range")
		}
	}

	return nil
}

// BasalRequest — тело POST /v1/goals/basal
type BasalRequest struct {
	WeightKg float64 `json:"weight_kg"`
	HeightCm float64 `json:"height_cm"`
	Age      int     `json:"age"`
	Gender   string  `json:"gender"`
}

func (r *BasalRequest) Validate() error {
	if r.WeightKg < 20 || r.WeightKg > 400 {
		return fmt.Errorf("weight_kg must be between 20 and 400")
	}
	if r.HeightCm < 50 || r.HeightCm > 260 {
		return fmt.Errorf("height_cm must be between 50 and 260")
	}
	if r.Age < 10 || r.Age > 120 {
		return fmt.Errorf("age must be between 10 and 120")
	}
	return nil
}

type BasalResponse struct {
	BasalRate   int    `json:"basal_rate"`
	Explanation string `json:"explanation"`
}

// PreviewRequest — тело POST /v1/goals/preview
type PreviewRequest struct {
	BasalRate         int     `json:"basal_rate"`
	ActivityFactor    float64 `json:"activity_factor"`
	GoalType          string  `json:"goal_type"`
	WeightKg          float64 `json:"weight_kg"`
	ProteinMultiplier float64 `json:"protein_multiplier"`
}

type PreviewResponse struct {
	TDEE           int      `json:"tdee"`
	TargetCalories int      `json:"target_calories"`
	Goals          GoalsDTO `json:"goals"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func goalsToDTO(g storage.MacroGoals) GoalsDTO {
	return GoalsDTO{
		Calories: g.Calories,
		Protein:  g.Protein,
		Carbs:    g.Carbs,
		Fat:      g.Fat,
	}
}

func profileToDTO(p storage.UserProfile) ProfileDTO {
	return ProfileDTO{
		Name:              p.Name,
		WeightKg:          p.WeightKg,
		HeightCm:          p.HeightCm,
		Age:               p.Age,
		Gender:            p.Gender,
		ActivityFactor:    p.ActivityFactor,
		GoalType:          p.GoalType,
		BasalRate:         p.BasalRate,
		ProteinMultiplier: p.ProteinMultiplier,
		TimeZone:          p.TimeZone,
		TDEE:              p.TargetCalories - GoalOffset(p.GoalType),
		TargetCalories:    p.TargetCalories,
		Goals:             goalsToDTO(p.Goals),
		ManualGoals:       p.ManualGoals,
		UpdatedAt:         p.UpdatedAt,
	}
}
