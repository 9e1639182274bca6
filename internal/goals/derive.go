package goals

import (
	"math"
	"strings"

	"github.com/fdg312/diet-hub/internal/storage"
)

const (
	GoalCut      = "cut"
	GoalMaintain = "maintain"
	GoalBulk     = "bulk"

	DefaultActivityFactor    = 1.2
	DefaultProteinMultiplier = 2.0
	MinProteinMultiplier     = 1.4
	MaxProteinMultiplier     = 2.0
	DefaultFatPerKg          = 0.8
)

var goalOffsets = map[string]int{
	GoalCut:      -500,
	GoalMaintain: 0,
	GoalBulk:     300,
}

// Params are the inputs of Derive.
type Params struct {
	BasalRate         int
	ActivityFactor    float64
	GoalType          string
	WeightKg          float64
	ProteinMultiplier float64
	FatPerKg          float64
}

// Result is a derived daily target.
type Result struct {
	TDEE           int
	TargetCalories int
	Goals          storage.MacroGoals
}

// Derive computes TDEE, target calories and macro grams.
// Carbs are floored at zero, so when protein and fat alone exceed the target
// the derived macros add up to less than TargetCalories.
func Derive(p Params) Result {
	tdee := int(math.Round(float64(p.BasalRate) * p.ActivityFactor))
	target := tdee + GoalOffset(p.GoalType)

	protein := int(math.Round(p.WeightKg * ClampProteinMultiplier(p.ProteinMultiplier)))
	fat := int(math.Round(p.WeightKg * p.FatPerKg))

	carbs := int(math.Round(float64(target-protein*4-fat*9) / 4))
	if carbs < 0 {
		carbs = 0
	}

	return Result{
		TDEE:           tdee,
		TargetCalories: target,
		Goals: storage.MacroGoals{
			Calories: target,
			Protein:  protein,
			Carbs:    carbs,
			Fat:      fat,
		},
	}
}

// GoalOffset returns the calorie offset for a goal type; unknown types count as maintain.
func GoalOffset(goalType string) int {
	return goalOffsets[NormalizeGoalType(goalType)]
}

func NormalizeGoalType(goalType string) string {
	goalType = strings.ToLower(strings.TrimSpace(goalType))
	if _, ok := goalOffsets[goalType]; ok {
		return goalType
	}
	return GoalMaintain
}

// ClampProteinMultiplier keeps the multiplier in [1.4, 2.0]; zero means the default.
func ClampProteinMultiplier(m float64) float64 {
	if m == 0 || math.IsNaN(m) {
		return DefaultProteinMultiplier
	}
	if m < MinProteinMultiplier {
		return MinProteinMultiplier
	}
	if m > MaxProteinMultiplier {
		return MaxProteinMultiplier
	}
	return m
}

// DefaultGoals are shown until the user saves a profile.
func DefaultGoals() storage.MacroGoals {
	return storage.MacroGoals{
		Calories: 2000,
		Protein:  150,
		Carbs:    200,
		Fat:      60,
	}
}

// Resolve returns the profile goals, or the defaults when there is no usable profile.
func Resolve(profile *storage.UserProfile) (storage.MacroGoals, bool) {
	if profile == nil || profile.Goals == (storage.MacroGoals{}) {
		return DefaultGoals(), true
	}
	return profile.Goals, false
}
