package goals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/diet-hub/internal/ai"
	"github.com/fdg312/diet-hub/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrAIFailed       = errors.New("ai failed")
)

// Service derives and stores daily calorie and macro goals.
type Service struct {
	profiles storage.ProfilesStorage
	provider ai.Provider
	fatPerKg float64
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(profiles storage.ProfilesStorage, provider ai.Provider, fatPerKg float64, logger *zap.Logger) *Service {
	if fatPerKg <= 0 {
		fatPerKg = DefaultFatPerKg
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		profiles: profiles,
		provider: provider,
		fatPerKg: fatPerKg,
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrDefault returns the saved profile and goals, or the default goals if none were saved.
func (s *Service) GetOrDefault(ctx context.Context, ownerUserID string) (*GetGoalsResponse, error) {
	profile, err := s.profiles.GetProfile(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	goals, isDefault := Resolve(profile)
	resp := &GetGoalsResponse{
		Goals:     goalsToDTO(goals),
		IsDefault: isDefault,
	}
	if profile != nil {
		dto := profileToDTO(*profile)
		resp.Profile = &dto
	}

	return resp, nil
}

// Upsert validates the profile, fills the basal rate from the provider when
// it is missing, derives goals and stores the result.
func (s *Service) Upsert(ctx context.Context, ownerUserID string, req UpsertProfileRequest) (*ProfileDTO, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	basal := req.BasalRate
	if basal == 0 {
		estimate, err := s.EstimateBasal(ctx, BasalRequest{
			WeightKg: req.WeightKg,
			HeightCm: req.HeightCm,
			Age:      req.Age,
			Gender:   req.Gender,
		})
		if err != nil {
			return nil, err
		}
		basal = estimate.BasalRate
	}

	derived := Derive(Params{
		BasalRate:         basal,
		ActivityFactor:    req.ActivityFactor,
		GoalType:          req.GoalType,
		WeightKg:          req.WeightKg,
		ProteinMultiplier: req.ProteinMultiplier,
		FatPerKg:          s.fatPerKg,
	})

	goals := derived.Goals
	if req.ManualGoals && req.Goals != nil {
		goals = storage.MacroGoals{
			Calories: req.Goals.Calories,
			Protein:  req.Goals.Protein,
			Carbs:    req.Goals.Carbs,
			Fat:      req.Goals.Fat,
		}
	}

	saved, err := s.profiles.UpsertProfile(ctx, storage.UserProfile{
		OwnerUserID:       ownerUserID,
		Name:              req.Name,
		WeightKg:          req.WeightKg,
		HeightCm:          req.HeightCm,
		Age:               req.Age,
		Gender:            req.Gender,
		ActivityFactor:    req.ActivityFactor,
		GoalType:          req.GoalType,
		BasalRate:         basal,
		ProteinMultiplier: req.ProteinMultiplier,
		TimeZone:          req.TimeZone,
		TargetCalories:    derived.TargetCalories,
		Goals:             goals,
		ManualGoals:       req.ManualGoals,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	s.logger.Info("goals updated",
		zap.String("owner", ownerUserID),
		zap.Int("tdee", derived.TDEE),
		zap.Int("target_calories", derived.TargetCalories),
		zap.Bool("manual", req.ManualGoals),
	)

	dto := profileToDTO(*saved)
	return &dto, nil
}

// Preview derives goals without storing anything.
func (s *Service) Preview(req PreviewRequest) (*PreviewResponse, error) {
	if req.BasalRate <= 0 || req.BasalRate > 5000 {
		return nil, fmt.Errorf("%w: basal_rate must be between 1 and 5000", ErrInvalidRequest)
	}
	if req.WeightKg < 20 || req.WeightKg > 400 {
		return nil, fmt.Errorf("%w: weight_kg must be between 20 and 400", ErrInvalidRequest)
	}
	if req.ActivityFactor == 0 {
		req.ActivityFactor = DefaultActivityFactor
	}
	if req.ActivityFactor < 1.0 || req.ActivityFactor > 2.5 {
		return nil, fmt.Errorf("%w: activity_factor must be between 1.0 and 2.5", ErrInvalidRequest)
	}

	derived := Derive(Params{
		BasalRate:         req.BasalRate,
		ActivityFactor:    req.ActivityFactor,
		GoalType:          req.GoalType,
		WeightKg:          req.WeightKg,
		ProteinMultiplier: req.ProteinMultiplier,
		FatPerKg:          s.fatPerKg,
	})

	return &PreviewResponse{
		TDEE:           derived.TDEE,
		TargetCalories: derived.TargetCalories,
		Goals:          goalsToDTO(derived.Goals),
	}, nil
}

// EstimateBasal asks the provider for a basal metabolic rate.
func (s *Service) EstimateBasal(ctx context.Context, req BasalRequest) (*BasalResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	estimate, err := s.provider.EstimateBasal(ctx, ai.BasalRequest{
		WeightKg: req.WeightKg,
		HeightCm: req.HeightCm,
		Age:      req.Age,
		Gender:   req.Gender,
	})
	if err != nil {
		s.logger.Warn("basal estimate failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAIFailed, err)
	}
	if estimate.BasalRate <= 0 {
		return nil, fmt.Errorf("%w: provider returned basal rate %d", ErrAIFailed, estimate.BasalRate)
	}

	return &BasalResponse{
		BasalRate:   estimate.BasalRate,
		Explanation: estimate.Explanation,
	}, nil
}
