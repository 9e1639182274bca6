package postgres

import (
	"context"
	"fmt"

	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresProfilesStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresProfilesStorage(pool *pgxpool.Pool) *PostgresProfilesStorage {
	return &PostgresProfilesStorage{pool: pool}
}

const profileColumns = `owner_user_id, name, weight_kg, height_cm, age, gender, activity_factor, goal_type,
		basal_rate, protein_multiplier, time_zone, target_calories,
		goal_calories, goal_protein, goal_carbs, goal_fat, manual_goals, created_at, updated_at`

func (s *PostgresProfilesStorage) GetProfile(ctx context.Context, ownerUserID string) (*storage.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE owner_user_id = $1`

	profile, err := scanProfile(s.pool.QueryRow(ctx, query, ownerUserID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

func (s *PostgresProfilesStorage) UpsertProfile(ctx context.Context, p storage.UserProfile) (*storage.UserProfile, error) {
	query := `
		INSERT INTO user_profiles (owner_user_id, name, weight_kg, height_cm, age, gender, activity_factor, goal_type,
			basal_rate, protein_multiplier, time_zone, target_calories,
			goal_calories, goal_protein, goal_carbs, goal_fat, manual_goals)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (owner_user_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			weight_kg = EXCLUDED.weight_kg,
			height_cm = EXCLUDED.height_cm,
			age = EXCLUDED.age,
			gender = EXCLUDED.gender,
			activity_factor = EXCLUDED.activity_factor,
			goal_type = EXCLUDED.goal_type,
			basal_rate = EXCLUDED.basal_rate,
			protein_multiplier = EXCLUDED.protein_multiplier,
			time_zone = EXCLUDED.time_zone,
			target_calories = EXCLUDED.target_calories,
			goal_calories = EXCLUDED.goal_calories,
			goal_protein = EXCLUDED.goal_protein,
			goal_carbs = EXCLUDED.goal_carbs,
			goal_fat = EXCLUDED.goal_fat,
			manual_goals = EXCLUDED.manual_goals,
			updated_at = now()
		RETURNING ` + profileColumns

	profile, err := scanProfile(s.pool.QueryRow(ctx, query,
		p.OwnerUserID,
		p.Name,
		p.WeightKg,
		p.HeightCm,
		p.Age,
		p.Gender,
		p.ActivityFactor,
		p.GoalType,
		p.BasalRate,
		p.ProteinMultiplier,
		p.TimeZone,
		p.TargetCalories,
		p.Goals.Calories,
		p.Goals.Protein,
		p.Goals.Carbs,
		p.Goals.Fat,
		p.ManualGoals,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return profile, nil
}

func scanProfile(row pgx.Row) (*storage.UserProfile, error) {
	var p storage.UserProfile
	err := row.Scan(
		&p.OwnerUserID,
		&p.Name,
		&p.WeightKg,
		&p.HeightCm,
		&p.Age,
		&p.Gender,
		&p.ActivityFactor,
		&p.GoalType,
		&p.BasalRate,
		&p.ProteinMultiplier,
		&p.TimeZone,
		&p.TargetCalories,
		&p.Goals.Calories,
		&p.Goals.Protein,
		&p.Goals.Carbs,
		&p.Goals.Fat,
		&p.ManualGoals,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
