package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresReportsStorage — метаданные экспортов в таблице reports.
// Байты отчёта здесь не хранятся: в postgres-режиме они всегда лежат в S3.
type PostgresReportsStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresReportsStorage(pool *pgxpool.Pool) *PostgresReportsStorage {
	return &PostgresReportsStorage{pool: pool}
}

const reportColumns = `id, owner_user_id, format, from_date, to_date, object_key, size_bytes, status, error, created_at, updated_at`

func (s *PostgresReportsStorage) CreateReport(ctx context.Context, report *storage.ReportMeta) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.OwnerUserID = strings.TrimSpace(report.OwnerUserID)

	const query = `
		INSERT INTO reports (id, owner_user_id, format, from_date, to_date, object_key, size_bytes, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := s.pool.QueryRow(ctx, query,
		report.ID,
		report.OwnerUserID,
		report.Format,
		report.FromDate,
		report.ToDate,
		report.ObjectKey,
		report.SizeBytes,
		report.Status,
		report.Error,
	).Scan(&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

func (s *PostgresReportsStorage) GetReport(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.ReportMeta, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE owner_user_id = $1 AND id = $2`

	rows, err := s.pool.Query(ctx, query, strings.TrimSpace(ownerUserID), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	report, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[storage.ReportMeta])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	return &report, nil
}

func (s *PostgresReportsStorage) ListReports(ctx context.Context, ownerUserID string, limit, offset int) ([]storage.ReportMeta, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE owner_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, strings.TrimSpace(ownerUserID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports, err := pgx.CollectRows(rows, pgx.RowToStructByPos[storage.ReportMeta])
	if err != nil {
		return nil, fmt.Errorf("failed to scan reports: %w", err)
	}

	return reports, nil
}

func (s *PostgresReportsStorage) DeleteReport(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE owner_user_id = $1 AND id = $2`, strings.TrimSpace(ownerUserID), id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}
