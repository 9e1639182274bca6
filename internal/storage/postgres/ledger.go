package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedgerStorage хранит документы дней в ledger_days:
// entries — jsonb массив, итоги — отдельные колонки, version — для optimistic concurrency.
type PostgresLedgerStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresLedgerStorage(pool *pgxpool.Pool) *PostgresLedgerStorage {
	return &PostgresLedgerStorage{pool: pool}
}

const dayColumns = `owner_user_id, to_char(day, 'YYYY-MM-DD'), entries,
		total_calories, total_protein, total_carbs, total_fat, version, created_at, updated_at`

func (s *PostgresLedgerStorage) GetDay(ctx context.Context, ownerUserID, date string) (*storage.DayDocument, error) {
	query := `SELECT ` + dayColumns + ` FROM ledger_days WHERE owner_user_id = $1 AND day = $2::date`

	doc, err := scanDay(s.pool.QueryRow(ctx, query, strings.TrimSpace(ownerUserID), date))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger day: %w", err)
	}

	return doc, nil
}

func (s *PostgresLedgerStorage) SetDay(ctx context.Context, doc storage.DayDocument) error {
	entries, err := encodeEntries(doc.Entries)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ledger_days (owner_user_id, day, entries, total_calories, total_protein, total_carbs, total_fat, version)
		VALUES ($1, $2::date, $3::jsonb, $4, $5, $6, $7, 1)
		ON CONFLICT (owner_user_id, day)
		DO UPDATE SET
			entries = EXCLUDED.entries,
			total_calories = EXCLUDED.total_calories,
			total_protein = EXCLUDED.total_protein,
			total_carbs = EXCLUDED.total_carbs,
			total_fat = EXCLUDED.total_fat,
			version = ledger_days.version + 1,
			updated_at = now()
	`

	_, err = s.pool.Exec(ctx, query,
		strings.TrimSpace(doc.OwnerUserID),
		doc.Date,
		entries,
		doc.Totals.Calories,
		doc.Totals.Protein,
		doc.Totals.Carbs,
		doc.Totals.Fat,
	)
	if err != nil {
		return fmt.Errorf("failed to set ledger day: %w", err)
	}

	return nil
}

func (s *PostgresLedgerStorage) UpdateDay(ctx context.Context, ownerUserID, date string, update storage.DayUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + dayColumns + ` FROM ledger_days WHERE owner_user_id = $1 AND day = $2::date FOR UPDATE`

	doc, err := scanDay(tx.QueryRow(ctx, query, strings.TrimSpace(ownerUserID), date))
	if err == pgx.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock ledger day: %w", err)
	}

	storage.MergeDayUpdate(doc, update)

	if _, err := s.updateVersioned(ctx, tx, *doc); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresLedgerStorage) ApplyDay(ctx context.Context, ownerUserID, date string, fn storage.ApplyFunc) (*storage.DayDocument, error) {
	current, err := s.GetDay(ctx, ownerUserID, date)
	if err != nil {
		return nil, err
	}

	var input *storage.DayDocument
	if current != nil {
		copied := current.Clone()
		input = &copied
	}

	next, err := fn(input)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	doc := next.Clone()
	doc.OwnerUserID = strings.TrimSpace(ownerUserID)
	doc.Date = date

	if current == nil {
		return s.insertNew(ctx, doc)
	}

	doc.Version = current.Version
	return s.updateVersioned(ctx, s.pool, doc)
}

func (s *PostgresLedgerStorage) ListDays(ctx context.Context, ownerUserID, from, to string) ([]storage.DayDocument, error) {
	query := `
		SELECT ` + dayColumns + `
		FROM ledger_days
		WHERE owner_user_id = $1 AND day BETWEEN $2::date AND $3::date
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query, strings.TrimSpace(ownerUserID), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger days: %w", err)
	}
	defer rows.Close()

	result := make([]storage.DayDocument, 0)
	for rows.Next() {
		doc, err := scanDay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger day: %w", err)
		}
		result = append(result, *doc)
	}

	return result, rows.Err()
}

func (s *PostgresLedgerStorage) insertNew(ctx context.Context, doc storage.DayDocument) (*storage.DayDocument, error) {
	entries, err := encodeEntries(doc.Entries)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO ledger_days (owner_user_id, day, entries, total_calories, total_protein, total_carbs, total_fat, version)
		VALUES ($1, $2::date, $3::jsonb, $4, $5, $6, $7, 1)
		ON CONFLICT (owner_user_id, day) DO NOTHING
		RETURNING ` + dayColumns

	written, err := scanDay(s.pool.QueryRow(ctx, query,
		doc.OwnerUserID,
		doc.Date,
		entries,
		doc.Totals.Calories,
		doc.Totals.Protein,
		doc.Totals.Carbs,
		doc.Totals.Fat,
	))
	if err == pgx.ErrNoRows {
		// кто-то создал день между чтением и записью
		return nil, storage.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger day: %w", err)
	}

	return written, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// updateVersioned writes doc only if the stored version still equals doc.Version.
func (s *PostgresLedgerStorage) updateVersioned(ctx context.Context, q queryRower, doc storage.DayDocument) (*storage.DayDocument, error) {
	entries, err := encodeEntries(doc.Entries)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE ledger_days
		SET entries = $3::jsonb,
			total_calories = $4,
			total_protein = $5,
			total_carbs = $6,
			total_fat = $7,
			version = version + 1,
			updated_at = now()
		WHERE owner_user_id = $1 AND day = $2::date AND version = $8
		RETURNING ` + dayColumns

	written, err := scanDay(q.QueryRow(ctx, query,
		doc.OwnerUserID,
		doc.Date,
		entries,
		doc.Totals.Calories,
		doc.Totals.Protein,
		doc.Totals.Carbs,
		doc.Totals.Fat,
		doc.Version,
	))
	if err == pgx.ErrNoRows {
		return nil, storage.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update ledger day: %w", err)
	}

	return written, nil
}

func scanDay(row pgx.Row) (*storage.DayDocument, error) {
	var doc storage.DayDocument
	var rawEntries []byte
	err := row.Scan(
		&doc.OwnerUserID,
		&doc.Date,
		&rawEntries,
		&doc.Totals.Calories,
		&doc.Totals.Protein,
		&doc.Totals.Carbs,
		&doc.Totals.Fat,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(rawEntries) > 0 {
		if err := json.Unmarshal(rawEntries, &doc.Entries); err != nil {
			return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
		}
	}

	return &doc, nil
}

func encodeEntries(entries []storage.MealEntry) (string, error) {
	if entries == nil {
		entries = []storage.MealEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode ledger entries: %w", err)
	}
	return string(b), nil
}
