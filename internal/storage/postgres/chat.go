package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresChatStorage — история чата в chat_messages
type PostgresChatStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresChatStorage(pool *pgxpool.Pool) *PostgresChatStorage {
	return &PostgresChatStorage{pool: pool}
}

func (s *PostgresChatStorage) InsertMessage(ctx context.Context, ownerUserID, role, content string) (storage.ChatMessage, error) {
	const query = `
		INSERT INTO chat_messages (id, owner_user_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_user_id, role, content, created_at
	`

	rows, err := s.pool.Query(ctx, query, uuid.New(), strings.TrimSpace(ownerUserID), strings.TrimSpace(role), content)
	if err != nil {
		return storage.ChatMessage{}, fmt.Errorf("failed to insert chat message: %w", err)
	}

	msg, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[storage.ChatMessage])
	if err != nil {
		return storage.ChatMessage{}, fmt.Errorf("failed to insert chat message: %w", err)
	}
	return msg, nil
}

// ListMessages читает limit+1 последних сообщений: лишнее означает, что есть более старая страница.
func (s *PostgresChatStorage) ListMessages(ctx context.Context, ownerUserID string, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, owner_user_id, role, content, created_at
		FROM chat_messages
		WHERE owner_user_id = $1
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, strings.TrimSpace(ownerUserID), before, limit+1)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list chat messages: %w", err)
	}

	newestFirst, err := pgx.CollectRows(rows, pgx.RowToStructByPos[storage.ChatMessage])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan chat messages: %w", err)
	}

	hasMore := len(newestFirst) > limit
	if hasMore {
		newestFirst = newestFirst[:limit]
	}
	slices.Reverse(newestFirst)

	if !hasMore {
		return newestFirst, nil, nil
	}
	cursor := newestFirst[0].CreatedAt.UTC()
	return newestFirst, &cursor, nil
}
