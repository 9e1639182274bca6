package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/google/uuid"
)

// ChatMemoryStorage — история чата по владельцам.
// Сообщения добавляются только в конец, поэтому каждый срез уже отсортирован по created_at.
type ChatMemoryStorage struct {
	mu      sync.RWMutex
	byOwner map[string][]storage.ChatMessage
	now     func() time.Time
}

func NewChatMemoryStorage() *ChatMemoryStorage {
	return &ChatMemoryStorage{
		byOwner: make(map[string][]storage.ChatMessage),
		now:     time.Now,
	}
}

func (s *ChatMemoryStorage) InsertMessage(ctx context.Context, ownerUserID, role, content string) (storage.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ChatMessage{}, err
	}

	owner := strings.TrimSpace(ownerUserID)

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.byOwner[owner]
	createdAt := s.now().UTC()
	// монотонность курсора даже при одинаковых отметках времени
	if n := len(history); n > 0 && !createdAt.After(history[n-1].CreatedAt) {
		createdAt = history[n-1].CreatedAt.Add(time.Microsecond)
	}

	msg := storage.ChatMessage{
		ID:          uuid.New(),
		OwnerUserID: owner,
		Role:        strings.TrimSpace(role),
		Content:     content,
		CreatedAt:   createdAt,
	}
	s.byOwner[owner] = append(history, msg)
	return msg, nil
}

func (s *ChatMemoryStorage) ListMessages(ctx context.Context, ownerUserID string, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.byOwner[strings.TrimSpace(ownerUserID)]
	end := len(history)
	if before != nil {
		end, _ = slices.BinarySearchFunc(history, *before, func(m storage.ChatMessage, t time.Time) int {
			return m.CreatedAt.Compare(t)
		})
	}

	start := max(0, end-limit)
	page := slices.Clone(history[start:end])
	if start == 0 {
		return page, nil, nil
	}

	cursor := page[0].CreatedAt
	return page, &cursor, nil
}
