package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/diet-hub/internal/storage"
)

type dayKey struct {
	owner string
	date  string
}

// LedgerMemoryStorage — in-memory документы дней с версионированием
type LedgerMemoryStorage struct {
	mu   sync.RWMutex
	days map[dayKey]storage.DayDocument
}

func NewLedgerMemoryStorage() *LedgerMemoryStorage {
	return &LedgerMemoryStorage{
		days: make(map[dayKey]storage.DayDocument),
	}
}

func newDayKey(ownerUserID, date string) dayKey {
	return dayKey{owner: strings.TrimSpace(ownerUserID), date: strings.TrimSpace(date)}
}

func (s *LedgerMemoryStorage) GetDay(ctx context.Context, ownerUserID, date string) (*storage.DayDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.days[newDayKey(ownerUserID, date)]
	if !ok {
		return nil, nil
	}

	copied := doc.Clone()
	return &copied, nil
}

func (s *LedgerMemoryStorage) SetDay(ctx context.Context, doc storage.DayDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := newDayKey(doc.OwnerUserID, doc.Date)
	s.writeLocked(key, doc.Clone())
	return nil
}

func (s *LedgerMemoryStorage) UpdateDay(ctx context.Context, ownerUserID, date string, update storage.DayUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := newDayKey(ownerUserID, date)
	existing, ok := s.days[key]
	if !ok {
		return storage.ErrNotFound
	}

	doc := existing.Clone()
	storage.MergeDayUpdate(&doc, update)
	s.writeLocked(key, doc)
	return nil
}

func (s *LedgerMemoryStorage) ApplyDay(ctx context.Context, ownerUserID, date string, fn storage.ApplyFunc) (*storage.DayDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := newDayKey(ownerUserID, date)

	s.mu.RLock()
	existing, exists := s.days[key]
	s.mu.RUnlock()

	var current *storage.DayDocument
	var readVersion int64
	if exists {
		copied := existing.Clone()
		current = &copied
		readVersion = existing.Version
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	latest, stillExists := s.days[key]
	if stillExists != exists || (stillExists && latest.Version != readVersion) {
		return nil, storage.ErrConflict
	}

	doc := next.Clone()
	doc.OwnerUserID = key.owner
	doc.Date = key.date
	s.writeLocked(key, doc)

	written := s.days[key].Clone()
	return &written, nil
}

func (s *LedgerMemoryStorage) ListDays(ctx context.Context, ownerUserID, from, to string) ([]storage.DayDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ownerUserID = strings.TrimSpace(ownerUserID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.DayDocument, 0)
	for key, doc := range s.days {
		if key.owner != ownerUserID {
			continue
		}
		// YYYY-MM-DD сравнивается лексикографически
		if key.date < from || key.date > to {
			continue
		}
		result = append(result, doc.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date < result[j].Date
	})

	return result, nil
}

// writeLocked stores doc under key, bumping the version. Caller holds s.mu.
func (s *LedgerMemoryStorage) writeLocked(key dayKey, doc storage.DayDocument) {
	now := time.Now().UTC()
	doc.OwnerUserID = key.owner
	doc.Date = key.date

	if existing, ok := s.days[key]; ok {
		doc.Version = existing.Version + 1
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.Version = 1
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	s.days[key] = doc
}
