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

// ReportsMemoryStorage держит метаданные (и байты) отчётов по владельцам
type ReportsMemoryStorage struct {
	mu      sync.RWMutex
	byOwner map[string]map[uuid.UUID]storage.ReportMeta
}

func NewReportsMemoryStorage() *ReportsMemoryStorage {
	return &ReportsMemoryStorage{
		byOwner: make(map[string]map[uuid.UUID]storage.ReportMeta),
	}
}

func (s *ReportsMemoryStorage) CreateReport(ctx context.Context, report *storage.ReportMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	owner := strings.TrimSpace(report.OwnerUserID)
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	now := time.Now().UTC()
	report.OwnerUserID = owner
	report.CreatedAt = now
	report.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	reports, ok := s.byOwner[owner]
	if !ok {
		reports = make(map[uuid.UUID]storage.ReportMeta)
		s.byOwner[owner] = reports
	}
	reports[report.ID] = cloneReport(*report)
	return nil
}

func (s *ReportsMemoryStorage) GetReport(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.ReportMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.byOwner[strings.TrimSpace(ownerUserID)][id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copied := cloneReport(report)
	return &copied, nil
}

func (s *ReportsMemoryStorage) ListReports(ctx context.Context, ownerUserID string, limit, offset int) ([]storage.ReportMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	reports := s.byOwner[strings.TrimSpace(ownerUserID)]
	list := make([]storage.ReportMeta, 0, len(reports))
	for _, r := range reports {
		list = append(list, cloneReport(r))
	}
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b storage.ReportMeta) int {
		// created_at DESC
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []storage.ReportMeta{}, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (s *ReportsMemoryStorage) DeleteReport(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reports := s.byOwner[strings.TrimSpace(ownerUserID)]
	if _, ok := reports[id]; !ok {
		return storage.ErrNotFound
	}
	delete(reports, id)
	return nil
}

func cloneReport(r storage.ReportMeta) storage.ReportMeta {
	r.Data = slices.Clone(r.Data)
	return r
}
