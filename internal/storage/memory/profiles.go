package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/diet-hub/internal/storage"
)

// ProfilesMemoryStorage — in-memory хранилище профилей, ключ: owner_user_id
type ProfilesMemoryStorage struct {
	mu       sync.RWMutex
	profiles map[string]storage.UserProfile
}

func NewProfilesMemoryStorage() *ProfilesMemoryStorage {
	return &ProfilesMemoryStorage{
		profiles: make(map[string]storage.UserProfile),
	}
}

func (s *ProfilesMemoryStorage) GetProfile(ctx context.Context, ownerUserID string) (*storage.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[strings.TrimSpace(ownerUserID)]
	if !ok {
		return nil, nil
	}

	// Return a copy
	copied := p
	return &copied, nil
}

func (s *ProfilesMemoryStorage) UpsertProfile(ctx context.Context, profile storage.UserProfile) (*storage.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.OwnerUserID = strings.TrimSpace(profile.OwnerUserID)
	now := time.Now().UTC()

	if existing, ok := s.profiles[profile.OwnerUserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	s.profiles[profile.OwnerUserID] = profile

	copied := profile
	return &copied, nil
}
