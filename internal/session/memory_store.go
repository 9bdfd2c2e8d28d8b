package session

import (
	"context"
	"sync"
	"time"

	"report-portal/internal/model"
)

// MemoryStore keeps sessions in process. Used when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.SessionRecord
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]model.SessionRecord{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, record model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[record.ID] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[id]
	if !ok {
		return model.SessionRecord{}, model.ErrSessionNotFound
	}
	return record, nil
}

func (s *MemoryStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	now := s.now()
	record.RevokedAt = &now
	s.sessions[id] = record
	return nil
}

func (s *MemoryStore) CleanExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for id, record := range s.sessions {
		if record.RevokedAt != nil || !now.Before(record.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
