package session

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/rm-hull/http-service/internal/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	profile string
	current *models.Session
	now     func() time.Time
}

func NewMemoryStore(profile string) *MemoryStore {
	return &MemoryStore{profile: profile, now: time.Now}
}

func (s *MemoryStore) GetRefreshToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", nil
	}
	return s.current.RefreshToken, nil
}

func (s *MemoryStore) SaveSession(ctx context.Context, data jsoniter.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nextSession(s.current, s.profile, data, s.now())
	return nil
}

func (s *MemoryStore) SetRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := &models.Session{Profile: s.profile, RefreshToken: token, UpdatedAt: s.now().UTC()}
	if s.current != nil {
		next.Payload = s.current.Payload
	}
	s.current = next
	return nil
}

func (s *MemoryStore) Session(ctx context.Context) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, nil
	}
	copied := *s.current
	return &copied, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
