package adapters

import (
	"context"
	"sync"
	"time"

	"architect/internal/auth/domain"
	"architect/internal/auth/ports"
)

// NewMemoryStores returns in-memory link and session stores.
func NewMemoryStores() (*MemoryLinkStore, *MemorySessionStore) {
	return NewMemoryLinkStore(), NewMemorySessionStore()
}

// MemoryLinkStore keeps pending magic links in process memory.
type MemoryLinkStore struct {
	mu    sync.Mutex
	links map[string]domain.MagicLink
}

func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{links: make(map[string]domain.MagicLink)}
}

func (s *MemoryLinkStore) Save(_ context.Context, fingerprint string, link domain.MagicLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[fingerprint] = link
	return nil
}

func (s *MemoryLinkStore) Consume(_ context.Context, fingerprint string) (domain.MagicLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[fingerprint]
	if !ok {
		return domain.MagicLink{}, domain.ErrLinkNotFound
	}
	delete(s.links, fingerprint)
	return link, nil
}

// Purge drops links that expired before now and returns how many were removed.
func (s *MemoryLinkStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for fingerprint, link := range s.links {
		if link.Expired(now) {
			delete(s.links, fingerprint)
			removed++
		}
	}
	return removed
}

// MemorySessionStore keeps issued sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session)}
}

func (s *MemorySessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) Find(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.RevokedAt == nil {
		revoked := at
		session.RevokedAt = &revoked
		s.sessions[id] = session
	}
	return nil
}

var (
	_ ports.LinkStore    = (*MemoryLinkStore)(nil)
	_ ports.SessionStore = (*MemorySessionStore)(nil)
)
