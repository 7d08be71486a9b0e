// Package memorystore keeps leads in process memory for local runs and tests.
package memorystore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"architect/internal/domain/lead"
	apperrors "architect/internal/errors"
	"architect/internal/utils/id"
)

// Store is a mutex-guarded lead.Store.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*lead.Lead
	byEmail map[string]string
	now     func() time.Time
}

var _ lead.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*lead.Lead),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *Store) FindByEmail(_ context.Context, email string) (*lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leadID, ok := s.byEmail[lead.NormalizeEmail(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneLead(s.byID[leadID]), nil
}

func (s *Store) FindByID(_ context.Context, leadID string) (*lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byID[leadID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneLead(record), nil
}

func (s *Store) InsertIfAbsent(_ context.Context, record *lead.Lead) (*lead.Lead, error) {
	if record == nil {
		return nil, apperrors.NewValidationError("lead", "lead is required")
	}
	stored := cloneLead(record)
	stored.Email = lead.NormalizeEmail(stored.Email)
	if stored.ID == "" {
		stored.ID = id.NewLeadID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[stored.Email]; exists {
		return nil, apperrors.ErrLeadExists
	}
	if _, exists := s.byID[stored.ID]; exists {
		return nil, apperrors.ErrLeadExists
	}
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.byID[stored.ID] = stored
	s.byEmail[stored.Email] = stored.ID
	return cloneLead(stored), nil
}

func (s *Store) UpdateByID(_ context.Context, leadID string, patch lead.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[leadID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if patch.PsychScores != nil {
		record.PsychScores = patch.PsychScores.Clone()
	}
	if len(patch.RoadmapResult) > 0 {
		record.RoadmapResult = append(json.RawMessage(nil), patch.RoadmapResult...)
	}
	record.UpdatedAt = s.now()
	return nil
}

// Len returns the number of stored leads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func cloneLead(src *lead.Lead) *lead.Lead {
	if src == nil {
		return nil
	}
	out := *src
	if src.PsychScores != nil {
		out.PsychScores = src.PsychScores.Clone()
	}
	if src.RoadmapResult != nil {
		out.RoadmapResult = append(json.RawMessage(nil), src.RoadmapResult...)
	}
	if src.PostgradIntent != nil {
		intent := *src.PostgradIntent
		out.PostgradIntent = &intent
	}
	return &out
}
