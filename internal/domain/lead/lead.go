// Package lead defines the student lead record, the email admission gate, the programme
// catalog and the lead store port.
package lead

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"architect/internal/domain/quiz"
)

const (
	// DefaultInstitution is recorded when the intake form leaves the campus unset.
	DefaultInstitution = "Richfield"
	// DefaultUserCategory is the only category the intake form produces.
	DefaultUserCategory = "university"
)

// Lead is one row of student_leads.
type Lead struct {
	ID              string          `json:"id"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Email           string          `json:"email"`
	CurrentProgram  string          `json:"current_program"`
	InstitutionName string          `json:"institution_name,omitempty"`
	UserCategory    string          `json:"user_category,omitempty"`
	StudyPreference string          `json:"study_preference,omitempty"`
	PostgradIntent  *bool           `json:"postgrad_intent,omitempty"`
	PsychScores     quiz.Vector     `json:"psych_scores,omitempty"`
	RoadmapResult   json.RawMessage `json:"roadmap_result,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasRoadmap reports whether a generated roadmap is stored.
func (l *Lead) HasRoadmap() bool {
	trimmed := strings.TrimSpace(string(l.RoadmapResult))
	return trimmed != "" && trimmed != "null"
}

// Profile is the cached intake form, stored on the device as richfieldUser.
type Profile struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Program      string `json:"program"`
	Campus       string `json:"campus"`
	UserCategory string `json:"userCategory"`
}

// ToLead builds the record inserted at intake.
func (p Profile) ToLead(id string, now time.Time) *Lead {
	institution := strings.TrimSpace(p.Campus)
	if institution == "" {
		institution = DefaultInstitution
	}
	category := strings.TrimSpace(p.UserCategory)
	if category == "" {
		category = DefaultUserCategory
	}
	return &Lead{
		ID:              id,
		FirstName:       strings.TrimSpace(p.FirstName),
		LastName:        strings.TrimSpace(p.LastName),
		Email:           NormalizeEmail(p.Email),
		CurrentProgram:  strings.TrimSpace(p.Program),
		InstitutionName: institution,
		UserCategory:    category,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Patch lists the computed fields the result orchestrator attaches to a lead.
// Nil fields are left untouched.
type Patch struct {
	PsychScores   quiz.Vector
	RoadmapResult json.RawMessage
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.PsychScores == nil && len(p.RoadmapResult) == 0
}

// Store is the lead persistence port.
type Store interface {
	// FindByEmail returns the lead with the normalized email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*Lead, error)

	// FindByID returns the lead with id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Lead, error)

	// InsertIfAbsent atomically inserts lead unless its email already exists,
	// in which case it returns ErrLeadExists and writes nothing.
	InsertIfAbsent(ctx context.Context, lead *Lead) (*Lead, error)

	// UpdateByID applies patch to the lead with id.
	UpdateByID(ctx context.Context, id string, patch Patch) error
}
