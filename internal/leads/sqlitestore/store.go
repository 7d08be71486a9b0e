// Package sqlitestore persists leads in an embedded SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"architect/internal/domain/lead"
	"architect/internal/domain/quiz"
	apperrors "architect/internal/errors"
	"architect/internal/logging"
	"architect/internal/utils/id"
)

const schema = `CREATE TABLE IF NOT EXISTS student_leads (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    current_program TEXT NOT NULL,
    institution_name TEXT NOT NULL DEFAULT '',
    user_category TEXT NOT NULL DEFAULT '',
    study_preference TEXT NOT NULL DEFAULT '',
    postgrad_intent INTEGER,
    psych_scores TEXT,
    roadmap_result TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

const selectLead = `SELECT id, first_name, last_name, email, current_program, institution_name, user_category, study_preference, postgrad_intent, psych_scores, roadmap_result, created_at, updated_at FROM student_leads`

const insertLead = `INSERT INTO student_leads (id, first_name, last_name, email, current_program, institution_name, user_category, study_preference, postgrad_intent, psych_scores, roadmap_result, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(email) DO NOTHING`

const updateLead = `UPDATE student_leads SET psych_scores = COALESCE(?, psych_scores), roadmap_result = COALESCE(?, roadmap_result), updated_at = ? WHERE id = ?`

// Store is a lead.Store on database/sql with the modernc SQLite driver.
type Store struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

var _ lead.Store = (*Store)(nil)

// Open opens (or creates) the database at dsn and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	store := NewWithDB(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: logging.NewComponentLogger("LeadStore"),
		now:    time.Now,
	}
}

// EnsureSchema creates the leads table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure lead schema: %w", err)
	}
	s.logger.Debug("lead schema ready")
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*lead.Lead, error) {
	return s.queryOne(ctx, selectLead+` WHERE email = ?`, lead.NormalizeEmail(email))
}

func (s *Store) FindByID(ctx context.Context, leadID string) (*lead.Lead, error) {
	return s.queryOne(ctx, selectLead+` WHERE id = ?`, leadID)
}

func (s *Store) InsertIfAbsent(ctx context.Context, record *lead.Lead) (*lead.Lead, error) {
	if record == nil {
		return nil, apperrors.NewValidationError("lead", "lead is required")
	}
	created := *record
	if created.ID == "" {
		created.ID = id.NewLeadID()
	}
	created.Email = lead.NormalizeEmail(created.Email)
	now := s.now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	scores, err := encodeScores(created.PsychScores)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, insertLead,
		created.ID,
		created.FirstName,
		created.LastName,
		created.Email,
		created.CurrentProgram,
		created.InstitutionName,
		created.UserCategory,
		created.StudyPreference,
		encodeIntent(created.PostgradIntent),
		scores,
		nullableText(created.RoadmapResult),
		formatTime(created.CreatedAt),
		formatTime(created.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrLeadExists
		}
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	if affected == 0 {
		return nil, apperrors.ErrLeadExists
	}
	return &created, nil
}

func (s *Store) UpdateByID(ctx context.Context, leadID string, patch lead.Patch) error {
	scores, err := encodeScores(patch.PsychScores)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, updateLead, scores, nullableText(patch.RoadmapResult), formatTime(s.now().UTC()), leadID)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *Store) queryOne(ctx context.Context, query string, arg any) (*lead.Lead, error) {
	var (
		record    lead.Lead
		intent    sql.NullInt64
		scores    sql.NullString
		roadmap   sql.NullString
		createdAt string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&record.ID,
		&record.FirstName,
		&record.LastName,
		&record.Email,
		&record.CurrentProgram,
		&record.InstitutionName,
		&record.UserCategory,
		&record.StudyPreference,
		&intent,
		&scores,
		&roadmap,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query lead: %w", err)
	}
	if intent.Valid {
		value := intent.Int64 != 0
		record.PostgradIntent = &value
	}
	if scores.Valid && scores.String != "" {
		if err := json.Unmarshal([]byte(scores.String), &record.PsychScores); err != nil {
			return nil, fmt.Errorf("decode psych scores: %w", err)
		}
	}
	if roadmap.Valid && roadmap.String != "" {
		record.RoadmapResult = json.RawMessage(roadmap.String)
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &record, nil
}

func encodeScores(scores quiz.Vector) (any, error) {
	if scores == nil {
		return nil, nil
	}
	raw, err := json.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("encode psych scores: %w", err)
	}
	return string(raw), nil
}

func encodeIntent(intent *bool) any {
	if intent == nil {
		return nil
	}
	if *intent {
		return int64(1)
	}
	return int64(0)
}

func nullableText(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
