// Package postgresstore persists leads in the student_leads table on Postgres.
package postgresstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"architect/internal/domain/lead"
	apperrors "architect/internal/errors"
	"architect/internal/logging"
	"architect/internal/utils/id"
)

const leadsTable = "student_leads"

const leadColumns = `id, first_name, last_name, email, current_program, institution_name, user_category,
    study_preference, postgrad_intent, psych_scores, roadmap_result, created_at, updated_at`

// Store is a lead.Store backed by pgx.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	now    func() time.Time
}

var _ lead.Store = (*Store)(nil)

// New constructs a Postgres-backed lead store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: logging.NewComponentLogger("LeadStore"),
		now:    time.Now,
	}
}

// EnsureSchema creates the leads table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("lead store not initialized")
	}
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT NOT NULL,
    current_program TEXT NOT NULL,
    institution_name TEXT NOT NULL DEFAULT '',
    user_category TEXT NOT NULL DEFAULT '',
    study_preference TEXT NOT NULL DEFAULT '',
    postgrad_intent BOOLEAN,
    psych_scores JSONB,
    roadmap_result JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`, leadsTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_email ON %s (email);`, leadsTable, leadsTable),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure lead schema: %w", err)
		}
	}
	s.logger.Debug("lead schema ready")
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*lead.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, leadColumns, leadsTable)
	return s.queryOne(ctx, query, lead.NormalizeEmail(email))
}

func (s *Store) FindByID(ctx context.Context, leadID string) (*lead.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, leadColumns, leadsTable)
	return s.queryOne(ctx, query, leadID)
}

func (s *Store) InsertIfAbsent(ctx context.Context, record *lead.Lead) (*lead.Lead, error) {
	if record == nil {
		return nil, apperrors.NewValidationError("lead", "lead is required")
	}
	leadID := record.ID
	if leadID == "" {
		leadID = id.NewLeadID()
	}
	now := s.now().UTC()
	scores, err := encodeScores(record)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, first_name, last_name, email, current_program, institution_name, user_category,
    study_preference, postgrad_intent, psych_scores, roadmap_result, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
ON CONFLICT (email) DO NOTHING
RETURNING %s`, leadsTable, leadColumns)

	created, err := scanLead(s.pool.QueryRow(ctx, query,
		leadID,
		record.FirstName,
		record.LastName,
		lead.NormalizeEmail(record.Email),
		record.CurrentProgram,
		record.InstitutionName,
		record.UserCategory,
		record.StudyPreference,
		record.PostgradIntent,
		scores,
		nullableJSON(record.RoadmapResult),
		now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrLeadExists
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrLeadExists
		}
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return created, nil
}

func (s *Store) UpdateByID(ctx context.Context, leadID string, patch lead.Patch) error {
	var scores any
	if patch.PsychScores != nil {
		raw, err := json.Marshal(patch.PsychScores)
		if err != nil {
			return fmt.Errorf("encode psych scores: %w", err)
		}
		scores = raw
	}
	query := fmt.Sprintf(`
UPDATE %s
SET psych_scores = COALESCE($2, psych_scores),
    roadmap_result = COALESCE($3, roadmap_result),
    updated_at = $4
WHERE id = $1`, leadsTable)

	tag, err := s.pool.Exec(ctx, query, leadID, scores, nullableJSON(patch.RoadmapResult), s.now().UTC())
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *Store) queryOne(ctx context.Context, query string, arg any) (*lead.Lead, error) {
	record, err := scanLead(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query lead: %w", err)
	}
	return record, nil
}

func scanLead(row pgx.Row) (*lead.Lead, error) {
	var (
		record  lead.Lead
		scores  []byte
		roadmap []byte
	)
	if err := row.Scan(
		&record.ID,
		&record.FirstName,
		&record.LastName,
		&record.Email,
		&record.CurrentProgram,
		&record.InstitutionName,
		&record.UserCategory,
		&record.StudyPreference,
		&record.PostgradIntent,
		&scores,
		&roadmap,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &record.PsychScores); err != nil {
			return nil, fmt.Errorf("decode psych scores: %w", err)
		}
	}
	if len(roadmap) > 0 {
		record.RoadmapResult = json.RawMessage(roadmap)
	}
	return &record, nil
}

func encodeScores(record *lead.Lead) (any, error) {
	if record.PsychScores == nil {
		return nil, nil
	}
	raw, err := json.Marshal(record.PsychScores)
	if err != nil {
		return nil, fmt.Errorf("encode psych scores: %w", err)
	}
	return raw, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
