package sqlitestore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"architect/internal/domain/lead"
	"architect/internal/domain/quiz"
	apperrors "architect/internal/errors"
)

var leadRowColumns = []string{
	"id", "first_name", "last_name", "email", "current_program", "institution_name", "user_category",
	"study_preference", "postgrad_intent", "psych_scores", "roadmap_result", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := NewWithDB(db)
	store.now = func() time.Time { return time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC) }
	return store, mock
}

func TestInsertIfAbsentCreatesLead(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(insertLead)).
		WithArgs("lead-1", "Kagiso", "Molefe", "kagiso@my.richfield.ac.za", "Diploma in Information Technology",
			"Richfield", "university", "", nil, nil, nil, "2026-02-01T08:30:00Z", "2026-02-01T08:30:00Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := store.InsertIfAbsent(context.Background(), &lead.Lead{
		ID:              "lead-1",
		FirstName:       "Kagiso",
		LastName:        "Molefe",
		Email:           "Kagiso@MY.richfield.ac.za",
		CurrentProgram:  "Diploma in Information Technology",
		InstitutionName: "Richfield",
		UserCategory:    "university",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.Email != "kagiso@my.richfield.ac.za" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertIfAbsentConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(insertLead)).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.InsertIfAbsent(context.Background(), &lead.Lead{ID: "lead-2", Email: "dup@my.richfield.ac.za"})
	if !errors.Is(err, apperrors.ErrLeadExists) {
		t.Fatalf("expected ErrLeadExists, got %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(insertLead)).WillReturnError(errors.New("UNIQUE constraint failed: student_leads.id"))
	_, err = store.InsertIfAbsent(context.Background(), &lead.Lead{ID: "lead-2", Email: "other@my.richfield.ac.za"})
	if !errors.Is(err, apperrors.ErrLeadExists) {
		t.Fatalf("expected ErrLeadExists for unique violation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByEmailDecodesRow(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows(leadRowColumns).AddRow(
		"lead-3", "Naledi", "Khumalo", "naledi@my.richfield.ac.za", "Bachelor of Business Administration (BBA)",
		"Richfield", "university", "", int64(1), "[2,3,1,0,0]", `{"top_role":{"title":"Marketing Coordinator"}}`,
		"2026-01-10T10:00:00Z", "2026-01-11T10:00:00Z",
	)
	mock.ExpectQuery(regexp.QuoteMeta(selectLead + ` WHERE email = ?`)).
		WithArgs("naledi@my.richfield.ac.za").
		WillReturnRows(rows)

	got, err := store.FindByEmail(context.Background(), " Naledi@my.richfield.ac.za ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.PsychScores.Equal(quiz.FromArray([5]float64{2, 3, 1, 0, 0})) {
		t.Fatalf("unexpected scores %v", got.PsychScores.Array())
	}
	if got.PostgradIntent == nil || !*got.PostgradIntent {
		t.Fatal("expected postgrad intent true")
	}
	if !got.HasRoadmap() || got.UpdatedAt.Day() != 11 {
		t.Fatalf("unexpected lead %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectLead + ` WHERE id = ?`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(leadRowColumns))

	if _, err := store.FindByID(context.Background(), "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateByID(t *testing.T) {
	store, mock := newMockStore(t)
	roadmap := json.RawMessage(`{"top_role":{"title":"Auditor"}}`)

	mock.ExpectExec(regexp.QuoteMeta(updateLead)).
		WithArgs("[1,0,0,0,0]", string(roadmap), "2026-02-01T08:30:00Z", "lead-4").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(updateLead)).
		WithArgs(nil, nil, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateByID(context.Background(), "lead-4", lead.Patch{
		PsychScores:   quiz.FromArray([5]float64{1, 0, 0, 0, 0}),
		RoadmapResult: roadmap,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.UpdateByID(context.Background(), "missing", lead.Patch{}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	created, err := store.InsertIfAbsent(ctx, &lead.Lead{
		FirstName:      "Zanele",
		LastName:       "Mthembu",
		Email:          "zanele@richfield.ac.za",
		CurrentProgram: "Bachelor of Public Management",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.InsertIfAbsent(ctx, &lead.Lead{Email: "ZANELE@richfield.ac.za"}); !errors.Is(err, apperrors.ErrLeadExists) {
		t.Fatalf("expected ErrLeadExists, got %v", err)
	}
	got, err := store.FindByID(ctx, created.ID)
	if err != nil || got.FirstName != "Zanele" {
		t.Fatalf("find: %+v %v", got, err)
	}
}
