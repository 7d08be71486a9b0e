package lead

import (
	"encoding/json"
	"testing"
	"time"

	"architect/internal/domain/quiz"
)

func TestProfileToLeadDefaults(t *testing.T) {
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	l := Profile{
		FirstName: " Thandi ",
		LastName:  "Nkosi",
		Email:     "Thandi@MY.Richfield.ac.za",
		Program:   "Diploma in Information Technology",
	}.ToLead("lead-1", now)

	if l.Email != "thandi@my.richfield.ac.za" {
		t.Fatalf("expected normalized email, got %q", l.Email)
	}
	if l.FirstName != "Thandi" {
		t.Fatalf("expected trimmed first name, got %q", l.FirstName)
	}
	if l.InstitutionName != DefaultInstitution || l.UserCategory != DefaultUserCategory {
		t.Fatalf("unexpected defaults %q/%q", l.InstitutionName, l.UserCategory)
	}
	if !l.CreatedAt.Equal(now) || l.ID != "lead-1" {
		t.Fatalf("unexpected identity fields %+v", l)
	}
}

func TestLeadHasRoadmap(t *testing.T) {
	l := &Lead{}
	if l.HasRoadmap() {
		t.Fatal("empty lead should not have a roadmap")
	}
	l.RoadmapResult = json.RawMessage("null")
	if l.HasRoadmap() {
		t.Fatal("null roadmap should not count")
	}
	l.RoadmapResult = json.RawMessage(`{"top_role":{"title":"Cloud Engineer"}}`)
	if !l.HasRoadmap() {
		t.Fatal("expected stored roadmap")
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Fatal("zero patch should be empty")
	}
	if (Patch{PsychScores: quiz.NewVector()}).IsEmpty() {
		t.Fatal("patch with scores should not be empty")
	}
}
