package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"architect/internal/domain/quiz"
)

// Scores is the trait vector in the backend's array order: tech, business, people, creative,
// hands-on.
type Scores [5]float64

// DefaultScores is what the backend assumes when a request carries none.
var DefaultScores = Scores{50, 50, 50, 50, 50}

// ScoresFrom adapts the canonical vector to the wire array.
func ScoresFrom(v quiz.Vector) Scores {
	return Scores(v.Array())
}

// Vector adapts the wire array back to the canonical vector.
func (s Scores) Vector() quiz.Vector {
	return quiz.FromArray(s)
}

// MatchRequest is the body of POST /api/match.
type MatchRequest struct {
	Scores        Scores `json:"scores"`
	Program       string `json:"program"`
	SelectedMajor string `json:"selected_major,omitempty"`
}

// PivotRequest is the body of POST /api/pivot.
type PivotRequest struct {
	Scores        Scores `json:"scores"`
	Program       string `json:"program"`
	SelectedMajor string `json:"selected_major,omitempty"`
	DreamJob      string `json:"dream_job"`
}

// PostgradRequest is the body of POST /api/postgrad.
type PostgradRequest struct {
	Program        string `json:"program"`
	SelectedMajor  string `json:"selected_major,omitempty"`
	Scores         Scores `json:"scores"`
	PostgradChoice string `json:"postgrad_choice"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message       string `json:"message"`
	Program       string `json:"program"`
	SelectedMajor string `json:"selected_major,omitempty"`
	Scores        Scores `json:"scores"`
}

// Roadmap is the match result: the top role, a ranked shortlist and a three-year curriculum.
type Roadmap struct {
	TopRole   TopRole      `json:"top_role"`
	Top5Roles []RankedRole `json:"top_5_roles,omitempty"`
	Roadmap   Curriculum   `json:"roadmap"`
	FocusArea string       `json:"focus_area,omitempty"`
}

type TopRole struct {
	Title            string  `json:"title"`
	MatchPercentage  float64 `json:"match_percentage,omitempty"`
	Description      string  `json:"description,omitempty"`
	PersonalityNotes string  `json:"personality_notes,omitempty"`
}

type RankedRole struct {
	Title      string  `json:"title"`
	Percentage float64 `json:"percentage,omitempty"`
}

// Curriculum is keyed by year.
type Curriculum struct {
	Year1 Year `json:"year_1"`
	Year2 Year `json:"year_2"`
	Year3 Year `json:"year_3"`
}

// Year lists the modules per semester. Year 2 names the mandatory major and year 3 its
// continuation.
type Year struct {
	Semester1      Modules `json:"semester_1,omitempty"`
	Semester2      Modules `json:"semester_2,omitempty"`
	MandatoryMajor string  `json:"mandatory_major,omitempty"`
	ContinuedMajor string  `json:"continued_major,omitempty"`
}

// Modules is a semester's module list. The backend sends either a list or one
// comma-separated string.
type Modules []string

func (m *Modules) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*m = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		var out Modules
		for _, part := range strings.Split(text, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*m = out
		return nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return fmt.Errorf("modules: %w", err)
	}
	*m = list
	return nil
}

// String joins the modules for display.
func (m Modules) String() string {
	return strings.Join(m, ", ")
}

// PivotResult is the dream-job gap analysis.
type PivotResult struct {
	FeasibilityScore float64 `json:"feasibility_score"`
	GapAnalysis      string  `json:"gap_analysis"`
	RichfieldBridge  string  `json:"richfield_bridge"`
	MarketReality    string  `json:"market_reality,omitempty"`
}

// PostgradResult is the postgraduate return-on-investment summary.
type PostgradResult struct {
	CareerMultiplier string `json:"career_multiplier"`
	FocusAreas       string `json:"focus_areas"`
	ComparisonNote   string `json:"comparison_note"`
}

// ChatReply is the assistant's markdown answer.
type ChatReply struct {
	Response string `json:"response"`
}
