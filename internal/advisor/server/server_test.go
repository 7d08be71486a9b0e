package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"architect/internal/advisor"
	apperrors "architect/internal/errors"
	"architect/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	mu      sync.Mutex
	json    string
	text    string
	err     error
	prompts []string
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.json, f.err
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func newTestServer(t *testing.T, gen Generator, opts ...Option) *Server {
	t.Helper()
	srv, err := New(gen, append([]Option{WithLogger(logging.Nop())}, opts...)...)
	require.NoError(t, err)
	return srv
}

func post(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestMatchRepairsAndValidatesModelOutput(t *testing.T) {
	gen := &fakeGenerator{json: `{"top_role": {"title": "Data Analyst", "match_percentage": 91,}, "roadmap": {"year_1": {"semester_1": "Stats, Python"}},}`}
	srv := newTestServer(t, gen)

	rec := post(t, srv, "/api/match", `{"program": "Bachelor of Commerce (BCom) - Route 1 (AGA)", "selected_major": "Accounting", "scores": [1, 4, 2, 0.5, 0.5]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var roadmap advisor.Roadmap
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roadmap))
	assert.Equal(t, "Data Analyst", roadmap.TopRole.Title)
	assert.Equal(t, advisor.Modules{"Stats", "Python"}, roadmap.Roadmap.Year1.Semester1)

	prompt := gen.lastPrompt()
	assert.Contains(t, prompt, "Student Program Chosen: 'Bachelor of Commerce (BCom) - Route 1 (AGA)'")
	assert.Contains(t, prompt, "[1, 4, 2, 0.5, 0.5]")
	assert.Contains(t, prompt, "focus on the 'Accounting' major")
}

func TestMatchDefaultsScoresAndProgram(t *testing.T) {
	gen := &fakeGenerator{json: `{"top_role": {"title": "Developer"}, "roadmap": {}}`}
	srv := newTestServer(t, gen)

	rec := post(t, srv, "/api/match", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	prompt := gen.lastPrompt()
	assert.Contains(t, prompt, "[50, 50, 50, 50, 50]")
	assert.Contains(t, prompt, "'Information Technology'")
	assert.NotContains(t, prompt, "focus on the")
}

func TestMatchFailureReturns500(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"generator error": {err: errors.New("quota exceeded")},
		"schema mismatch": {json: `{"roadmap": {}}`},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			rec := post(t, newTestServer(t, gen), "/api/match", `{"program": "x"}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"error":"Failed to generate roadmap."}`, rec.Body.String())
		})
	}
}

func TestPivotPostgradChatFallBack(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("unavailable")}
	srv := newTestServer(t, gen)

	rec := post(t, srv, "/api/pivot", `{"dream_job": "Pilot"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"feasibility_score":50,"gap_analysis":"System busy.","richfield_bridge":"Use electives.","market_reality":"Market fluctuates."}`, rec.Body.String())

	rec = post(t, srv, "/api/postgrad", `{"postgrad_choice": "MBA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"career_multiplier":"Increases earnings.","focus_areas":"Advanced theory.","comparison_note":"Postgrads enter at management level."}`, rec.Body.String())

	rec = post(t, srv, "/api/chat", `{"message": "hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"I'm experiencing a bit of network traffic right now. Could you ask me that again?"}`, rec.Body.String())
}

func TestChatReturnsText(t *testing.T) {
	gen := &fakeGenerator{text: "Consider the AWS certification."}
	srv := newTestServer(t, gen)

	rec := post(t, srv, "/api/chat", `{"message": "Which certs?", "program": "Diploma in Information Technology", "scores": [1,0,0,0,0]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"Consider the AWS certification."}`, rec.Body.String())
	assert.Contains(t, gen.lastPrompt(), `Student asks: "Which certs?"`)
	assert.Contains(t, gen.lastPrompt(), "IBM/AWS/CISCO")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	cb := apperrors.NewCircuitBreaker("gemini-test", apperrors.CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour})
	srv := newTestServer(t, gen, WithBreaker(cb))

	for i := 0; i < 3; i++ {
		post(t, srv, "/api/pivot", `{}`)
	}
	assert.Equal(t, apperrors.StateOpen, cb.State())
	gen.mu.Lock()
	calls := len(gen.prompts)
	gen.mu.Unlock()
	assert.Equal(t, 2, calls)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), cb.State().String())
}
