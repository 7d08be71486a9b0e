package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"architect/internal/config"
	"architect/internal/domain/quiz"
	apperrors "architect/internal/errors"
	"architect/internal/logging"
)

const matchBody = `{
  "top_role": {"title": "Cloud Engineer", "match_percentage": 94, "description": "High demand in Gauteng.", "personality_notes": "Strong tech axis."},
  "roadmap": {
    "year_1": {"semester_1": "Programming 1, Computer Literacy", "semester_2": ["Programming 2", "Networks 1"]},
    "year_2": {"semester_1": "Databases, Systems Analysis", "semester_2": "Web Dev, OOP", "mandatory_major": "Network Engineering"},
    "year_3": {"semester_1": "Cloud, Security", "semester_2": "Project, Ethics", "continued_major": "Network Engineering III"}
  },
  "top_5_roles": [{"title": "Cloud Engineer", "percentage": 94}, {"title": "Network Admin", "percentage": 88}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(config.AdvisorConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, MaxResponseBytes: 4096},
		append([]Option{WithLogger(logging.Nop())}, opts...)...)
	require.NoError(t, err)
	return client
}

func TestMatchSendsArrayScoresAndDecodesRoadmap(t *testing.T) {
	bodies := make(chan []byte, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EndpointMatch, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		_, _ = io.WriteString(w, matchBody)
	})

	vector := quiz.FromArray([5]float64{3, 1, 0.5, 0, 1.5})
	roadmap, err := client.Match(context.Background(), MatchRequest{
		Scores:        ScoresFrom(vector),
		Program:       "Diploma in Information Technology",
		SelectedMajor: "Network Engineering",
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	assert.Equal(t, []any{3.0, 1.0, 0.5, 0.0, 1.5}, got["scores"])
	assert.Equal(t, "Network Engineering", got["selected_major"])
	assert.Equal(t, "Cloud Engineer", roadmap.TopRole.Title)
	assert.Equal(t, Modules{"Programming 1", "Computer Literacy"}, roadmap.Roadmap.Year1.Semester1)
	assert.Equal(t, Modules{"Programming 2", "Networks 1"}, roadmap.Roadmap.Year1.Semester2)
	assert.Equal(t, "Network Engineering", roadmap.Roadmap.Year2.MandatoryMajor)
	assert.Len(t, roadmap.Top5Roles, 2)
}

func TestNon2xxIsServiceError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"Failed to generate roadmap."}`)
	})

	_, err := client.Match(context.Background(), MatchRequest{Scores: DefaultScores, Program: "x"})
	var svcErr *apperrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, EndpointMatch, svcErr.Endpoint)
	assert.Equal(t, apperrors.MessageServiceError, apperrors.UserMessage(err))
	assert.Equal(t, apperrors.KindService, apperrors.KindOf(err))
}

func TestSchemaViolationIsServiceError(t *testing.T) {
	cases := map[string]struct {
		call func(*Client) error
		body string
		msg  string
	}{
		"match without top role": {
			call: func(c *Client) error { _, err := c.Match(context.Background(), MatchRequest{}); return err },
			body: `{"roadmap": {}}`,
			msg:  MessageMatchFailed,
		},
		"pivot with string score": {
			call: func(c *Client) error { _, err := c.Pivot(context.Background(), PivotRequest{}); return err },
			body: `{"feasibility_score": "high", "gap_analysis": "a", "richfield_bridge": "b"}`,
			msg:  MessagePivotFailed,
		},
		"postgrad missing field": {
			call: func(c *Client) error { _, err := c.Postgrad(context.Background(), PostgradRequest{}); return err },
			body: `{"career_multiplier": "x", "focus_areas": "y"}`,
			msg:  MessagePostgradFailed,
		},
		"chat not json": {
			call: func(c *Client) error { _, err := c.Chat(context.Background(), ChatRequest{}); return err },
			body: `hello`,
			msg:  MessageChatFailed,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			})
			err := tc.call(client)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindService, apperrors.KindOf(err))
			assert.Equal(t, tc.msg, apperrors.UserMessage(err))
		})
	}
}

func TestPivotPostgradChatDecode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case EndpointPivot:
			_, _ = io.WriteString(w, `{"feasibility_score": 72, "gap_analysis": "Needs design skills.", "richfield_bridge": "Take the UX elective."}`)
		case EndpointPostgrad:
			_, _ = io.WriteString(w, `{"career_multiplier": "1.4x", "focus_areas": "AI, Security", "comparison_note": "Faster promotion."}`)
		case EndpointChat:
			_, _ = io.WriteString(w, `{"response": "Try the **AWS** track."}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	pivot, err := client.Pivot(ctx, PivotRequest{DreamJob: "UX Designer"})
	require.NoError(t, err)
	assert.Equal(t, 72.0, pivot.FeasibilityScore)
	assert.Empty(t, pivot.MarketReality)

	pg, err := client.Postgrad(ctx, PostgradRequest{PostgradChoice: "Honours"})
	require.NoError(t, err)
	assert.Equal(t, "1.4x", pg.CareerMultiplier)

	reply, err := client.Chat(ctx, ChatRequest{Message: "Which certs?"})
	require.NoError(t, err)
	assert.Equal(t, "Try the **AWS** track.", reply.Response)
}

func TestOversizedBodyIsServiceError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response": "`+strings.Repeat("a", 5000)+`"}`)
	})
	_, err := client.Chat(context.Background(), ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindService, apperrors.KindOf(err))
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithBreakerConfig(apperrors.CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.Chat(ctx, ChatRequest{Message: "hi"})
		require.Error(t, err)
	}
	assert.Equal(t, apperrors.StateOpen, client.Breaker().State())

	_, err := client.Chat(ctx, ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.IsDegraded(err))
	assert.Equal(t, apperrors.KindService, apperrors.KindOf(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestModulesUnmarshal(t *testing.T) {
	var y Year
	require.NoError(t, json.Unmarshal([]byte(`{"semester_1": "A, B ,", "semester_2": null}`), &y))
	assert.Equal(t, Modules{"A", "B"}, y.Semester1)
	assert.Nil(t, y.Semester2)
	assert.Equal(t, "A, B", y.Semester1.String())

	assert.Error(t, json.Unmarshal([]byte(`{"semester_1": 5}`), &y))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(config.AdvisorConfig{})
	assert.Error(t, err)
}
