package results

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"architect/internal/advisor"
	"architect/internal/domain/lead"
	"architect/internal/domain/quiz"
	apperrors "architect/internal/errors"
	"architect/internal/leads/memorystore"
	"architect/internal/localstore"
	"architect/internal/logging"
	"architect/internal/observability"
)

const (
	bscIT  = "Bachelor of Science in Information Technology"
	device = "device-1"
	email  = "402001234@my.richfield.ac.za"
)

type fakeAdvisor struct {
	mu         sync.Mutex
	matchCalls atomic.Int32
	matches    []advisor.MatchRequest
	matchFn    func(context.Context, advisor.MatchRequest) (*advisor.Roadmap, error)
	pivotFn    func(context.Context, advisor.PivotRequest) (*advisor.PivotResult, error)
	postgradFn func(context.Context, advisor.PostgradRequest) (*advisor.PostgradResult, error)
	chatFn     func(context.Context, advisor.ChatRequest) (*advisor.ChatReply, error)
}

func (f *fakeAdvisor) Match(ctx context.Context, req advisor.MatchRequest) (*advisor.Roadmap, error) {
	f.matchCalls.Add(1)
	f.mu.Lock()
	f.matches = append(f.matches, req)
	fn := f.matchFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return roadmapFor(req.SelectedMajor), nil
}

func (f *fakeAdvisor) Pivot(ctx context.Context, req advisor.PivotRequest) (*advisor.PivotResult, error) {
	if f.pivotFn != nil {
		return f.pivotFn(ctx, req)
	}
	return &advisor.PivotResult{FeasibilityScore: 72, GapAnalysis: "gap for " + req.DreamJob, RichfieldBridge: "bridge"}, nil
}

func (f *fakeAdvisor) Postgrad(ctx context.Context, req advisor.PostgradRequest) (*advisor.PostgradResult, error) {
	if f.postgradFn != nil {
		return f.postgradFn(ctx, req)
	}
	return &advisor.PostgradResult{CareerMultiplier: "2x", FocusAreas: req.PostgradChoice, ComparisonNote: "note"}, nil
}

func (f *fakeAdvisor) Chat(ctx context.Context, req advisor.ChatRequest) (*advisor.ChatReply, error) {
	if f.chatFn != nil {
		return f.chatFn(ctx, req)
	}
	return &advisor.ChatReply{Response: "re: " + req.Message}, nil
}

func (f *fakeAdvisor) lastMatch() advisor.MatchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[len(f.matches)-1]
}

func roadmapFor(major string) *advisor.Roadmap {
	return &advisor.Roadmap{
		TopRole: advisor.TopRole{Title: "Software Developer for " + major, MatchPercentage: 91},
		Roadmap: advisor.Curriculum{Year2: advisor.Year{MandatoryMajor: major}},
	}
}

func serviceError(endpoint, message string) error {
	return &apperrors.ServiceError{Service: advisor.ServiceName, Endpoint: endpoint, StatusCode: 500, Message: message}
}

type revoker struct{ revoked []string }

func (r *revoker) SignOut(_ context.Context, sessionID string) error {
	r.revoked = append(r.revoked, sessionID)
	return nil
}

type resetter struct{ devices []string }

func (r *resetter) Reset(device string) { r.devices = append(r.devices, device) }

type harness struct {
	svc      *Service
	adv      *fakeAdvisor
	leads    *memorystore.Store
	local    *localstore.Memory
	sessions *revoker
	quiz     *resetter
	leadID   string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	local, err := localstore.NewMemory(16)
	require.NoError(t, err)
	h := &harness{
		adv:      &fakeAdvisor{},
		leads:    memorystore.New(),
		local:    local,
		sessions: &revoker{},
		quiz:     &resetter{},
	}
	opts = append([]Option{WithSessions(h.sessions), WithQuiz(h.quiz), WithLogger(logging.Nop())}, opts...)
	h.svc, err = NewService(h.leads, local, h.adv, opts...)
	require.NoError(t, err)
	return h
}

func (h *harness) seedDevice(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	profile := lead.Profile{FirstName: "Thandi", LastName: "Mokoena", Email: email, Program: bscIT}
	created, err := h.leads.InsertIfAbsent(ctx, profile.ToLead("", time.Now()))
	require.NoError(t, err)
	h.leadID = created.ID
	require.NoError(t, localstore.SetJSON(ctx, h.local, device, localstore.KeyProfile, profile))
	require.NoError(t, localstore.SetJSON(ctx, h.local, device, localstore.KeyVector, quiz.FromArray([5]float64{4, 1, 0, 2, 3})))
	require.NoError(t, localstore.SetJSON(ctx, h.local, device, localstore.KeyLeadID, created.ID))
}

func TestMountRedirectsWithoutDeviceState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Mount(ctx, device, Identity{})
	var missingErr *apperrors.MissingPrerequisiteError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, localstore.KeyProfile, missingErr.Missing)
	assert.Equal(t, "/", apperrors.RedirectFor(err))

	require.NoError(t, localstore.SetJSON(ctx, h.local, device, localstore.KeyProfile, lead.Profile{Program: bscIT}))
	_, err = h.svc.Mount(ctx, device, Identity{})
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, localstore.KeyVector, missingErr.Missing)

	require.NoError(t, h.local.Set(ctx, device, localstore.KeyVector, []byte("{broken")))
	_, err = h.svc.Mount(ctx, device, Identity{})
	require.ErrorAs(t, err, &missingErr)
	assert.Zero(t, h.adv.matchCalls.Load())
}

func TestMountAnonymousGeneratesAndPersistsRoadmap(t *testing.T) {
	h := newHarness(t)
	h.seedDevice(t)
	ctx := context.Background()

	view, err := h.svc.Mount(ctx, device, Identity{})
	require.NoError(t, err)
	require.NotNil(t, view.Roadmap)
	assert.Equal(t, "Programming", view.FocusArea)
	assert.Equal(t, lead.MajorsFor(bscIT), view.Majors)
	assert.Equal(t, []ChatTurn{{Role: RoleAssistant, Text: Greeting}}, view.Chat)
	assert.False(t, view.Loading.Roadmap)
	assert.Equal(t, advisor.Scores{4, 1, 0, 2, 3}, h.adv.lastMatch().Scores)
	assert.Equal(t, "Programming", h.adv.lastMatch().SelectedMajor)

	stored, err := h.leads.FindByID(ctx, h.leadID)
	require.NoError(t, err)
	require.True(t, stored.HasRoadmap())
	assert.True(t, stored.PsychScores.Equal(quiz.FromArray([5]float64{4, 1, 0, 2, 3})))
	var persisted advisor.Roadmap
	require.NoError(t, json.Unmarshal(stored.RoadmapResult, &persisted))
	assert.Equal(t, "Programming", persisted.FocusArea)

	_, err = h.svc.Mount(ctx, device, Identity{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.adv.matchCalls.Load())
}

func TestMountWithSessionReusesStoredRoadmap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record := lead.Profile{FirstName: "Sipho", LastName: "Dube", Email: email, Program: bscIT}.ToLead("", time.Now())
	record.PsychScores = quiz.FromArray([5]float64{1, 2, 3, 4, 5})
	stored := roadmapFor("Network Engineering")
	stored.FocusArea = "Network Engineering"
	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	record.RoadmapResult = raw
	_, err = h.leads.InsertIfAbsent(ctx, record)
	require.NoError(t, err)

	view, err := h.svc.Mount(ctx, "fresh-device", Identity{SessionID: "sess-1", Email: email})
	require.NoError(t, err)
	assert.Zero(t, h.adv.matchCalls.Load())
	assert.True(t, view.Authenticated)
	assert.Equal(t, "Network Engineering", view.FocusArea)
	assert.Equal(t, "Sipho", view.FirstName)
	require.NotNil(t, view.Roadmap)
	assert.Equal(t, "Software Developer for Network Engineering", view.Roadmap.TopRole.Title)
}

func TestMountWithSessionGeneratesWhenRowHasNoRoadmap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.leads.InsertIfAbsent(ctx, lead.Profile{FirstName: "A", LastName: "B", Email: email, Program: bscIT}.ToLead("", time.Now()))
	require.NoError(t, err)

	view, err := h.svc.Mount(ctx, device, Identity{SessionID: "sess-1", Email: email})
	require.NoError(t, err)
	require.NotNil(t, view.Roadmap)
	assert.Equal(t, int32(1), h.adv.matchCalls.Load())
	assert.Equal(t, advisor.DefaultScores, h.adv.lastMatch().Scores)
}

func TestRoadmapFailureKeepsPriorState(t *testing.T) {
	h := newHarness(t)
	h.seedDevice(t)
	ctx := context.Background()

	view, err := h.svc.Mount(ctx, device, Identity{})
	require.NoError(t, err)
	prior := view.Roadmap

	h.adv.matchFn = func(context.Context, advisor.MatchRequest) (*advisor.Roadmap, error) {
		return nil, serviceError(advisor.EndpointMatch, advisor.MessageMatchFailed)
	}
	view, err = h.svc.RequestRoadmap(ctx, device, Identity{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindService, apperrors.KindOf(err))
	assert.Equal(t, prior, view.Roadmap)
	assert.False(t, view.Loading.Roadmap)
}

func TestToggleFocusArea(t *testing.T) {
	h := newHarness(t)
	h.seedDevice(t)
	ctx := context.Background()

	_, err := h.svc.Mount(ctx, device, Identity{})
	require.NoError(t, err)
	_, err = h.svc.RequestPivot(ctx, device, Identity{}, "Game Designer")
	require.NoError(t, err)
	_, err = h.svc.RequestPostgrad(ctx, device, Identity{}, "Master of Business Administration (MBA)")
	require.NoError(t, err)

	view, err := h.svc.ToggleFocusArea(ctx, device, Identity{}, "Programming")
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.adv.matchCalls.Load())
	assert.NotNil(t, view.Pivot)

	view, err = h.svc.ToggleFocusArea(ctx, device, Identity{}, "IT Management")
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.adv.matchCalls.Load())
	assert.Equal(t, "IT Management", h.adv.lastMatch().SelectedMajor)
	assert.Equal(t, "IT Management", view.FocusArea)
	assert.Nil(t, view.Pivot)
	assert.Nil(t, view.Postgrad)
	assert.Equal(t, "Software Developer for IT Management", view.Roadmap.TopRole.Title)

	_, err = h.svc.ToggleFocusArea(ctx, device, Identity{}, "Accounting")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, int32(2), h.adv.matchCalls.Load())
}

func TestFailedToggleRestoresFocusAndCanBeRetried(t *testing.T) {
	h := newHarness(t)
	h.seedDevice(t)
	ctx := context.Background()

	view, err := h.svc.Mount(ctx, device, Identity{})
	require.NoError(t, err)
	require.Equal(t, "Programming", view.FocusArea)
	prior := view.Roadmap

	h.adv.mu.Lock()
	h.adv.matchFn = func(context.Context, advisor.MatchRequest) (*advisor.Roadmap, error) {
		return nil, serviceError(advisor.EndpointMatch, advisor.MessageMatchFailed)
	}
	h.adv.mu.Unlock()
	view, err = h.svc.ToggleFocusArea(ctx, device, Identity{}, "IT Management")
	require.Error(t, err)
	assert.Equal(t, "Programming", view.FocusArea)
	assert.Equal(t, prior, view.Roadmap)
	assert.False(t, view.Loading.Roadmap)

	_, err = h.svc.RequestPivot(ctx, device, Identity{}, "Game Designer")
	require.NoError(t, err)

	h.adv.mu.Lock()
	h.adv.matchFn = nil
	h.adv.mu.Unlock()
	calls := h.adv.matchCalls.Load()
	view, err = h.svc.ToggleFocusArea(ctx, device, Identity{}, "IT Management")
	require.NoError(t, err)
	assert.Equal(t, calls+1, h.adv.matchCalls.Load())
	assert.Equal(t, "IT Management", view.FocusArea)
	assert.Equal(t, "IT Management", view.Roadmap.FocusArea)
}

func TestRequestRoadmapRetriesAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.seedDevice(t)
	ctx := context.Background()

	h.adv.matchFn = func(context.Context, advisor.MatchRequest) (*advisor.Roadmap, error) {
		return nil, serviceError(advisor.EndpointMatch, advisor.MessageMatchFailed)
	}
	view, err := h.svc.Mount(ctx, device, Identity{})
	require.Error(t, err)
	assert.Nil(t, view.Roadmap)

	h.adv.mu.Lock()
	h.adv.matchFn = nil
	h.adv.mu.Unlock()
	view, err = h.svc.RequestRoadmap(ctx, device, Identity{})
	require.NoError(t, err)
	require.NotNil(t, view.Roadmap)
	assert.Equal(t, "Programming", view.Roadmap.FocusArea)
}

func TestSecondaryAnalyses(t *testing.T) {
	h := newHarness(t)
	h.seedDevice(t)
	ctx := context.Background()

	_, err := h.svc.RequestPivot(ctx, device, Identity{}, "   ")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	_, err = h.svc.RequestPostgrad(ctx, device, Identity{}, "PhD in Astrophysics")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	view, err := h.svc.RequestPivot(ctx, device, Identity{}, "Data Scientist")
	require.NoError(t, err)
	require.NotNil(t, view.Pivot)
	assert.Equal(t, "gap for Data Scientist", view.Pivot.GapAnalysis)

	h.adv.pivotFn = func(context.Context, advisor.PivotRequest) (*advisor.PivotResult, error) {
		return nil, serviceError(advisor.EndpointPivot, advisor.MessagePivotFailed)
	}
	view, err = h.svc.RequestPivot(ctx, device, Identity{}, "Astronaut")
	require.Error(t, err)
	assert.Equal(t, advisor.MessagePivotFailed, apperrors.UserMessage(err))
	assert.Equal(t, "gap for Data Scientist", view.Pivot.GapAnalysis)
	assert.Nil(t, view.Postgrad)

	h.adv.postgradFn = func(context.Context, advisor.PostgradRequest) (*advisor.PostgradResult, error) {
		return nil, serviceError(advisor.EndpointPostgrad, advisor.MessagePostgradFailed)
	}
	view, err = h.svc.RequestPostgrad(ctx, device, Identity{}, "BSc Honours in Information Technology")
	require.Error(t, err)
	assert.Nil(t, view.Postgrad)
	assert.NotNil(t, view.Pivot)
}

func TestChatAppendsExactlyTwoTurns(t *testing.T) {
	h := newHarness(t)
	h.seedDevice(t)
	ctx := context.Background()

	view, err := h.svc.SendChatMessage(ctx, device, Identity{}, "Which certifications matter?")
	require.NoError(t, err)
	require.Len(t, view.Chat, 3)
	assert.Equal(t, ChatTurn{Role: RoleUser, Text: "Which certifications matter?"}, view.Chat[1])
	assert.Equal(t, ChatTurn{Role: RoleAssistant, Text: "re: Which certifications matter?"}, view.Chat[2])

	h.adv.chatFn = func(context.Context, advisor.ChatRequest) (*advisor.ChatReply, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	view, err = h.svc.SendChatMessage(ctx, device, Identity{}, "Hello?")
	require.NoError(t, err)
	require.Len(t, view.Chat, 5)
	assert.Equal(t, ChatTurn{Role: RoleUser, Text: "Hello?"}, view.Chat[3])
	assert.Equal(t, ChatTurn{Role: RoleAssistant, Text: "Connection error."}, view.Chat[4])

	_, err = h.svc.SendChatMessage(ctx, device, Identity{}, "")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestStaleRoadmapResponseIsDiscarded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := observability.NewMetricsCollectorWithReader(reader)
	require.NoError(t, err)
	h := newHarness(t, WithMetrics(metrics))
	h.seedDevice(t)
	ctx := context.Background()

	_, err = h.svc.Mount(ctx, device, Identity{})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	h.adv.matchFn = func(_ context.Context, req advisor.MatchRequest) (*advisor.Roadmap, error) {
		if req.SelectedMajor == "Emerging Technologies" {
			close(started)
			<-release
		}
		return roadmapFor(req.SelectedMajor), nil
	}

	done := make(chan View, 1)
	go func() {
		view, _ := h.svc.ToggleFocusArea(ctx, device, Identity{}, "Emerging Technologies")
		done <- view
	}()
	<-started

	view, err := h.svc.ToggleFocusArea(ctx, device, Identity{}, "Business Analysis")
	require.NoError(t, err)
	assert.Equal(t, "Software Developer for Business Analysis", view.Roadmap.TopRole.Title)

	close(release)
	stale := <-done
	assert.Equal(t, "Software Developer for Business Analysis", stale.Roadmap.TopRole.Title)

	current, err := h.svc.Mount(ctx, device, Identity{})
	require.NoError(t, err)
	assert.Equal(t, "Business Analysis", current.FocusArea)
	assert.Equal(t, "Software Developer for Business Analysis", current.Roadmap.TopRole.Title)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	var dropped int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "architect.results.stale_responses.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				dropped += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), dropped)
}

func TestSignOutAndRetakeClearEverything(t *testing.T) {
	for _, tc := range []struct {
		name     string
		leave    func(*Service, context.Context, Identity) (string, error)
		redirect string
	}{
		{"sign out", func(s *Service, ctx context.Context, id Identity) (string, error) { return s.SignOut(ctx, device, id) }, "/login"},
		{"retake", func(s *Service, ctx context.Context, id Identity) (string, error) { return s.Retake(ctx, device, id) }, "/"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.seedDevice(t)
			ctx := context.Background()
			identity := Identity{SessionID: "sess-9", Email: email}

			_, err := h.svc.Mount(ctx, device, Identity{})
			require.NoError(t, err)

			redirect, err := tc.leave(h.svc, ctx, identity)
			require.NoError(t, err)
			assert.Equal(t, tc.redirect, redirect)
			assert.Equal(t, []string{"sess-9"}, h.sessions.revoked)
			assert.Equal(t, []string{device}, h.quiz.devices)
			for _, key := range localstore.FunnelKeys {
				ok, err := localstore.Has(ctx, h.local, device, key)
				require.NoError(t, err)
				assert.False(t, ok, key)
			}

			_, err = h.svc.Mount(ctx, device, Identity{})
			assert.Equal(t, apperrors.KindMissingPrerequisite, apperrors.KindOf(err))

			row, err := h.leads.FindByID(ctx, h.leadID)
			require.NoError(t, err)
			assert.True(t, row.HasRoadmap())
		})
	}
}
