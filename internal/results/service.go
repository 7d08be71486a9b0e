// Package results drives the results page: roadmap generation, focus-area switching, the
// pivot and postgraduate analyses, the advisor chat, sign-out and retake.
//
// Each of the four advisor slots carries a sequence number. A response is applied only while
// its sequence is still the latest issued for that slot, so a slow reply never overwrites the
// answer to a newer request.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"architect/internal/advisor"
	"architect/internal/domain/lead"
	"architect/internal/domain/quiz"
	apperrors "architect/internal/errors"
	"architect/internal/localstore"
	"architect/internal/logging"
	"architect/internal/observability"
)

// Navigation targets after leaving the results page.
const (
	LoginPath   = "/login"
	LandingPath = "/"
)

const defaultMaxViews = 10000

// SessionRevoker ends an authenticated session.
type SessionRevoker interface {
	SignOut(ctx context.Context, sessionID string) error
}

// QuizResetter drops a device's running quiz.
type QuizResetter interface {
	Reset(device string)
}

// Service owns the results views of every device.
type Service struct {
	leads    lead.Store
	local    localstore.Store
	advisor  advisor.Advisor
	sessions SessionRevoker
	quiz     QuizResetter

	mu       sync.Mutex
	views    *lru.Cache[string, *state]
	maxViews int

	logger  logging.Logger
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
}

// Option configures Service.
type Option func(*Service)

func WithSessions(revoker SessionRevoker) Option {
	return func(s *Service) { s.sessions = revoker }
}

func WithQuiz(resetter QuizResetter) Option {
	return func(s *Service) { s.quiz = resetter }
}

func WithMaxViews(n int) Option {
	return func(s *Service) { s.maxViews = n }
}

func WithLogger(logger logging.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(logger) }
}

func WithMetrics(m *observability.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(tp *observability.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp }
}

// NewService wires the orchestrator to its stores and the advisor.
func NewService(leads lead.Store, local localstore.Store, adv advisor.Advisor, opts ...Option) (*Service, error) {
	if leads == nil || local == nil || adv == nil {
		return nil, errors.New("results: lead store, local store and advisor are required")
	}
	s := &Service{
		leads:    leads,
		local:    local,
		advisor:  adv,
		maxViews: defaultMaxViews,
		logger:   logging.NewComponentLogger("Results"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxViews <= 0 {
		s.maxViews = defaultMaxViews
	}
	views, err := lru.New[string, *state](s.maxViews)
	if err != nil {
		return nil, fmt.Errorf("results: view cache: %w", err)
	}
	s.views = views
	return s, nil
}

type state struct {
	mu       sync.Mutex
	chatMu   sync.Mutex
	identity Identity
	view     View
	seq      [slotCount]uint64
}

func (st *state) issue(slot Slot) uint64 {
	st.seq[slot]++
	return st.seq[slot]
}

func (st *state) latest(slot Slot, seq uint64) bool {
	return st.seq[slot] == seq
}

func (st *state) snapshot() View {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.view.clone()
}

// Mount opens the results page. A signed-in student is resolved through their lead row and
// reuses its stored roadmap; an anonymous device needs its cached profile and vector. A view
// without a roadmap requests one.
func (s *Service) Mount(ctx context.Context, device string, identity Identity) (View, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanResultsMount)
	defer span.End()

	st, err := s.state(ctx, device, identity)
	if err != nil {
		span.SetAttributes(observability.ErrorAttrs(err)...)
		return View{}, err
	}
	st.mu.Lock()
	needsRoadmap := st.view.Roadmap == nil && !st.view.Loading.Roadmap
	st.mu.Unlock()
	if !needsRoadmap {
		return st.snapshot(), nil
	}
	return s.requestRoadmap(ctx, st)
}

// RequestRoadmap regenerates the roadmap for the current focus area. It is the manual retry
// after a failed generation.
func (s *Service) RequestRoadmap(ctx context.Context, device string, identity Identity) (View, error) {
	st, err := s.state(ctx, device, identity)
	if err != nil {
		return View{}, err
	}
	return s.requestRoadmap(ctx, st)
}

// ToggleFocusArea switches the second-year major. Choosing the current major does nothing.
// Any other major clears the pivot and postgraduate results and requests one new roadmap.
func (s *Service) ToggleFocusArea(ctx context.Context, device string, identity Identity, area string) (View, error) {
	st, err := s.state(ctx, device, identity)
	if err != nil {
		return View{}, err
	}
	area = strings.TrimSpace(area)

	st.mu.Lock()
	if area == st.view.FocusArea {
		view := st.view.clone()
		st.mu.Unlock()
		return view, nil
	}
	if !lead.IsMajor(st.view.Program, area) {
		st.mu.Unlock()
		return View{}, apperrors.NewValidationError("focus_area", "Please choose one of your programme's majors.")
	}
	prior := st.view.FocusArea
	st.view.FocusArea = area
	st.view.Pivot = nil
	st.view.Postgrad = nil
	for _, slot := range []Slot{SlotPivot, SlotPostgrad} {
		st.issue(slot)
		st.view.setLoading(slot, false)
	}
	st.mu.Unlock()

	view, err := s.requestRoadmap(ctx, st)
	if err == nil {
		return view, nil
	}
	// The roadmap on screen still belongs to the prior major; put it back so a retry is a real toggle.
	st.mu.Lock()
	if st.view.FocusArea == area {
		st.view.FocusArea = prior
	}
	view = st.view.clone()
	st.mu.Unlock()
	return view, err
}

// RequestPivot runs the dream-job gap analysis.
func (s *Service) RequestPivot(ctx context.Context, device string, identity Identity, dreamJob string) (View, error) {
	dreamJob = strings.TrimSpace(dreamJob)
	if dreamJob == "" {
		return View{}, apperrors.NewValidationError("dream_job", "Please enter your dream job.")
	}
	st, err := s.state(ctx, device, identity)
	if err != nil {
		return View{}, err
	}
	view, _, err := exchange(ctx, s, st, SlotPivot,
		func(v *View) advisor.PivotRequest {
			return advisor.PivotRequest{
				Scores:        advisor.ScoresFrom(v.Vector),
				Program:       v.Program,
				SelectedMajor: v.FocusArea,
				DreamJob:      dreamJob,
			}
		},
		s.advisor.Pivot,
		func(v *View, _ advisor.PivotRequest, resp *advisor.PivotResult) { v.Pivot = resp },
	)
	return view, err
}

// RequestPostgrad runs the postgraduate return-on-investment analysis.
func (s *Service) RequestPostgrad(ctx context.Context, device string, identity Identity, choice string) (View, error) {
	choice = strings.TrimSpace(choice)
	if !lead.IsPostgradChoice(choice) {
		return View{}, apperrors.NewValidationError("postgrad_choice", "Please choose a postgraduate qualification.")
	}
	st, err := s.state(ctx, device, identity)
	if err != nil {
		return View{}, err
	}
	view, _, err := exchange(ctx, s, st, SlotPostgrad,
		func(v *View) advisor.PostgradRequest {
			return advisor.PostgradRequest{
				Program:        v.Program,
				SelectedMajor:  v.FocusArea,
				Scores:         advisor.ScoresFrom(v.Vector),
				PostgradChoice: choice,
			}
		},
		s.advisor.Postgrad,
		func(v *View, _ advisor.PostgradRequest, resp *advisor.PostgradResult) { v.Postgrad = resp },
	)
	return view, err
}

// SendChatMessage appends the student's turn and then either the advisor's reply or the
// connection-error turn. Sends on one device are serialized so turns stay paired.
func (s *Service) SendChatMessage(ctx context.Context, device string, identity Identity, text string) (View, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return View{}, apperrors.NewValidationError("message", "Please type a message.")
	}
	st, err := s.state(ctx, device, identity)
	if err != nil {
		return View{}, err
	}
	st.chatMu.Lock()
	defer st.chatMu.Unlock()

	st.mu.Lock()
	st.view.Chat = append(st.view.Chat, ChatTurn{Role: RoleUser, Text: text})
	st.mu.Unlock()

	view, _, err := exchange(ctx, s, st, SlotChat,
		func(v *View) advisor.ChatRequest {
			return advisor.ChatRequest{
				Message:       text,
				Program:       v.Program,
				SelectedMajor: v.FocusArea,
				Scores:        advisor.ScoresFrom(v.Vector),
			}
		},
		s.advisor.Chat,
		func(v *View, _ advisor.ChatRequest, resp *advisor.ChatReply) {
			v.Chat = append(v.Chat, ChatTurn{Role: RoleAssistant, Text: resp.Response})
		},
	)
	if err == nil {
		return view, nil
	}
	logging.FromContext(ctx, s.logger).Warn("chat reply failed for device %s: %v", device, err)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.view.Chat = append(st.view.Chat, ChatTurn{Role: RoleAssistant, Text: advisor.MessageChatFailed})
	return st.view.clone(), nil
}

// SignOut ends the session, forgets the device and returns the login path.
func (s *Service) SignOut(ctx context.Context, device string, identity Identity) (string, error) {
	if err := s.reset(ctx, device, identity); err != nil {
		return "", err
	}
	return LoginPath, nil
}

// Retake ends the session, forgets the device and returns the landing path.
func (s *Service) Retake(ctx context.Context, device string, identity Identity) (string, error) {
	if err := s.reset(ctx, device, identity); err != nil {
		return "", err
	}
	return LandingPath, nil
}

// Forget drops the cached view of device so the next mount rebuilds it from the stores.
func (s *Service) Forget(device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.views.Peek(device); ok {
		st.mu.Lock()
		for slot := range st.seq {
			st.seq[slot]++
		}
		st.mu.Unlock()
	}
	s.views.Remove(device)
}

func (s *Service) reset(ctx context.Context, device string, identity Identity) error {
	logger := logging.FromContext(ctx, s.logger)

	var revokeErr error
	if identity.SessionID != "" && s.sessions != nil {
		if err := s.sessions.SignOut(ctx, identity.SessionID); err != nil {
			revokeErr = fmt.Errorf("sign out: %w", err)
		}
	}
	if err := s.local.Clear(ctx, device, localstore.FunnelKeys...); err != nil {
		return errors.Join(revokeErr, fmt.Errorf("clear device: %w", err))
	}

	s.Forget(device)
	if s.quiz != nil {
		s.quiz.Reset(device)
	}
	logger.Info("results: device %s reset", device)
	return revokeErr
}

func (s *Service) requestRoadmap(ctx context.Context, st *state) (View, error) {
	var leadID string
	view, applied, err := exchange(ctx, s, st, SlotRoadmap,
		func(v *View) advisor.MatchRequest {
			leadID = v.LeadID
			return advisor.MatchRequest{
				Scores:        advisor.ScoresFrom(v.Vector),
				Program:       v.Program,
				SelectedMajor: v.FocusArea,
			}
		},
		s.advisor.Match,
		func(v *View, req advisor.MatchRequest, resp *advisor.Roadmap) {
			resp.FocusArea = req.SelectedMajor
			v.Roadmap = resp
		},
	)
	if err != nil || !applied {
		return view, err
	}
	s.persistRoadmap(ctx, leadID, view.Vector, view.Roadmap)
	return view, nil
}

// persistRoadmap stores the scores and roadmap on the lead row. Failures are only logged.
func (s *Service) persistRoadmap(ctx context.Context, leadID string, vector quiz.Vector, roadmap *advisor.Roadmap) {
	if leadID == "" || roadmap == nil {
		return
	}
	logger := logging.FromContext(ctx, s.logger)
	raw, err := json.Marshal(roadmap)
	if err != nil {
		logger.Warn("results: encode roadmap for lead %s: %v", leadID, err)
		return
	}
	if err := s.leads.UpdateByID(ctx, leadID, lead.Patch{PsychScores: vector, RoadmapResult: raw}); err != nil {
		logger.Warn("results: persist roadmap for lead %s: %v", leadID, err)
	}
}

// exchange runs one fenced advisor call. The request is built under the view lock, the call
// runs without it, and the response is applied only if no newer request for slot was issued.
func exchange[Req any, Resp any](
	ctx context.Context,
	s *Service,
	st *state,
	slot Slot,
	build func(*View) Req,
	call func(context.Context, Req) (Resp, error),
	apply func(*View, Req, Resp),
) (View, bool, error) {
	st.mu.Lock()
	seq := st.issue(slot)
	st.view.setLoading(slot, true)
	req := build(&st.view)
	st.mu.Unlock()

	resp, err := call(ctx, req)

	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.latest(slot, seq) {
		s.metrics.RecordStaleResponse(ctx, slot.String())
		logging.FromContext(ctx, s.logger).Debug("results: dropped stale %s response #%d", slot, seq)
		return st.view.clone(), false, nil
	}
	st.view.setLoading(slot, false)
	if err != nil {
		return st.view.clone(), false, err
	}
	apply(&st.view, req, resp)
	return st.view.clone(), true, nil
}

// state returns the cached view for device, building it when absent or when the identity
// changed since it was built.
func (s *Service) state(ctx context.Context, device string, identity Identity) (*state, error) {
	s.mu.Lock()
	if st, ok := s.views.Get(device); ok && st.identity.Email == identity.Email {
		s.mu.Unlock()
		return st, nil
	}
	s.mu.Unlock()

	built, err := s.build(ctx, device, identity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.views.Get(device); ok && st.identity.Email == identity.Email {
		return st, nil
	}
	s.views.Add(device, built)
	return built, nil
}

func (s *Service) build(ctx context.Context, device string, identity Identity) (*state, error) {
	if identity.authenticated() {
		record, err := s.leads.FindByEmail(ctx, identity.Email)
		switch {
		case err == nil:
			return s.fromLead(ctx, device, identity, record)
		case errors.Is(err, apperrors.ErrNotFound):
			logging.FromContext(ctx, s.logger).Info("results: no lead for %s, falling back to device state", identity.Email)
		default:
			return nil, fmt.Errorf("find lead: %w", err)
		}
	}
	return s.fromDevice(ctx, device, identity)
}

func (s *Service) fromLead(ctx context.Context, device string, identity Identity, record *lead.Lead) (*state, error) {
	vector := record.PsychScores
	if vector == nil {
		var cached quiz.Vector
		if err := localstore.GetJSON(ctx, s.local, device, localstore.KeyVector, &cached); err == nil {
			vector = cached
		} else {
			vector = advisor.DefaultScores.Vector()
		}
	}

	var roadmap *advisor.Roadmap
	if record.HasRoadmap() {
		var stored advisor.Roadmap
		if err := json.Unmarshal(record.RoadmapResult, &stored); err != nil {
			logging.FromContext(ctx, s.logger).Warn("results: stored roadmap for lead %s is unreadable, regenerating: %v", record.ID, err)
		} else {
			roadmap = &stored
		}
	}

	focus := ""
	if roadmap != nil && lead.IsMajor(record.CurrentProgram, roadmap.FocusArea) {
		focus = roadmap.FocusArea
	} else if major, ok := lead.DefaultMajor(record.CurrentProgram); ok {
		focus = major
	}

	return newState(identity, View{
		FirstName:     record.FirstName,
		Email:         record.Email,
		Program:       record.CurrentProgram,
		LeadID:        record.ID,
		Authenticated: true,
		Vector:        vector.Clone(),
		FocusArea:     focus,
		Majors:        lead.MajorsFor(record.CurrentProgram),
		Roadmap:       roadmap,
	}), nil
}

func (s *Service) fromDevice(ctx context.Context, device string, identity Identity) (*state, error) {
	var profile lead.Profile
	if err := localstore.GetJSON(ctx, s.local, device, localstore.KeyProfile, &profile); err != nil {
		return nil, missing(localstore.KeyProfile, err)
	}
	var vector quiz.Vector
	if err := localstore.GetJSON(ctx, s.local, device, localstore.KeyVector, &vector); err != nil {
		return nil, missing(localstore.KeyVector, err)
	}
	if vector == nil {
		return nil, apperrors.NewMissingPrerequisite(localstore.KeyVector)
	}
	var leadID string
	if err := localstore.GetJSON(ctx, s.local, device, localstore.KeyLeadID, &leadID); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		logging.FromContext(ctx, s.logger).Warn("results: read lead id for device %s: %v", device, err)
	}

	focus, _ := lead.DefaultMajor(profile.Program)
	return newState(identity, View{
		FirstName:     profile.FirstName,
		Email:         lead.NormalizeEmail(profile.Email),
		Program:       profile.Program,
		LeadID:        leadID,
		Authenticated: identity.authenticated(),
		Vector:        vector,
		FocusArea:     focus,
		Majors:        lead.MajorsFor(profile.Program),
	}), nil
}

func newState(identity Identity, view View) *state {
	view.Chat = []ChatTurn{{Role: RoleAssistant, Text: Greeting}}
	return &state{identity: identity, view: view}
}

// missing maps an absent key to a silent redirect. Undecodable values count as absent.
func missing(key string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, localstore.ErrNotFound) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return apperrors.NewMissingPrerequisite(key)
	}
	return err
}
