// Package intake admits a student into the funnel: validate the form, gate the email, insert
// the lead atomically and cache the profile on the device.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"architect/internal/domain/lead"
	apperrors "architect/internal/errors"
	"architect/internal/localstore"
	"architect/internal/logging"
	"architect/internal/observability"
)

// QuizPath is where an admitted student goes next.
const QuizPath = "/quiz"

// Lead outcomes recorded in metrics.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Result is a successful intake.
type Result struct {
	LeadID   string `json:"lead_id"`
	Redirect string `json:"redirect"`
}

// Service runs the intake flow.
type Service struct {
	leads   lead.Store
	local   localstore.Store
	logger  logging.Logger
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
	now     func() time.Time
}

// Option configures Service.
type Option func(*Service)

func WithLogger(logger logging.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(logger) }
}

func WithMetrics(m *observability.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(tp *observability.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp }
}

func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the intake flow to its stores.
func NewService(leads lead.Store, local localstore.Store, opts ...Option) *Service {
	s := &Service{
		leads:  leads,
		local:  local,
		logger: logging.NewComponentLogger("Intake"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit processes the intake form for device. Validation and policy failures never reach
// the store. A duplicate email returns apperrors.ErrLeadExists.
func (s *Service) Submit(ctx context.Context, device string, profile lead.Profile) (Result, error) {
	if err := validate(profile); err != nil {
		s.metrics.RecordLead(ctx, OutcomeInvalid)
		return Result{}, err
	}
	if !lead.AllowedEmail(profile.Email) {
		s.metrics.RecordLead(ctx, OutcomeRejected)
		return Result{}, apperrors.NewPolicyError(lead.IntakeDeniedMessage)
	}

	ctx, span := s.tracer.StartSpan(ctx, observability.SpanLeadInsert)
	defer span.End()

	created, err := s.leads.InsertIfAbsent(ctx, profile.ToLead("", s.now().UTC()))
	if err != nil {
		if errors.Is(err, apperrors.ErrLeadExists) {
			s.metrics.RecordLead(ctx, OutcomeDuplicate)
			s.logger.Info("intake: lead already exists for %s", lead.NormalizeEmail(profile.Email))
			return Result{}, apperrors.ErrLeadExists
		}
		span.RecordError(err)
		s.metrics.RecordLead(ctx, OutcomeError)
		s.logger.Error("intake: insert lead failed: %v", err)
		return Result{}, err
	}

	cached := profile
	cached.Email = created.Email
	cached.Campus = created.InstitutionName
	cached.UserCategory = created.UserCategory
	if err := s.cacheOnDevice(ctx, device, created.ID, cached); err != nil {
		span.RecordError(err)
		s.metrics.RecordLead(ctx, OutcomeError)
		s.logger.Error("intake: lead %s saved but device %s was not updated: %v", created.ID, device, err)
		return Result{}, err
	}

	s.metrics.RecordLead(ctx, OutcomeCreated)
	s.logger.Info("intake: lead %s created", created.ID)
	return Result{LeadID: created.ID, Redirect: QuizPath}, nil
}

// cacheOnDevice points device at the new lead. A vector left by an earlier quiz on the same
// device belongs to someone else and is dropped.
func (s *Service) cacheOnDevice(ctx context.Context, device, leadID string, profile lead.Profile) error {
	if err := s.local.Delete(ctx, device, localstore.KeyVector); err != nil {
		return fmt.Errorf("drop previous vector: %w", err)
	}
	if err := localstore.SetJSON(ctx, s.local, device, localstore.KeyLeadID, leadID); err != nil {
		return err
	}
	return localstore.SetJSON(ctx, s.local, device, localstore.KeyProfile, profile)
}

func validate(p lead.Profile) error {
	switch {
	case strings.TrimSpace(p.FirstName) == "":
		return apperrors.NewValidationError("firstName", "First name is required.")
	case strings.TrimSpace(p.LastName) == "":
		return apperrors.NewValidationError("lastName", "Last name is required.")
	case strings.TrimSpace(p.Email) == "":
		return apperrors.NewValidationError("email", "Student email is required.")
	case strings.TrimSpace(p.Program) == "":
		return apperrors.NewValidationError("program", "Please select your current programme.")
	case !lead.IsProgramme(strings.TrimSpace(p.Program)):
		return apperrors.NewValidationError("program", "Please select a Richfield programme from the list.")
	}
	return nil
}
