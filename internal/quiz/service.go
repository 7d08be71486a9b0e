package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"architect/internal/domain/quiz"
	apperrors "architect/internal/errors"
	"architect/internal/localstore"
	"architect/internal/logging"
	"architect/internal/observability"
)

const defaultMaxEngines = 10000

// Service hands out one engine per device.
type Service struct {
	mu        sync.Mutex
	machine   Machine
	store     localstore.Store
	scheduler Scheduler
	engines   *lru.Cache[string, *Engine]
	now       func() time.Time
	logger    logging.Logger
	metrics   *observability.MetricsCollector
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	timing     Timing
	scheduler  Scheduler
	maxEngines int
	now        func() time.Time
	logger     logging.Logger
	metrics    *observability.MetricsCollector
}

func WithTiming(t Timing) Option { return func(o *serviceOptions) { o.timing = t } }

func WithScheduler(s Scheduler) Option { return func(o *serviceOptions) { o.scheduler = s } }

func WithMaxEngines(n int) Option { return func(o *serviceOptions) { o.maxEngines = n } }

func WithNow(now func() time.Time) Option { return func(o *serviceOptions) { o.now = now } }

func WithLogger(l logging.Logger) Option { return func(o *serviceOptions) { o.logger = l } }

func WithMetrics(m *observability.MetricsCollector) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// NewService builds a quiz service over bank.
func NewService(bank *quiz.Bank, store localstore.Store, opts ...Option) (*Service, error) {
	if bank == nil {
		return nil, fmt.Errorf("quiz: question bank is required")
	}
	if store == nil {
		return nil, fmt.Errorf("quiz: local store is required")
	}
	o := serviceOptions{
		timing:     DefaultTiming(),
		scheduler:  SystemScheduler{},
		maxEngines: defaultMaxEngines,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEngines <= 0 {
		o.maxEngines = defaultMaxEngines
	}

	engines, err := lru.NewWithEvict(o.maxEngines, func(_ string, e *Engine) {
		e.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("quiz: engine cache: %w", err)
	}
	return &Service{
		machine:   Machine{Bank: bank, Timing: o.timing},
		store:     store,
		scheduler: o.scheduler,
		engines:   engines,
		now:       o.now,
		logger:    logging.OrNop(o.logger),
		metrics:   o.metrics,
	}, nil
}

// Mount returns the quiz screen for device, starting a quiz if none is running. A device
// without a cached intake profile is sent back to the intake form.
func (s *Service) Mount(ctx context.Context, device string) (View, error) {
	engine, err := s.engine(ctx, device)
	if err != nil {
		return View{}, err
	}
	return engine.View(), nil
}

// Answer submits option for the device's current question.
func (s *Service) Answer(ctx context.Context, device string, option int) (View, error) {
	engine, err := s.engine(ctx, device)
	if err != nil {
		return View{}, err
	}
	return engine.Submit(ctx, option)
}

// Reset drops the device's quiz so the next mount starts over.
func (s *Service) Reset(device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines.Remove(device)
}

// Close cancels every running quiz.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines.Purge()
}

func (s *Service) engine(ctx context.Context, device string) (*Engine, error) {
	ok, err := localstore.Has(ctx, s.store, device, localstore.KeyProfile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewMissingPrerequisite(localstore.KeyProfile)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, found := s.engines.Get(device); found {
		return e, nil
	}
	e := newEngine(s.machine, device, s.store, s.scheduler, s.now, s.logger, s.metrics)
	s.engines.Add(device, e)
	return e, nil
}
