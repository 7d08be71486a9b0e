package quiz

import (
	"context"
	"sync"
	"time"

	"architect/internal/domain/quiz"
	"architect/internal/localstore"
	"architect/internal/logging"
	"architect/internal/observability"
)

// View is the quiz screen as the client renders it.
type View struct {
	Phase          string         `json:"phase"`
	QuestionIndex  int            `json:"question_index"`
	Total          int            `json:"total"`
	Progress       int            `json:"progress"`
	Question       *quiz.Question `json:"question,omitempty"`
	TransitionFact string         `json:"transition_fact,omitempty"`
	LoadingFact    string         `json:"loading_fact,omitempty"`
	Redirect       string         `json:"redirect,omitempty"`
}

// Engine owns one device's quiz state and the timers it has scheduled.
type Engine struct {
	mu           sync.Mutex
	machine      Machine
	state        State
	device       string
	store        localstore.Store
	scheduler    Scheduler
	timers       []Timer
	closed       bool
	finalizingAt time.Time
	redirect     string
	now          func() time.Time
	logger       logging.Logger
	metrics      *observability.MetricsCollector
}

func newEngine(machine Machine, device string, store localstore.Store, scheduler Scheduler, now func() time.Time, logger logging.Logger, metrics *observability.MetricsCollector) *Engine {
	return &Engine{
		machine:   machine,
		state:     Initial(),
		device:    device,
		store:     store,
		scheduler: scheduler,
		now:       now,
		logger:    logger,
		metrics:   metrics,
	}
}

// Submit answers the current question.
func (e *Engine) Submit(ctx context.Context, option int) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.viewLocked(), ErrTransitioning
	}
	next, effects, err := e.machine.Reduce(e.state, AnswerSubmitted{Option: option})
	if err != nil {
		return e.viewLocked(), err
	}
	if err := e.applyLocked(ctx, next, effects); err != nil {
		return e.viewLocked(), err
	}
	return e.viewLocked(), nil
}

// View returns the current screen.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// State returns a copy of the reducer state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Vector = s.Vector.Clone()
	s.Answers = append([]int(nil), s.Answers...)
	return s
}

// Close cancels pending timers. Callbacks that were already running find the engine closed
// and do nothing.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = nil
}

func (e *Engine) fire(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	next, effects, err := e.machine.Reduce(e.state, ev)
	if err != nil {
		e.logger.Warn("quiz timer for device %s rejected: %v", e.device, err)
		return
	}
	if err := e.applyLocked(context.Background(), next, effects); err != nil {
		e.logger.Warn("quiz timer for device %s failed: %v", e.device, err)
	}
}

// applyLocked runs persistence first so a failed write leaves the state untouched.
func (e *Engine) applyLocked(ctx context.Context, next State, effects []Effect) error {
	for _, eff := range effects {
		if eff.Kind != EffectPersistVector {
			continue
		}
		if err := localstore.SetJSON(ctx, e.store, e.device, localstore.KeyVector, eff.Vector); err != nil {
			return err
		}
	}

	prev := e.state.Phase
	e.state = next
	if next.Phase == PhaseFinalizing && prev != PhaseFinalizing {
		e.finalizingAt = e.now()
		e.metrics.RecordQuizCompletion(ctx)
		e.logger.Info("quiz finished for device %s", e.device)
	}

	for _, eff := range effects {
		switch eff.Kind {
		case EffectSchedule:
			ev := eff.Event
			e.timers = append(e.timers, e.scheduler.AfterFunc(eff.Delay, func() { e.fire(ev) }))
		case EffectNavigate:
			e.redirect = eff.Path
		}
	}
	return nil
}

func (e *Engine) viewLocked() View {
	bank := e.machine.Bank
	v := View{
		Phase:         e.state.Phase.String(),
		QuestionIndex: e.state.Index,
		Total:         bank.Len(),
		Progress:      bank.Progress(e.state.Index),
		Redirect:      e.redirect,
	}
	switch e.state.Phase {
	case PhaseAnswering:
		q := bank.Questions[e.state.Index]
		v.Question = &q
	case PhaseTransitioning:
		v.TransitionFact = bank.TransitionFact(e.state.Index)
	case PhaseFinalizing:
		v.LoadingFact = bank.LoadingFact(e.now().Sub(e.finalizingAt))
	}
	return v
}
