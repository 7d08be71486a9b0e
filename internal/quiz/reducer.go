// Package quiz runs the scenario quiz: a pure reducer over explicit state, and an engine that
// turns the reducer's effects into timers and local store writes.
package quiz

import (
	"errors"
	"fmt"
	"time"

	"architect/internal/domain/quiz"
)

const (
	// TransitionDelay is how long the fact overlay stays up between questions.
	TransitionDelay = 1800 * time.Millisecond
	// FinalizeDelay is how long the processing screen runs before redirecting to results.
	FinalizeDelay = 3200 * time.Millisecond
	// ResultsPath is where a finished quiz navigates.
	ResultsPath = "/results"
)

var (
	// ErrTransitioning rejects input while the overlay or the processing screen is showing.
	ErrTransitioning = errors.New("quiz: answer ignored while transitioning")
	// ErrInvalidOption rejects an option index outside the current question.
	ErrInvalidOption = errors.New("quiz: invalid option")
)

// Phase is the quiz lifecycle stage.
type Phase int

const (
	PhaseAnswering Phase = iota
	PhaseTransitioning
	PhaseFinalizing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseAnswering:
		return "answering"
	case PhaseTransitioning:
		return "transitioning"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is everything the quiz view needs. Index is the question on screen, or the question
// just answered while transitioning.
type State struct {
	Phase   Phase
	Index   int
	Vector  quiz.Vector
	Answers []int
}

// Initial returns the state at mount.
func Initial() State {
	return State{Phase: PhaseAnswering, Vector: quiz.NewVector()}
}

// Event drives the reducer.
type Event interface {
	event()
}

// AnswerSubmitted is a click on option Option of the current question.
type AnswerSubmitted struct {
	Option int
}

// TransitionElapsed is the overlay timer for question Index.
type TransitionElapsed struct {
	Index int
}

// FinalizeElapsed is the processing-screen timer.
type FinalizeElapsed struct{}

func (AnswerSubmitted) event()   {}
func (TransitionElapsed) event() {}
func (FinalizeElapsed) event()   {}

// EffectKind enumerates the side effects the reducer asks for.
type EffectKind int

const (
	EffectSchedule EffectKind = iota
	EffectPersistVector
	EffectNavigate
)

// Effect is a side effect requested by Reduce. Schedule effects carry the event to deliver
// after Delay.
type Effect struct {
	Kind   EffectKind
	Delay  time.Duration
	Event  Event
	Vector quiz.Vector
	Path   string
}

// Timing holds the two quiz delays.
type Timing struct {
	Transition time.Duration
	Finalize   time.Duration
}

// DefaultTiming returns the production delays.
func DefaultTiming() Timing {
	return Timing{Transition: TransitionDelay, Finalize: FinalizeDelay}
}

// Machine binds the reducer to a question bank and its delays.
type Machine struct {
	Bank   *quiz.Bank
	Timing Timing
}

// Reduce applies ev to s. It never mutates s. Timer events that no longer match the state are
// dropped without error, so a late timer cannot double-advance.
func (m Machine) Reduce(s State, ev Event) (State, []Effect, error) {
	bank := m.Bank
	switch e := ev.(type) {
	case AnswerSubmitted:
		if s.Phase != PhaseAnswering {
			return s, nil, ErrTransitioning
		}
		if s.Index < 0 || s.Index >= bank.Len() {
			return s, nil, fmt.Errorf("quiz: question %d out of range", s.Index)
		}
		options := bank.Questions[s.Index].Options
		if e.Option < 0 || e.Option >= len(options) {
			return s, nil, fmt.Errorf("%w: %d", ErrInvalidOption, e.Option)
		}

		next := State{
			Phase:   PhaseTransitioning,
			Index:   s.Index,
			Vector:  s.Vector.Add(options[e.Option].Weights),
			Answers: append(append([]int(nil), s.Answers...), e.Option),
		}
		if s.Index == bank.Len()-1 {
			next.Phase = PhaseFinalizing
			return next, []Effect{
				{Kind: EffectPersistVector, Vector: next.Vector.Clone()},
				{Kind: EffectSchedule, Delay: m.Timing.Finalize, Event: FinalizeElapsed{}},
			}, nil
		}
		return next, []Effect{
			{Kind: EffectSchedule, Delay: m.Timing.Transition, Event: TransitionElapsed{Index: s.Index}},
		}, nil

	case TransitionElapsed:
		if s.Phase != PhaseTransitioning || s.Index != e.Index {
			return s, nil, nil
		}
		next := s
		next.Phase = PhaseAnswering
		next.Index = s.Index + 1
		return next, nil, nil

	case FinalizeElapsed:
		if s.Phase != PhaseFinalizing {
			return s, nil, nil
		}
		next := s
		next.Phase = PhaseDone
		return next, []Effect{{Kind: EffectNavigate, Path: ResultsPath}}, nil

	default:
		return s, nil, fmt.Errorf("quiz: unknown event %T", ev)
	}
}
