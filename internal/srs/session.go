package srs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"one4allvocab.org/internal/vocab"
)

var (
	ErrInvalidTransition = errors.New("invalid review session transition")
	ErrNoItems           = errors.New("review session needs at least one item")
)

// Phase is the coarse state of a review session.
type Phase int

const (
	NotStarted Phase = iota
	Presenting
	Grading
	Finished
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case Presenting:
		return "presenting"
	case Grading:
		return "grading"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Face is the visible side of the current card.
type Face int

const (
	Front Face = iota
	Back
)

// State is a snapshot of a session.
type State struct {
	Phase Phase
	Index int
	Face  Face
	Total int
}

// Grader persists a grade and returns the stored next review date.
type Grader interface {
	GradeWord(ctx context.Context, id int64, g Grade) (time.Time, error)
}

// Refresher reloads the caller's item list once a session finishes.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Session walks a fixed list of cards. It is safe for concurrent use; a
// second Grade while one is in flight fails with ErrInvalidTransition.
type Session struct {
	grader    Grader
	refresher Refresher

	mu    sync.Mutex
	items []vocab.Word
	state State
}

func NewSession(g Grader, r Refresher) *Session {
	return &Session{grader: g, refresher: r}
}

// Start moves NotStarted to Presenting(0, Front).
func (s *Session) Start(items []vocab.Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != NotStarted {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.state.Phase)
	}
	if len(items) == 0 {
		return ErrNoItems
	}
	s.items = append([]vocab.Word(nil), items...)
	s.state = State{Phase: Presenting, Index: 0, Face: Front, Total: len(items)}
	return nil
}

// Flip toggles the face of the current card without advancing.
func (s *Session) Flip() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != Presenting {
		return fmt.Errorf("%w: flip from %s", ErrInvalidTransition, s.state.Phase)
	}
	if s.state.Face == Front {
		s.state.Face = Back
	} else {
		s.state.Face = Front
	}
	return nil
}

// Current returns the card being presented.
func (s *Session) Current() (vocab.Word, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != Presenting && s.state.Phase != Grading {
		return vocab.Word{}, false
	}
	return s.items[s.state.Index], true
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Grade records g for the current card and advances by exactly one. Grading
// the last card finishes the session and triggers a single refresh. When the
// grader fails the session stays on the same card.
func (s *Session) Grade(ctx context.Context, g Grade) error {
	s.mu.Lock()
	if s.state.Phase != Presenting {
		phase := s.state.Phase
		s.mu.Unlock()
		return fmt.Errorf("%w: grade from %s", ErrInvalidTransition, phase)
	}
	s.state.Phase = Grading
	idx := s.state.Index
	id := s.items[idx].ID
	s.mu.Unlock()

	next, err := s.grader.GradeWord(ctx, id, g)

	s.mu.Lock()
	if err != nil {
		s.state.Phase = Presenting
		s.mu.Unlock()
		return err
	}
	s.items[idx].NextReviewDate = &next
	s.state.Index++
	s.state.Face = Front
	if s.state.Index < len(s.items) {
		s.state.Phase = Presenting
		s.mu.Unlock()
		return nil
	}
	s.state.Phase = Finished
	s.mu.Unlock()

	if s.refresher == nil {
		return nil
	}
	if err := s.refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after session: %w", err)
	}
	return nil
}
