// Package srs schedules spaced-repetition reviews of learning items.
package srs

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"one4allvocab.org/internal/vocab"
)

// Grade is the recall quality reported after a card is answered.
type Grade string

const (
	GradeHard   Grade = "Hard"
	GradeMedium Grade = "Medium"
	GradeEasy   Grade = "Easy"
)

var ErrInvalidGrade = errors.New("grade must be Hard, Medium or Easy")

const day = 24 * time.Hour

// ParseGrade is case-insensitive; an empty grade counts as Medium.
func ParseGrade(s string) (Grade, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "medium":
		return GradeMedium, nil
	case "hard":
		return GradeHard, nil
	case "easy":
		return GradeEasy, nil
	default:
		return "", ErrInvalidGrade
	}
}

// Interval is the distance from the grading moment to the next review.
// Unknown grades fall back to the Medium interval.
func (g Grade) Interval() time.Duration {
	switch g {
	case GradeHard:
		return day
	case GradeEasy:
		return 4 * day
	default:
		return 2 * day
	}
}

// ComputeNextReview measures from now. The item's previous due date never
// contributes, so intervals do not compound.
func ComputeNextReview(g Grade, now time.Time) time.Time {
	return now.Add(g.Interval())
}

// Granularity controls how due dates are compared with the current time.
type Granularity string

const (
	// ByDay compares calendar dates in the scheduler's location.
	ByDay Granularity = "day"
	// ByInstant compares exact timestamps.
	ByInstant Granularity = "instant"
)

// Scheduler selects due items. The zero value is not usable; call NewScheduler.
type Scheduler struct {
	granularity Granularity
	loc         *time.Location

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Scheduler)

// WithGranularity sets the due comparison policy.
func WithGranularity(g Granularity) Option {
	return func(s *Scheduler) {
		if g == ByDay || g == ByInstant {
			s.granularity = g
		}
	}
}

// WithLocation sets the timezone used to find midnight under ByDay.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithRand replaces the shuffle source. Tests pass a seeded generator.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) { s.rnd = r }
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{granularity: ByDay, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsDue reports whether an item with the given next review date should be studied at now.
// A nil date means the item was never reviewed.
func (s *Scheduler) IsDue(next *time.Time, now time.Time) bool {
	if next == nil {
		return true
	}
	if s.granularity == ByInstant {
		return !next.After(now)
	}
	return !s.midnight(*next).After(s.midnight(now))
}

func (s *Scheduler) midnight(t time.Time) time.Time {
	t = t.In(s.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// SelectDue returns the due subset of items in random order. When nothing is
// due the whole set is returned instead and fallback is true.
func (s *Scheduler) SelectDue(items []vocab.Word, now time.Time) (due []vocab.Word, fallback bool) {
	due = make([]vocab.Word, 0, len(items))
	for _, it := range items {
		if s.IsDue(it.NextReviewDate, now) {
			due = append(due, it)
		}
	}
	if len(due) == 0 && len(items) > 0 {
		due = append(due, items...)
		fallback = true
	}
	s.shuffle(due)
	return due, fallback
}

// Practice scopes a session to the single item with the given id, skipping
// due selection and shuffling. ok is false when no such item exists.
func Practice(items []vocab.Word, id int64) (_ []vocab.Word, ok bool) {
	for _, it := range items {
		if it.ID == id {
			return []vocab.Word{it}, true
		}
	}
	return nil, false
}

// Pick returns one item chosen uniformly at random, the word of the day.
func (s *Scheduler) Pick(items []vocab.Word) (vocab.Word, bool) {
	if len(items) == 0 {
		return vocab.Word{}, false
	}
	if s.rnd == nil {
		return items[rand.IntN(len(items))], true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return items[s.rnd.IntN(len(items))], true
}

// shuffle is a Fisher-Yates permutation.
func (s *Scheduler) shuffle(items []vocab.Word) {
	swap := func(i, j int) { items[i], items[j] = items[j], items[i] }
	if s.rnd == nil {
		rand.Shuffle(len(items), swap)
		return
	}
	s.mu.Lock()
	s.rnd.Shuffle(len(items), swap)
	s.mu.Unlock()
}
