package srs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"one4allvocab.org/internal/vocab"
)

type fakeGrader struct {
	now    time.Time
	calls  []int64
	grades []Grade
	err    error
}

func (f *fakeGrader) GradeWord(_ context.Context, id int64, g Grade) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	f.calls = append(f.calls, id)
	f.grades = append(f.grades, g)
	return ComputeNextReview(g, f.now), nil
}

type countingRefresher struct{ n int }

func (c *countingRefresher) Refresh(context.Context) error {
	c.n++
	return nil
}

func TestSessionWalkthrough(t *testing.T) {
	ctx := context.Background()
	g := &fakeGrader{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := &countingRefresher{}
	s := NewSession(g, r)

	assert.Equal(t, NotStarted, s.State().Phase)
	assert.ErrorIs(t, s.Flip(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Grade(ctx, GradeEasy), ErrInvalidTransition)

	require.NoError(t, s.Start([]vocab.Word{{ID: 10}, {ID: 20}}))
	assert.Equal(t, State{Phase: Presenting, Index: 0, Face: Front, Total: 2}, s.State())

	require.NoError(t, s.Flip())
	assert.Equal(t, Back, s.State().Face)
	require.NoError(t, s.Flip())
	assert.Equal(t, Front, s.State().Face)
	require.NoError(t, s.Flip())
	assert.Equal(t, 0, s.State().Index, "flip never advances")

	require.NoError(t, s.Grade(ctx, GradeHard))
	assert.Equal(t, State{Phase: Presenting, Index: 1, Face: Front, Total: 2}, s.State())
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, int64(20), cur.ID)
	assert.Equal(t, 0, r.n)

	require.NoError(t, s.Grade(ctx, GradeEasy))
	assert.Equal(t, Finished, s.State().Phase)
	assert.Equal(t, 1, r.n)
	assert.Equal(t, []int64{10, 20}, g.calls)
	assert.Equal(t, []Grade{GradeHard, GradeEasy}, g.grades)

	_, ok = s.Current()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Grade(ctx, GradeEasy), ErrInvalidTransition)
	assert.ErrorIs(t, s.Start([]vocab.Word{{ID: 1}}), ErrInvalidTransition)
	assert.Equal(t, 1, r.n)
}

func TestSessionGraderFailureKeepsCard(t *testing.T) {
	boom := errors.New("store down")
	g := &fakeGrader{err: boom}
	s := NewSession(g, nil)
	require.NoError(t, s.Start([]vocab.Word{{ID: 1}}))

	err := s.Grade(context.Background(), GradeMedium)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, State{Phase: Presenting, Index: 0, Face: Front, Total: 1}, s.State())
}

func TestSessionRejectsEmptyStart(t *testing.T) {
	s := NewSession(&fakeGrader{}, nil)
	assert.ErrorIs(t, s.Start(nil), ErrNoItems)
	assert.Equal(t, NotStarted, s.State().Phase)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "grading", Grading.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
