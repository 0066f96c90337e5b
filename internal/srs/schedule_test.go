package srs

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"one4allvocab.org/internal/vocab"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestComputeNextReviewIntervals(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)
	cases := []struct {
		grade Grade
		want  time.Time
	}{
		{GradeHard, now.Add(24 * time.Hour)},
		{GradeMedium, now.Add(48 * time.Hour)},
		{GradeEasy, now.Add(96 * time.Hour)},
		{Grade(""), now.Add(48 * time.Hour)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ComputeNextReview(tc.grade, now), "grade %q", tc.grade)
	}
}

func TestComputeNextReviewIgnoresPriorDate(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	first := ComputeNextReview(GradeEasy, now)
	// Grading again at the same moment lands on the same date, not first+4d.
	assert.Equal(t, first, ComputeNextReview(GradeEasy, now))
}

func TestParseGrade(t *testing.T) {
	for in, want := range map[string]Grade{"": GradeMedium, "hard": GradeHard, "Easy": GradeEasy, " MEDIUM ": GradeMedium} {
		got, err := ParseGrade(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseGrade("again")
	assert.ErrorIs(t, err, ErrInvalidGrade)
}

func ptr(t time.Time) *time.Time { return &t }

func TestIsDueByDay(t *testing.T) {
	s := NewScheduler()
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	assert.True(t, s.IsDue(nil, now))
	assert.True(t, s.IsDue(ptr(now.Add(-time.Hour)), now))
	assert.True(t, s.IsDue(ptr(time.Date(2026, 5, 10, 23, 0, 0, 0, time.UTC)), now), "later the same day")
	assert.False(t, s.IsDue(ptr(time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)), now))
}

func TestIsDueByInstant(t *testing.T) {
	s := NewScheduler(WithGranularity(ByInstant))
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	assert.True(t, s.IsDue(ptr(now), now))
	assert.False(t, s.IsDue(ptr(now.Add(time.Second)), now))
}

func TestIsDueRespectsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	s := NewScheduler(WithLocation(loc))
	// 20:00 UTC is already the next calendar day at UTC+5.
	now := time.Date(2026, 5, 10, 20, 0, 0, 0, time.UTC)
	next := time.Date(2026, 5, 10, 19, 30, 0, 0, time.UTC).Add(24 * time.Hour)
	assert.False(t, s.IsDue(&next, now))
	assert.True(t, s.IsDue(ptr(time.Date(2026, 5, 11, 1, 0, 0, 0, loc)), now))
}

func TestSelectDueFallsBackToAll(t *testing.T) {
	s := NewScheduler(WithRand(rand.New(rand.NewPCG(1, 2))))
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	items := []vocab.Word{
		{ID: 1, NextReviewDate: ptr(now.Add(48 * time.Hour))},
		{ID: 2, NextReviewDate: ptr(now.Add(72 * time.Hour))},
		{ID: 3, NextReviewDate: ptr(now.Add(96 * time.Hour))},
	}
	due, fallback := s.SelectDue(items, now)
	assert.True(t, fallback)
	assert.ElementsMatch(t, items, due)
}

func TestSelectDueFiltersAndKeepsInputIntact(t *testing.T) {
	s := NewScheduler(WithRand(rand.New(rand.NewPCG(7, 7))))
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	items := []vocab.Word{
		{ID: 1},
		{ID: 2, NextReviewDate: ptr(now.Add(-72 * time.Hour))},
		{ID: 3, NextReviewDate: ptr(now.Add(72 * time.Hour))},
	}
	due, fallback := s.SelectDue(items, now)
	assert.False(t, fallback)
	ids := []int64{}
	for _, w := range due {
		ids = append(ids, w.ID)
	}
	assert.ElementsMatch(t, []int64{1, 2}, ids)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, int64(3), items[2].ID)
}

func TestSelectDueEmpty(t *testing.T) {
	due, fallback := NewScheduler().SelectDue(nil, time.Now())
	assert.Empty(t, due)
	assert.False(t, fallback)
}

func TestShuffleReachesEveryPermutation(t *testing.T) {
	s := NewScheduler(WithRand(rand.New(rand.NewPCG(42, 99))))
	items := []vocab.Word{{ID: 1}, {ID: 2}, {ID: 3}}
	seen := map[[3]int64]int{}
	for range 3000 {
		due, _ := s.SelectDue(items, time.Now())
		seen[[3]int64{due[0].ID, due[1].ID, due[2].ID}]++
	}
	require.Len(t, seen, 6)
	for perm, n := range seen {
		assert.Greater(t, n, 300, "permutation %v is under-represented", perm)
	}
}

func TestPractice(t *testing.T) {
	items := []vocab.Word{{ID: 4}, {ID: 9}}
	got, ok := Practice(items, 9)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].ID)

	_, ok = Practice(items, 5)
	assert.False(t, ok)
}

func TestPickCoversEveryItem(t *testing.T) {
	s := NewScheduler(WithRand(rand.New(rand.NewPCG(3, 4))))
	_, ok := s.Pick(nil)
	assert.False(t, ok)

	items := []vocab.Word{{ID: 1}, {ID: 2}, {ID: 3}}
	seen := map[int64]bool{}
	for range 200 {
		w, ok := s.Pick(items)
		require.True(t, ok)
		seen[w.ID] = true
	}
	assert.Len(t, seen, 3)
}
