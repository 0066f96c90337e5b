//go:build integration

package pg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"one4allvocab.org/internal/auth"
	"one4allvocab.org/internal/migrate"
	"one4allvocab.org/internal/vocab"
)

func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("vocab_test"),
		postgres.WithUsername("vocab"),
		postgres.WithPassword("vocab"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	s, err := Open(dsn, PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	m, err := migrate.NewManager(s.DB())
	require.NoError(t, err)
	_, err = m.Up(ctx)
	require.NoError(t, err)
	return s
}

func TestPostgresRepositories(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()
	users := s.Users()

	alice, err := users.Create(ctx, "alice", "hash-a")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob", "hash-b")
	require.NoError(t, err)
	_, err = users.Create(ctx, "alice", "again")
	assert.ErrorIs(t, err, auth.ErrUsernameTaken)
	_, err = users.Create(ctx, "Alice", "case differs")
	require.NoError(t, err)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = users.FindByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	w, err := s.CreateWord(ctx, alice.ID, vocab.WordInput{
		Word: "quixotic", Meaning: "idealistic", Notes: "from Don Quixote", Tags: []string{"adj", "c2"},
	})
	require.NoError(t, err)
	assert.Equal(t, vocab.DifficultyMedium, w.Difficulty)
	require.NotNil(t, w.NextReviewDate)

	t.Run("ownership", func(t *testing.T) {
		_, err := s.GetWord(ctx, bob.ID, w.ID)
		assert.ErrorIs(t, err, vocab.ErrNotFound)
		assert.ErrorIs(t, s.UpdateWord(ctx, bob.ID, w.ID, vocab.WordInput{Word: "x"}), vocab.ErrNotFound)
		assert.ErrorIs(t, s.SetNextReview(ctx, bob.ID, w.ID, time.Now()), vocab.ErrNotFound)
		assert.ErrorIs(t, s.DeleteWord(ctx, bob.ID, w.ID), vocab.ErrNotFound)
		list, err := s.ListWords(ctx, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("grading rewrites only the date", func(t *testing.T) {
		at := time.Date(2031, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, s.SetNextReview(ctx, alice.ID, w.ID, at))
		got, err := s.GetWord(ctx, alice.ID, w.ID)
		require.NoError(t, err)
		assert.Equal(t, w.Word, got.Word)
		assert.Equal(t, w.Meaning, got.Meaning)
		assert.Equal(t, w.Notes, got.Notes)
		assert.Equal(t, w.Difficulty, got.Difficulty)
		assert.Equal(t, []string{"adj", "c2"}, got.Tags)
		require.NotNil(t, got.NextReviewDate)
		assert.True(t, got.NextReviewDate.Equal(at))
	})

	t.Run("update replaces tags", func(t *testing.T) {
		require.NoError(t, s.UpdateWord(ctx, alice.ID, w.ID, vocab.WordInput{
			Word: "quixotic", Meaning: "unrealistic", Difficulty: vocab.DifficultyHard, Tags: []string{"b2"},
		}))
		got, err := s.GetWord(ctx, alice.ID, w.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"b2"}, got.Tags)
		assert.Equal(t, vocab.DifficultyHard, got.Difficulty)
	})

	t.Run("delete removes tags", func(t *testing.T) {
		require.NoError(t, s.DeleteWord(ctx, alice.ID, w.ID))
		var left int
		require.NoError(t, s.DB().QueryRowContext(ctx, `select count(*) from word_tags where word_id = $1`, w.ID).Scan(&left))
		assert.Zero(t, left)
	})

	t.Run("sentences", func(t *testing.T) {
		st, err := s.CreateSentence(ctx, alice.ID, vocab.SentenceInput{Text: "She don't know.", Explanation: "agreement"})
		require.NoError(t, err)
		_, err = s.GetSentence(ctx, bob.ID, st.ID)
		assert.ErrorIs(t, err, vocab.ErrNotFound)
		require.NoError(t, s.UpdateSentence(ctx, alice.ID, st.ID, vocab.SentenceInput{Text: "She doesn't know."}))
		got, err := s.GetSentence(ctx, alice.ID, st.ID)
		require.NoError(t, err)
		assert.Equal(t, "She doesn't know.", got.Text)
		require.NoError(t, s.DeleteSentence(ctx, alice.ID, st.ID))
	})
}
