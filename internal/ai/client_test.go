package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("http://example", " ", "m", 0)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClientCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer k-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Looks good."}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "k-123", "llama-3.3-70b-versatile", time.Second, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), Request{System: "sys", User: "usr", Temperature: 0.5, MaxTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, "Looks good.", text)

	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: "sys"}, got.Messages[0])
	assert.Equal(t, Message{Role: "user", Content: "usr"}, got.Messages[1])
	assert.InDelta(t, 0.5, got.Temperature, 1e-9)
	assert.Equal(t, 50, got.MaxTokens)
	assert.Nil(t, got.ResponseFormat)
}

func TestClientCompleteUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "k", "m", time.Second)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{JSON: true})
	require.ErrorIs(t, err, ErrUpstream)

	var up *UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusTooManyRequests, up.Status)
}

func TestClientCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "k", "m", time.Second)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{})
	var up *UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusBadGateway, up.Status)
}

type scriptedLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []Request
}

func (s *scriptedLLM) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.reply, s.err
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func TestTutorCheckSentenceUsesTaskSettingsAndCache(t *testing.T) {
	llm := &scriptedLLM{reply: "Use 'an' before vowels."}
	cache := &mapCache{m: map[string]string{}}
	tutor := NewTutor(llm, WithCache(cache, time.Hour), WithModel("m"))

	for range 2 {
		text, err := tutor.CheckSentence(context.Background(), "apple", "I ate a apple.")
		require.NoError(t, err)
		assert.Equal(t, "Use 'an' before vowels.", text)
	}
	require.Len(t, llm.calls, 1, "second call is served from cache")
	req := llm.calls[0]
	assert.Equal(t, checkSystem, req.System)
	assert.Equal(t, `Word: "apple". Sentence: "I ate a apple.".`, req.User)
	assert.InDelta(t, 0.5, req.Temperature, 1e-9)
	assert.Equal(t, 50, req.MaxTokens)
}

func TestTutorCoachIsNeverCached(t *testing.T) {
	llm := &scriptedLLM{reply: "Nice! Now try the past tense."}
	tutor := NewTutor(llm, WithCache(&mapCache{m: map[string]string{}}, time.Hour),
		WithTask(TaskCoach, Settings{Temperature: 0.9, MaxTokens: 120}))

	for range 2 {
		_, err := tutor.Coach(context.Background(), "I go to school yesterday")
		require.NoError(t, err)
	}
	require.Len(t, llm.calls, 2)
	assert.Equal(t, 120, llm.calls[0].MaxTokens)
}

func TestTutorDeconstruct(t *testing.T) {
	llm := &scriptedLLM{reply: "```json\n{\"explanation\":\"Idiom meaning heavy rain.\",\"variations\":{\"formal\":\"It is raining heavily.\",\"casual\":\"It's pouring.\"}}\n```"}
	tutor := NewTutor(llm)

	d, err := tutor.Deconstruct(context.Background(), "It's raining cats and dogs.")
	require.NoError(t, err)
	assert.Equal(t, "Idiom meaning heavy rain.", d.Explanation)
	assert.Equal(t, Variations{Formal: "It is raining heavily.", Casual: "It's pouring."}, d.Variations)
	require.Len(t, llm.calls, 1)
	assert.True(t, llm.calls[0].JSON)
}

func TestTutorDeconstructMalformed(t *testing.T) {
	tutor := NewTutor(&scriptedLLM{reply: "Sure! Here is the analysis."})
	_, err := tutor.Deconstruct(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpstream)
}

func TestTutorKeepsUpstreamStatus(t *testing.T) {
	tutor := NewTutor(&scriptedLLM{err: &UpstreamError{Status: 401}})
	_, err := tutor.CheckSentence(context.Background(), "w", "s")
	var up *UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, 401, up.Status)
}
