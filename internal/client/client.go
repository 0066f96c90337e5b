// Package client is a typed HTTP client for the vocabulary API. It satisfies
// srs.Grader and srs.Refresher so a review session can run against a server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"one4allvocab.org/internal/srs"
	"one4allvocab.org/internal/vocab"
)

// ErrUnauthorized is returned for any 401. The stored token has already
// been discarded when a caller sees it.
var ErrUnauthorized = errors.New("client: unauthorized")

// APIError is a non-2xx answer other than 401.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Is lets a 404 match vocab.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == vocab.ErrNotFound && e.Status == http.StatusNotFound
}

type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
	words []vocab.Word
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithToken starts the client with an existing session.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New targets baseURL, which includes the API base path (e.g. http://host:8080/api).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Words returns the list loaded by the last Refresh.
func (c *Client) Words() []vocab.Word {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]vocab.Word(nil), c.words...)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Signup(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/signup", credentials{username, password}, nil)
}

// Login stores the issued token for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", credentials{username, password}, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return errors.New("client: empty token returned")
	}
	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return nil
}

type wordPayload struct {
	Word            string   `json:"word"`
	Meaning         string   `json:"meaning,omitempty"`
	ExampleSentence string   `json:"example_sentence,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	Difficulty      string   `json:"difficulty,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

func toPayload(in vocab.WordInput) wordPayload {
	return wordPayload{
		Word:            in.Word,
		Meaning:         in.Meaning,
		ExampleSentence: in.ExampleSentence,
		Notes:           in.Notes,
		Difficulty:      string(in.Difficulty),
		Tags:            in.Tags,
	}
}

func (c *Client) ListWords(ctx context.Context) ([]vocab.Word, error) {
	var out []vocab.Word
	err := c.do(ctx, http.MethodGet, "/", nil, &out)
	return out, err
}

// SearchWords filters and pages the caller's words.
func (c *Client) SearchWords(ctx context.Context, q vocab.WordQuery) (vocab.WordPage, error) {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Difficulty != "" {
		v.Set("difficulty", string(q.Difficulty))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var page vocab.WordPage
	h, err := c.doHeader(ctx, http.MethodGet, path, nil, &page.Items)
	if err != nil {
		return vocab.WordPage{}, err
	}
	page.Total, err = strconv.Atoi(h.Get("X-Total-Count"))
	if err != nil {
		page.Total = len(page.Items)
	}
	return page, nil
}

// WordOfTheDay returns a random word from the caller's library, or
// vocab.ErrNotFound when it is empty.
func (c *Client) WordOfTheDay(ctx context.Context) (vocab.Word, error) {
	var out vocab.Word
	err := c.do(ctx, http.MethodGet, "/word-of-the-day", nil, &out)
	return out, err
}

func (c *Client) GetWord(ctx context.Context, id int64) (vocab.Word, error) {
	var out vocab.Word
	err := c.do(ctx, http.MethodGet, "/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

func (c *Client) CreateWord(ctx context.Context, in vocab.WordInput) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/", toPayload(in), &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) UpdateWord(ctx context.Context, id int64, in vocab.WordInput) error {
	return c.do(ctx, http.MethodPut, "/"+strconv.FormatInt(id, 10), toPayload(in), nil)
}

func (c *Client) DeleteWord(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/"+strconv.FormatInt(id, 10), nil, nil)
}

// Review fetches the server-selected queue. fallback reports that nothing
// was due and every item was returned.
func (c *Client) Review(ctx context.Context) (items []vocab.Word, fallback bool, err error) {
	return c.review(ctx, "/review")
}

// Practice fetches a single-item queue.
func (c *Client) Practice(ctx context.Context, id int64) ([]vocab.Word, error) {
	items, _, err := c.review(ctx, "/review?"+url.Values{"id": {strconv.FormatInt(id, 10)}}.Encode())
	return items, err
}

func (c *Client) review(ctx context.Context, path string) ([]vocab.Word, bool, error) {
	var out struct {
		Items    []vocab.Word `json:"items"`
		Fallback bool         `json:"fallback"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, false, err
	}
	return out.Items, out.Fallback, nil
}

// GradeWord records a grade and returns the next review date chosen by the server.
func (c *Client) GradeWord(ctx context.Context, id int64, g srs.Grade) (time.Time, error) {
	var out struct {
		NextReviewDate time.Time `json:"next_review_date"`
	}
	body := map[string]string{"grade": string(g)}
	if err := c.do(ctx, http.MethodPost, "/"+strconv.FormatInt(id, 10)+"/grade", body, &out); err != nil {
		return time.Time{}, err
	}
	return out.NextReviewDate, nil
}

// Refresh reloads the word list after a finished session.
func (c *Client) Refresh(ctx context.Context) error {
	words, err := c.ListWords(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.words = words
	c.mu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.doHeader(ctx, method, path, in, out)
	return err
}

// doHeader is do that also hands back the response headers.
func (c *Client) doHeader(ctx context.Context, method, path string, in, out any) (http.Header, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return resp.Header, fmt.Errorf("%w: %s", ErrUnauthorized, errorMessage(raw, resp.Status))
	}
	if resp.StatusCode >= 300 {
		return resp.Header, &APIError{Status: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	if out == nil {
		return resp.Header, nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		// servers in the default not-found mode answer a missing row with an empty 200
		return resp.Header, vocab.ErrNotFound
	}
	return resp.Header, json.Unmarshal(raw, out)
}

func errorMessage(raw []byte, fallback string) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return fallback
}
