package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"one4allvocab.org/internal/obs"
)

// Task names, also used as metric labels.
const (
	TaskCheck       = "check"
	TaskDeconstruct = "deconstruct"
	TaskCoach       = "coach"
)

const (
	checkSystem = "You are a vocabulary tutor. Provide a very brief correction (max 20 words)."

	deconstructSystem = `You analyse English sentences for a language learner. ` +
		`Reply with a JSON object only, shaped exactly as ` +
		`{"explanation": string, "variations": {"formal": string, "casual": string}}. ` +
		`"explanation" describes the grammar and tone in plain words. ` +
		`"formal" and "casual" rewrite the sentence in those registers.`

	coachSystem = `You are a friendly English fluency coach. Keep every reply under 80 words. ` +
		`Gently correct mistakes in the learner's last message and end with one short follow-up challenge.`
)

// Settings bounds one task's completions.
type Settings struct {
	Temperature float64
	MaxTokens   int
}

// Variations are register rewrites of a sentence.
type Variations struct {
	Formal string `json:"formal"`
	Casual string `json:"casual"`
}

// Deconstruction is the structured reply of the deconstruct task.
type Deconstruction struct {
	Explanation string     `json:"explanation"`
	Variations  Variations `json:"variations"`
}

// Tutor runs the check, deconstruct and coach prompts. Check and deconstruct
// replies are cached when a Cache is configured; coach replies never are.
type Tutor struct {
	llm      Completer
	model    string
	cache    Cache
	cacheTTL time.Duration
	tasks    map[string]Settings
}

type TutorOption func(*Tutor)

// WithCache enables completion caching.
func WithCache(c Cache, ttl time.Duration) TutorOption {
	return func(t *Tutor) {
		t.cache = c
		t.cacheTTL = ttl
	}
}

// WithTask overrides the settings for one task name.
func WithTask(name string, s Settings) TutorOption {
	return func(t *Tutor) {
		if s.MaxTokens > 0 {
			t.tasks[name] = s
		}
	}
}

// WithModel sets the model name mixed into cache keys.
func WithModel(model string) TutorOption {
	return func(t *Tutor) { t.model = model }
}

func NewTutor(llm Completer, opts ...TutorOption) *Tutor {
	t := &Tutor{
		llm: llm,
		tasks: map[string]Settings{
			TaskCheck:       {Temperature: 0.5, MaxTokens: 50},
			TaskDeconstruct: {Temperature: 0.3, MaxTokens: 400},
			TaskCoach:       {Temperature: 0.7, MaxTokens: 300},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CheckSentence asks for a brief correction of sentence's use of word.
func (t *Tutor) CheckSentence(ctx context.Context, word, sentence string) (string, error) {
	user := fmt.Sprintf("Word: %q. Sentence: %q.", word, sentence)
	return t.run(ctx, TaskCheck, Request{System: checkSystem, User: user}, true)
}

// Deconstruct explains a sentence and rewrites it formally and casually.
func (t *Tutor) Deconstruct(ctx context.Context, text string) (Deconstruction, error) {
	raw, err := t.run(ctx, TaskDeconstruct, Request{System: deconstructSystem, User: text, JSON: true}, true)
	if err != nil {
		return Deconstruction{}, err
	}
	var d Deconstruction
	if err := json.Unmarshal([]byte(stripFence(raw)), &d); err != nil {
		return Deconstruction{}, oops.Code("AI_MALFORMED_REPLY").With("task", TaskDeconstruct).Wrap(err)
	}
	return d, nil
}

// Coach replies to one learner message.
func (t *Tutor) Coach(ctx context.Context, message string) (string, error) {
	return t.run(ctx, TaskCoach, Request{System: coachSystem, User: message}, false)
}

func (t *Tutor) run(ctx context.Context, task string, req Request, cacheable bool) (string, error) {
	ctx, span := otel.Tracer("one4allvocab.org/internal/ai").Start(ctx, "ai."+task)
	defer span.End()

	s := t.tasks[task]
	req.Temperature, req.MaxTokens = s.Temperature, s.MaxTokens
	span.SetAttributes(attribute.String("ai.task", task), attribute.Int("ai.max_tokens", s.MaxTokens))

	var key string
	if cacheable && t.cache != nil {
		key = t.cacheKey(task, req)
		if v, ok, err := t.cache.Get(ctx, key); err != nil {
			obs.LogError(obs.FromContext(ctx), "ai cache read failed", err)
		} else if ok {
			span.SetAttributes(attribute.Bool("ai.cache_hit", true))
			obs.RecordCompletion(task, "cache_hit", 0)
			return v, nil
		}
	}

	start := time.Now()
	text, err := t.llm.Complete(ctx, req)
	if err != nil {
		obs.RecordCompletion(task, "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", oops.Code("AI_COMPLETION_FAILED").With("task", task).Wrap(err)
	}
	obs.RecordCompletion(task, "ok", time.Since(start))

	if key != "" {
		if err := t.cache.Set(ctx, key, text, t.cacheTTL); err != nil {
			obs.LogError(obs.FromContext(ctx), "ai cache write failed", err)
		}
	}
	return text, nil
}

func (t *Tutor) cacheKey(task string, req Request) string {
	h := sha256.New()
	for _, part := range []string{
		t.model, req.System, req.User,
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		strconv.Itoa(req.MaxTokens),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "vocab:ai:" + task + ":" + hex.EncodeToString(h.Sum(nil))
}

// stripFence removes a ```json fence some models wrap around JSON replies.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
