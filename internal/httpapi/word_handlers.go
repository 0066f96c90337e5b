package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"one4allvocab.org/internal/audit"
	"one4allvocab.org/internal/auth"
	"one4allvocab.org/internal/obs"
	"one4allvocab.org/internal/srs"
	"one4allvocab.org/internal/vocab"
)

type wordRequest struct {
	Word            *string    `json:"word"`
	Meaning         string     `json:"meaning"`
	ExampleSentence string     `json:"example_sentence"`
	Notes           string     `json:"notes"`
	Difficulty      string     `json:"difficulty"`
	Tags            []string   `json:"tags"`
	NextReviewDate  *time.Time `json:"next_review_date"`
}

func (req wordRequest) input() (vocab.WordInput, error) {
	d, err := vocab.ParseDifficulty(req.Difficulty)
	if err != nil {
		return vocab.WordInput{}, err
	}
	in := vocab.WordInput{
		Meaning:         req.Meaning,
		ExampleSentence: req.ExampleSentence,
		Notes:           req.Notes,
		Difficulty:      d,
		Tags:            req.Tags,
	}
	if req.Word != nil {
		in.Word = *req.Word
	}
	return in, nil
}

type gradeRequest struct {
	Grade string `json:"grade"`
}

type reviewResponse struct {
	Items    []vocab.Word `json:"items"`
	Fallback bool         `json:"fallback"`
}

const totalCountHeader = "X-Total-Count"

// parseWordQuery reads q, difficulty, limit and offset. The body stays a
// plain array; the filtered total travels in X-Total-Count.
func parseWordQuery(v url.Values) (vocab.WordQuery, error) {
	q := vocab.WordQuery{Search: strings.TrimSpace(v.Get("q"))}
	if d := v.Get("difficulty"); d != "" && !strings.EqualFold(d, "all") {
		parsed, err := vocab.ParseDifficulty(d)
		if err != nil {
			return vocab.WordQuery{}, err
		}
		q.Difficulty = parsed
	}
	var err error
	if q.Limit, err = queryInt(v, "limit", vocab.MaxPageSize); err != nil {
		return vocab.WordQuery{}, err
	}
	if q.Offset, err = queryInt(v, "offset", math.MaxInt32); err != nil {
		return vocab.WordQuery{}, err
	}
	return q, nil
}

func queryInt(v url.Values, key string, upper int) (int, error) {
	raw := v.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > upper {
		return 0, fmt.Errorf("%w: %s must be an integer between 0 and %d", vocab.ErrValidation, key, upper)
	}
	return n, nil
}

func currentUser(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func (a *API) handleWords(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	switch r.Method {
	case http.MethodGet:
		var (
			items []vocab.Word
			total int
		)
		if len(r.URL.Query()) == 0 {
			var err error
			if items, err = a.store.ListWords(r.Context(), userID); err != nil {
				a.writeDomainError(w, r, err)
				return
			}
			total = len(items)
		} else {
			q, err := parseWordQuery(r.URL.Query())
			if err != nil {
				a.writeDomainError(w, r, err)
				return
			}
			page, err := a.store.SearchWords(r.Context(), userID, q)
			if err != nil {
				a.writeDomainError(w, r, err)
				return
			}
			items, total = page.Items, page.Total
		}
		if items == nil {
			items = []vocab.Word{}
		}
		w.Header().Set(totalCountHeader, strconv.Itoa(total))
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req wordRequest
		if err := a.schemas.decode(r, schemaWord, &req, false); err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		in, err := req.input()
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		created, err := a.store.CreateWord(r.Context(), userID, in)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "word.created", map[string]any{"word_id": created.ID})
		writeJSON(w, http.StatusCreated, map[string]any{"message": "Saved", "id": created.ID})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleWord(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(rawID)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}
	userID := currentUser(r)
	switch r.Method {
	case http.MethodGet:
		item, err := a.store.GetWord(r.Context(), userID, id)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPut:
		var req wordRequest
		if err := a.schemas.decode(r, schemaWordUpdate, &req, false); err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		if req.Word == nil && req.NextReviewDate != nil {
			if err := a.store.SetNextReview(r.Context(), userID, id, req.NextReviewDate.UTC()); err != nil {
				a.writeDomainError(w, r, err)
				return
			}
			_ = audit.LogEvent(r.Context(), "word.rescheduled", map[string]any{"word_id": id})
			writeMessage(w, http.StatusOK, "Updated successfully")
			return
		}
		in, err := req.input()
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		if err := a.store.UpdateWord(r.Context(), userID, id, in); err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "word.updated", map[string]any{"word_id": id})
		writeMessage(w, http.StatusOK, "Updated successfully")
	case http.MethodDelete:
		if err := a.store.DeleteWord(r.Context(), userID, id); err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "word.deleted", map[string]any{"word_id": id})
		writeMessage(w, http.StatusOK, "Deleted")
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleReview returns the caller's due items in random order, or every
// item when none is due. ?id=N practices that single item instead.
func (a *API) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	items, err := a.store.ListWords(r.Context(), currentUser(r))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	if raw := r.URL.Query().Get("id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, msgInvalidID)
			return
		}
		one, found := srs.Practice(items, id)
		if !found {
			a.writeNotFound(w)
			return
		}
		writeJSON(w, http.StatusOK, reviewResponse{Items: one})
		return
	}

	due, fallback := a.scheduler.SelectDue(items, a.now())
	if due == nil {
		due = []vocab.Word{}
	}
	writeJSON(w, http.StatusOK, reviewResponse{Items: due, Fallback: fallback})
}

// handleGrade schedules the next review from the server clock and touches
// nothing but next_review_date.
func (a *API) handleGrade(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	id, ok := parseID(rawID)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}
	var req gradeRequest
	if err := a.schemas.decode(r, schemaGrade, &req, true); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	g, err := srs.ParseGrade(req.Grade)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	next := srs.ComputeNextReview(g, a.now()).UTC()
	if err := a.store.SetNextReview(r.Context(), currentUser(r), id, next); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	obs.RecordGrade(string(g))
	_ = audit.LogEvent(r.Context(), "word.graded", map[string]any{"word_id": id, "grade": string(g)})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Updated successfully",
		"next_review_date": next,
	})
}

// handleWordOfTheDay returns one of the caller's words at random.
func (a *API) handleWordOfTheDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	items, err := a.store.ListWords(r.Context(), currentUser(r))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	word, ok := a.scheduler.Pick(items)
	if !ok {
		a.writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, word)
}
