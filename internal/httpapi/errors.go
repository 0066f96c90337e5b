package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"one4allvocab.org/internal/ai"
	"one4allvocab.org/internal/auth"
	"one4allvocab.org/internal/obs"
	"one4allvocab.org/internal/srs"
	"one4allvocab.org/internal/vocab"
)

const (
	msgInternal      = "internal server error"
	msgInvalidID     = "Invalid ID"
	msgNoToken       = "No token provided"
	msgExpired       = "Session expired."
	msgBadLogin      = "Invalid credentials"
	msgClosed        = "Archives full."
	msgTaken         = "Username already exists"
	msgNotFound      = "not found"
	msgAIUnavailable = "AI service unavailable"
	msgAIUpstream    = "AI provider error"
	msgTooLarge      = "request body too large"
)

var errBodyTooLarge = errors.New(msgTooLarge)

// writeDomainError maps a service error onto a status and a client-safe
// message. Details of 5xx failures only reach the log.
func (a *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
	case errors.Is(err, vocab.ErrValidation),
		errors.Is(err, vocab.ErrInvalidDifficulty),
		errors.Is(err, srs.ErrInvalidGrade),
		errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, badRequestMessage(err))
	case errors.Is(err, auth.ErrRegistrationClosed):
		writeError(w, http.StatusForbidden, msgClosed)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgBadLogin)
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, msgNoToken)
	case errors.Is(err, auth.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, msgExpired)
	case errors.Is(err, auth.ErrUsernameTaken):
		writeError(w, http.StatusConflict, msgTaken)
	case errors.Is(err, vocab.ErrNotFound):
		a.writeNotFound(w)
	case errors.Is(err, ai.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, msgAIUnavailable)
	default:
		obs.LogError(obs.FromContext(r.Context()), "request failed", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// badRequestMessage puts lower-layer input errors into the same
// "validation failed: <detail>" form the request decoder uses.
func badRequestMessage(err error) string {
	if !errors.Is(err, auth.ErrInvalidInput) {
		return err.Error()
	}
	detail := strings.TrimPrefix(err.Error(), auth.ErrInvalidInput.Error())
	detail = strings.TrimSpace(strings.TrimPrefix(detail, ":"))
	if detail == "" || strings.Contains(detail, "auth:") {
		return vocab.ErrValidation.Error()
	}
	return vocab.ErrValidation.Error() + ": " + detail
}

// writeProviderError is used by check-ai only. A provider 5xx keeps its
// status; any other provider status becomes 502, never a 4xx.
func (a *API) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *ai.UpstreamError
	if !errors.As(err, &upstream) {
		a.writeDomainError(w, r, err)
		return
	}
	obs.LogError(obs.FromContext(r.Context()), "ai upstream failure", err)
	status := upstream.Status
	if status < 500 || status > 599 {
		status = http.StatusBadGateway
	}
	writeError(w, status, msgAIUpstream)
}

// writeNotFound answers a missing row. In the default mode this is a 200
// with an empty body, which existing clients treat as "nothing there".
func (a *API) writeNotFound(w http.ResponseWriter) {
	if a.notFound404 {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// parseID accepts positive decimal ids only.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
