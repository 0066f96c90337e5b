package httpapi

import (
	"net/http"

	"one4allvocab.org/internal/ai"
)

type checkRequest struct {
	Word     string `json:"word"`
	Sentence string `json:"sentence"`
}

type deconstructRequest struct {
	Text string `json:"text"`
}

type coachRequest struct {
	Message string `json:"message"`
}

// aiRequest handles the checks shared by every AI route and decodes the body.
// It reports false once a response has been written.
func (a *API) aiRequest(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return false
	}
	if a.tutor == nil {
		a.writeDomainError(w, r, ai.ErrDisabled)
		return false
	}
	if err := a.schemas.decode(r, schema, dst, false); err != nil {
		a.writeDomainError(w, r, err)
		return false
	}
	return true
}

func (a *API) handleCheckAI(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !a.aiRequest(w, r, schemaCheck, &req) {
		return
	}
	text, err := a.tutor.CheckSentence(r.Context(), req.Word, req.Sentence)
	if err != nil {
		a.writeProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (a *API) handleDeconstruct(w http.ResponseWriter, r *http.Request) {
	var req deconstructRequest
	if !a.aiRequest(w, r, schemaDeconstruct, &req) {
		return
	}
	d, err := a.tutor.Deconstruct(r.Context(), req.Text)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleCoach(w http.ResponseWriter, r *http.Request) {
	var req coachRequest
	if !a.aiRequest(w, r, schemaCoach, &req) {
		return
	}
	reply, err := a.tutor.Coach(r.Context(), req.Message)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
