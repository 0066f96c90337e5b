package httpapi

import (
	"net/http"

	"one4allvocab.org/internal/audit"
	"one4allvocab.org/internal/vocab"
)

type sentenceRequest struct {
	Text          string `json:"text"`
	Explanation   string `json:"explanation"`
	FormalVersion string `json:"formal_version"`
	CasualVersion string `json:"casual_version"`
}

func (req sentenceRequest) input() vocab.SentenceInput {
	return vocab.SentenceInput{
		Text:          req.Text,
		Explanation:   req.Explanation,
		FormalVersion: req.FormalVersion,
		CasualVersion: req.CasualVersion,
	}
}

func (a *API) handleSentences(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	switch r.Method {
	case http.MethodGet:
		items, err := a.store.ListSentences(r.Context(), userID)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		if items == nil {
			items = []vocab.Sentence{}
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req sentenceRequest
		if err := a.schemas.decode(r, schemaSentence, &req, false); err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		created, err := a.store.CreateSentence(r.Context(), userID, req.input())
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "sentence.created", map[string]any{"sentence_id": created.ID})
		writeJSON(w, http.StatusCreated, map[string]any{"message": "Saved", "id": created.ID})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSentence(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(rawID)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}
	userID := currentUser(r)
	switch r.Method {
	case http.MethodGet:
		s, err := a.store.GetSentence(r.Context(), userID, id)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	case http.MethodPut:
		var req sentenceRequest
		if err := a.schemas.decode(r, schemaSentence, &req, false); err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		if err := a.store.UpdateSentence(r.Context(), userID, id, req.input()); err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "sentence.updated", map[string]any{"sentence_id": id})
		writeMessage(w, http.StatusOK, "Updated successfully")
	case http.MethodDelete:
		if err := a.store.DeleteSentence(r.Context(), userID, id); err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "sentence.deleted", map[string]any{"sentence_id": id})
		writeMessage(w, http.StatusOK, "Deleted")
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
