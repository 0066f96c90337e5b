package httpapi

import (
	"net/http"

	"one4allvocab.org/internal/audit"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req credentialsRequest
	if err := a.schemas.decode(r, schemaCredentials, &req, false); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	u, err := a.auth.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.signup", map[string]any{"user_id": u.ID})
	writeMessage(w, http.StatusCreated, "User registered")
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req credentialsRequest
	if err := a.schemas.decode(r, schemaCredentials, &req, false); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	sess, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.login", map[string]any{"username": sess.Username})
	writeJSON(w, http.StatusOK, loginResponse{Token: sess.Token, Username: sess.Username})
}
