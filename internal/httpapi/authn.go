package httpapi

import (
	"net/http"
	"strings"

	"one4allvocab.org/internal/auth"
)

const authHeader = "Authorization"

// withAuth is the access gate: no resource is touched until the bearer
// credential resolves to an identity.
func (a *API) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, present := bearerToken(r.Header)
		id, err := a.auth.Authenticate(r.Context(), auth.Credential{Token: token, Present: present})
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		noteUser(r.Context(), id.UserID)
		next(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	}
}

// bearerToken returns the second whitespace-separated field of the
// Authorization header and whether the header was sent at all.
func bearerToken(h http.Header) (string, bool) {
	v, ok := authorizationValue(h)
	if !ok {
		return "", false
	}
	fields := strings.Fields(v)
	if len(fields) < 2 {
		return "", true
	}
	return fields[1], true
}

// authorizationValue looks the header up by canonical name first, then
// case-insensitively for maps built without canonicalization.
func authorizationValue(h http.Header) (string, bool) {
	if vs, ok := h[authHeader]; ok && len(vs) > 0 {
		return vs[0], true
	}
	for k, vs := range h {
		if strings.EqualFold(k, authHeader) && len(vs) > 0 {
			return vs[0], true
		}
	}
	return "", false
}
