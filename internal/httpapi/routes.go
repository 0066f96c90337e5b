package httpapi

import (
	"net/http"
	"strings"
)

// dispatch routes everything under the base path by method and the last
// one or two path segments. Only signup and login skip the access gate.
func (a *API) dispatch(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, a.basePath), "/")
	var parts []string
	if rest != "" {
		parts = strings.Split(rest, "/")
	}

	if len(parts) == 1 {
		switch parts[0] {
		case "signup":
			a.handleSignup(w, r)
			return
		case "login":
			a.handleLogin(w, r)
			return
		}
	}
	a.withAuth(func(w http.ResponseWriter, r *http.Request) {
		a.route(w, r, parts)
	})(w, r)
}

func (a *API) route(w http.ResponseWriter, r *http.Request, parts []string) {
	switch len(parts) {
	case 0:
		a.handleWords(w, r)
		return
	case 1:
		switch parts[0] {
		case "check-ai":
			a.handleCheckAI(w, r)
		case "deconstruct":
			a.handleDeconstruct(w, r)
		case "coach-session":
			a.handleCoach(w, r)
		case "review":
			a.handleReview(w, r)
		case "word-of-the-day":
			a.handleWordOfTheDay(w, r)
		case "sentences":
			a.handleSentences(w, r)
		default:
			a.handleWord(w, r, parts[0])
		}
		return
	case 2:
		switch {
		case parts[0] == "sentences":
			a.handleSentence(w, r, parts[1])
			return
		case parts[1] == "grade":
			a.handleGrade(w, r, parts[0])
			return
		}
	}
	writeError(w, http.StatusNotFound, "resource not found")
}
