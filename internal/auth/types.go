package auth

import "time"

// User is a registered account. Username is stored verbatim and compared case-sensitively.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the verified caller resolved from a session token.
type Identity struct {
	UserID   int64
	Username string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Credential is what a request presented at the gate. Present is false only
// when no Authorization header was sent at all.
type Credential struct {
	Token   string
	Present bool
}
