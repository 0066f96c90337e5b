package auth

import "errors"

var (
	// ErrRegistrationClosed is returned by Signup once the user cap is reached.
	ErrRegistrationClosed = errors.New("auth: registration closed")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrUnauthenticated means no bearer credential was presented.
	ErrUnauthenticated = errors.New("auth: no token provided")
	// ErrSessionExpired means a credential was presented but failed verification.
	ErrSessionExpired = errors.New("auth: session expired")
	ErrUsernameTaken  = errors.New("auth: username taken")
	ErrUserNotFound   = errors.New("auth: user not found")
	ErrInvalidInput   = errors.New("auth: invalid input")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrMissingSecret  = errors.New("auth: signing secret is not configured")
)
