package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"one4allvocab.org/internal/obs"
)

const DefaultMaxUsers = 10

// Service orchestrates signup, login and token authentication.
type Service struct {
	users    UserStore
	hasher   Hasher
	tokens   *TokenService
	maxUsers int
	tracer   trace.Tracer

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithMaxUsers sets the registration cap.
func WithMaxUsers(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxUsers = n
		}
	}
}

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h Hasher) ServiceOption {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// NewService constructs Service with optional configuration.
func NewService(users UserStore, tokens *TokenService, opts ...ServiceOption) *Service {
	s := &Service{
		users:    users,
		hasher:   NewBcryptHasher(DefaultBcryptCost),
		tokens:   tokens,
		maxUsers: DefaultMaxUsers,
		tracer:   otel.Tracer("one4allvocab.org/internal/auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a user while fewer than maxUsers exist. The count and the
// insert are separate statements, so two concurrent signups at cap-1 may
// both succeed.
func (s *Service) Signup(ctx context.Context, username, password string) (User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Signup")
	defer span.End()

	n, err := s.users.Count(ctx)
	if err != nil {
		return User{}, s.fail(span, "signup", "error", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "count users").Wrap(err))
	}
	if n >= s.maxUsers {
		obs.RecordAuthEvent("signup", "closed")
		span.SetAttributes(attribute.Bool("auth.registration_closed", true))
		return User{}, ErrRegistrationClosed
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			obs.RecordAuthEvent("signup", "rejected")
			return User{}, err
		}
		return User{}, s.fail(span, "signup", "error", oops.Code("AUTH_HASH_FAILED").Wrap(err))
	}

	u, err := s.users.Create(ctx, username, hash)
	if errors.Is(err, ErrUsernameTaken) {
		obs.RecordAuthEvent("signup", "taken")
		return User{}, err
	}
	if err != nil {
		return User{}, s.fail(span, "signup", "error", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").Wrap(err))
	}
	obs.RecordAuthEvent("signup", "ok")
	span.SetAttributes(attribute.Int64("user.id", u.ID))
	return u, nil
}

// Login verifies credentials and issues a session token. Unknown usernames
// still pay for one hash comparison so both failure paths look the same.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		_, _ = s.hasher.Verify(password, s.dummy())
		obs.RecordAuthEvent("login", "invalid")
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, s.fail(span, "login", "error", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "find user").Wrap(err))
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return Session{}, s.fail(span, "login", "error", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").With("user_id", u.ID).Wrap(err))
	}
	if !ok {
		obs.RecordAuthEvent("login", "invalid")
		return Session{}, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(Identity{UserID: u.ID, Username: u.Username})
	if err != nil {
		return Session{}, s.fail(span, "login", "error", oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("user_id", u.ID).Wrap(err))
	}
	obs.RecordAuthEvent("login", "ok")
	span.SetAttributes(attribute.Int64("user.id", u.ID))
	return Session{Token: token, Username: u.Username, ExpiresAt: exp}, nil
}

// Authenticate resolves a bearer credential. Only an absent header is
// ErrUnauthenticated; a present credential that is blank or fails
// verification is ErrSessionExpired.
func (s *Service) Authenticate(ctx context.Context, cred Credential) (Identity, error) {
	if !cred.Present {
		obs.RecordAuthEvent("gate", "missing")
		return Identity{}, ErrUnauthenticated
	}
	if strings.TrimSpace(cred.Token) == "" {
		obs.RecordAuthEvent("gate", "expired")
		return Identity{}, ErrSessionExpired
	}
	id, err := s.tokens.Verify(cred.Token)
	if err != nil {
		obs.RecordAuthEvent("gate", "expired")
		return Identity{}, ErrSessionExpired
	}
	return id, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("one4allvocab-timing-parity")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *Service) fail(span trace.Span, event, outcome string, err error) error {
	obs.RecordAuthEvent(event, outcome)
	span.RecordError(err)
	span.SetStatus(codes.Error, event+" failed")
	return err
}
