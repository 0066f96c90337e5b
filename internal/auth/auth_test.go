package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, clock *fakeClock, opts ...ServiceOption) *Service {
	t.Helper()
	tokens, err := NewTokenService("test-secret", WithTokenClock(clock.Now))
	require.NoError(t, err)
	opts = append([]ServiceOption{WithHasher(NewBcryptHasher(bcrypt.MinCost))}, opts...)
	return NewService(NewMemoryUsers(), tokens, opts...)
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService("  ")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewTokenService("secret-a", WithTokenClock(clock.Now))
	require.NoError(t, err)

	token, exp, err := svc.Issue(Identity{UserID: 42, Username: "ana"})
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(7*24*time.Hour), exp)

	id, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Username: "ana"}, id)

	clock.t = exp.Add(-time.Second)
	_, err = svc.Verify(token)
	require.NoError(t, err, "still valid just before expiry")

	clock.t = exp.Add(time.Second)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	a, err := NewTokenService("secret-a")
	require.NoError(t, err)
	b, err := NewTokenService("secret-b")
	require.NoError(t, err)

	token, _, err := a.Issue(Identity{UserID: 1, Username: "u"})
	require.NoError(t, err)
	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherAlgorithmsAndIssuers(t *testing.T) {
	svc, err := NewTokenService("secret-a")
	require.NoError(t, err)

	claims := Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    defaultIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret-a"))
	require.NoError(t, err)
	_, err = svc.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims.Issuer = "someone-else"
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret-a"))
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims.Issuer = defaultIssuer
	claims.ExpiresAt = nil
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret-a"))
	require.NoError(t, err)
	_, err = svc.Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignupCap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeClock{t: time.Now()})

	for i := 1; i <= DefaultMaxUsers; i++ {
		_, err := svc.Signup(ctx, fmt.Sprintf("user%d", i), "pw")
		require.NoError(t, err, "signup #%d", i)
	}
	_, err := svc.Signup(ctx, "user11", "pw")
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestSignupCustomCapAndDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeClock{t: time.Now()}, WithMaxUsers(2))

	_, err := svc.Signup(ctx, "Ana", "pw")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "Ana", "pw")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Signup(ctx, "ana", "pw")
	require.NoError(t, err, "usernames are case-sensitive")
	_, err = svc.Signup(ctx, "bob", "pw")
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestSignupRejectsEmptyPassword(t *testing.T) {
	svc := newTestService(t, &fakeClock{t: time.Now()})
	_, err := svc.Signup(context.Background(), "ana", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeClock{t: time.Now()})
	_, err := svc.Signup(ctx, "ana", "correct horse")
	require.NoError(t, err)

	_, errMissing := svc.Login(ctx, "nobody", "correct horse")
	_, errWrong := svc.Login(ctx, "ana", "battery staple")
	_, errCase := svc.Login(ctx, "ANA", "correct horse")

	require.ErrorIs(t, errMissing, ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	require.ErrorIs(t, errCase, ErrInvalidCredentials)
	assert.Equal(t, errMissing.Error(), errWrong.Error())
}

func TestLoginThenAuthenticate(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)

	u, err := svc.Signup(ctx, "ana", "pw")
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ana", sess.Username)
	assert.NotEmpty(t, sess.Token)

	id, err := svc.Authenticate(ctx, Credential{Token: sess.Token, Present: true})
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)

	clock.t = clock.t.Add(7*24*time.Hour + time.Second)
	_, err = svc.Authenticate(ctx, Credential{Token: sess.Token, Present: true})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestAuthenticateDistinguishesMissingFromInvalid(t *testing.T) {
	svc := newTestService(t, &fakeClock{t: time.Now()})
	_, err := svc.Authenticate(context.Background(), Credential{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Authenticate(context.Background(), Credential{Present: true})
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, err = svc.Authenticate(context.Background(), Credential{Token: "not.a.jwt", Present: true})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

type failingUsers struct{ err error }

func (f failingUsers) Count(context.Context) (int, error) { return 0, f.err }
func (f failingUsers) Create(context.Context, string, string) (User, error) {
	return User{}, f.err
}
func (f failingUsers) FindByUsername(context.Context, string) (User, error) {
	return User{}, f.err
}

func TestStoreFailuresAreNotCredentialErrors(t *testing.T) {
	boom := errors.New("connection reset")
	tokens, err := NewTokenService("s")
	require.NoError(t, err)
	svc := NewService(failingUsers{err: boom}, tokens)

	_, err = svc.Signup(context.Background(), "a", "b")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRegistrationClosed)

	_, err = svc.Login(context.Background(), "a", "b")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestIdentityContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithIdentity(context.Background(), Identity{UserID: 7, Username: "x"})
	uid, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), uid)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("pw")
	require.NoError(t, err)
	assert.NotContains(t, hash, "pw")

	ok, err := h.Verify("pw", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("nope", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify("pw", "garbage")
	assert.Error(t, err)

	cost, err := bcrypt.Cost([]byte(mustHash(t, NewBcryptHasher(0))))
	require.NoError(t, err)
	assert.Equal(t, DefaultBcryptCost, cost)
}

func mustHash(t *testing.T, h Hasher) string {
	t.Helper()
	s, err := h.Hash("pw")
	require.NoError(t, err)
	return s
}
