package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"one4allvocab.org/internal/auth"
)

// Users is the credential store over the users table.
type Users struct {
	db *sql.DB
}

func (u *Users) Count(ctx context.Context) (int, error) {
	ctx, span := startSpan(ctx, "CountUsers", 0)
	defer span.End()
	var n int
	if err := u.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&n); err != nil {
		return 0, queryFailed(span, "count users", 0, err)
	}
	return n, nil
}

func (u *Users) Create(ctx context.Context, username, passwordHash string) (auth.User, error) {
	ctx, span := startSpan(ctx, "CreateUser", 0)
	defer span.End()
	out := auth.User{Username: username, PasswordHash: passwordHash}
	err := u.db.QueryRowContext(ctx,
		`insert into users (username, password) values ($1, $2) returning id, created_at`,
		username, passwordHash,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.User{}, auth.ErrUsernameTaken
		}
		return auth.User{}, queryFailed(span, "create user", 0, err)
	}
	return out, nil
}

// FindByUsername matches the stored username exactly.
func (u *Users) FindByUsername(ctx context.Context, username string) (auth.User, error) {
	ctx, span := startSpan(ctx, "FindUser", 0)
	defer span.End()
	var out auth.User
	err := u.db.QueryRowContext(ctx,
		`select id, username, password, created_at from users where username = $1`, username,
	).Scan(&out.ID, &out.Username, &out.PasswordHash, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, queryFailed(span, "find user", 0, err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
