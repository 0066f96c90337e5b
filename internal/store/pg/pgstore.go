// Package pg implements the user, word and sentence repositories on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"one4allvocab.org/internal/auth"
	"one4allvocab.org/internal/vocab"
)

var (
	_ vocab.Store    = (*Store)(nil)
	_ auth.UserStore = (*Users)(nil)
)

var tracer = otel.Tracer("one4allvocab.org/internal/store/pg")

// PoolOptions tunes the database/sql pool. Zero values keep the defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type Store struct {
	db *sql.DB
}

func Open(dsn string, opts PoolOptions) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(orInt(opts.MaxOpenConns, 20))
	db.SetMaxIdleConns(orInt(opts.MaxIdleConns, 10))
	db.SetConnMaxLifetime(orDuration(opts.ConnMaxLifetime, 15*time.Minute))
	db.SetConnMaxIdleTime(orDuration(opts.ConnMaxIdleTime, 5*time.Minute))
	return &Store{db: db}, nil
}

// New wraps an existing handle, e.g. one created by sqlmock.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports database readiness.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Users returns the credential store sharing this connection pool.
func (s *Store) Users() *Users { return &Users{db: s.db} }

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func startSpan(ctx context.Context, op string, userID int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pg."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql"), attribute.Int64("user.id", userID)))
}

// queryFailed wraps a driver error, records it on the span and tags it with the operation.
func queryFailed(span trace.Span, op string, userID int64, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return oops.Code("STORE_QUERY_FAILED").
		With("operation", op).
		With("user_id", userID).
		Wrap(err)
}

// expectOne maps a zero-row update or delete to vocab.ErrNotFound. Rows owned
// by another user are filtered by the where clause and look missing.
func expectOne(res sql.Result, span trace.Span, op string, userID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return queryFailed(span, op, userID, err)
	}
	if n == 0 {
		return vocab.ErrNotFound
	}
	return nil
}
