// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"one4allvocab.org/migrations"
)

// Manager executes SQL migrations against a PostgreSQL handle.
type Manager struct {
	provider *goose.Provider
}

// Option configures Manager.
type Option func(*config)

type config struct {
	fsys  fs.FS
	table string
}

// WithFS replaces the embedded migration set, mainly for tests.
func WithFS(fsys fs.FS) Option {
	return func(c *config) {
		if fsys != nil {
			c.fsys = fsys
		}
	}
}

// WithTable overrides the goose version table name.
func WithTable(name string) Option {
	return func(c *config) {
		if name != "" {
			c.table = name
		}
	}
}

// NewManager constructs a Manager. It reads the migration sources but does not touch the database.
func NewManager(db *sql.DB, opts ...Option) (*Manager, error) {
	c := config{fsys: migrations.FS, table: goose.DefaultTablename}
	for _, opt := range opts {
		opt(&c)
	}
	store, err := database.NewStore(database.DialectPostgres, c.table)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	// A custom store carries the dialect, so the provider's own dialect stays empty.
	p, err := goose.NewProvider("", db, c.fsys, goose.WithStore(store))
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Manager{provider: p}, nil
}

// Result describes one applied or rolled back migration.
type Result struct {
	Version  int64
	Path     string
	Duration time.Duration
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) ([]Result, error) {
	res, err := m.provider.Up(ctx)
	return convert(res), err
}

// Down rolls back the most recent migration.
func (m *Manager) Down(ctx context.Context) (Result, error) {
	res, err := m.provider.Down(ctx)
	if res == nil {
		return Result{}, err
	}
	return convert([]*goose.MigrationResult{res})[0], err
}

// Status lists every known migration with its applied time, zero when pending.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

func (m *Manager) Status(ctx context.Context) ([]Status, error) {
	list, err := m.provider.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(list))
	for _, st := range list {
		out = append(out, Status{
			Version:   st.Source.Version,
			Path:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

// Version returns the highest applied version.
func (m *Manager) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// Sources lists the versions known to the manager in ascending order.
func (m *Manager) Sources() []int64 {
	var out []int64
	for _, s := range m.provider.ListSources() {
		out = append(out, s.Version)
	}
	return out
}

func convert(res []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(res))
	for _, r := range res {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Result{Version: r.Source.Version, Path: r.Source.Path, Duration: r.Duration})
	}
	return out
}
