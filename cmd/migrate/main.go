package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"one4allvocab.org/internal/config"
	"one4allvocab.org/internal/migrate"
	"one4allvocab.org/internal/store/pg"
)

var (
	configFile string
	timeout    time.Duration
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vocab-migrate",
		Short:        "Apply or inspect the embedded database migrations",
		SilenceUsage: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (YAML)")
	pf.String("dsn", "", "PostgreSQL DSN, overrides database.dsn")
	pf.DurationVar(&timeout, "timeout", 60*time.Second, "overall deadline")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withManager(func(ctx context.Context, cmd *cobra.Command, m *migrate.Manager) error {
			results, err := m.Up(ctx)
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
			}
			if len(results) == 0 {
				cmd.Println("no pending migrations")
			}
			for _, r := range results {
				cmd.Printf("applied %05d %s (%s)\n", r.Version, r.Path, r.Duration.Round(time.Millisecond))
			}
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withManager(func(ctx context.Context, cmd *cobra.Command, m *migrate.Manager) error {
			r, err := m.Down(ctx)
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
			}
			cmd.Printf("rolled back %05d %s\n", r.Version, r.Path)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: withManager(func(ctx context.Context, cmd *cobra.Command, m *migrate.Manager) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "status").Wrap(err)
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied " + s.AppliedAt.UTC().Format(time.RFC3339)
				}
				cmd.Printf("%05d %-32s %s\n", s.Version, s.Path, state)
			}
			return nil
		}),
	})
	return cmd
}

func withManager(run func(context.Context, *cobra.Command, *migrate.Manager) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return oops.Code("CONFIG_INVALID").Wrap(err)
		}
		if cfg.Database.DSN == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database.dsn is required (set VOCAB_DATABASE_DSN or --dsn)")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		store, err := pg.Open(cfg.Database.DSN, pg.PoolOptions{MaxOpenConns: 2, MaxIdleConns: 1})
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		defer store.Close()

		m, err := migrate.NewManager(store.DB())
		if err != nil {
			return oops.Code("MIGRATION_FAILED").Wrap(err)
		}
		return run(ctx, cmd, m)
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
