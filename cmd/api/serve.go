package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"one4allvocab.org/internal/ai"
	"one4allvocab.org/internal/auth"
	"one4allvocab.org/internal/config"
	"one4allvocab.org/internal/httpapi"
	"one4allvocab.org/internal/migrate"
	"one4allvocab.org/internal/obs"
	"one4allvocab.org/internal/srs"
	"one4allvocab.org/internal/store/pg"
	"one4allvocab.org/internal/vocab"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger := obs.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	defer obs.SetLogger(logger)()
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	api, err := httpapi.New(deps, httpapi.Options{
		BasePath:     cfg.Server.BasePath,
		NotFoundMode: cfg.HTTP.NotFoundMode,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Version:      version,
	})
	if err != nil {
		return oops.Code("HTTP_INIT_FAILED").Wrap(err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting vocab-api",
			zap.String("version", version),
			zap.String("addr", srv.Addr),
			zap.String("base_path", cfg.Server.BasePath),
			zap.Bool("ai_enabled", deps.Tutor != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("HTTP_LISTEN_FAILED").Wrap(err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.LogError(logger, "graceful shutdown failed", err)
	}
	logger.Info("stopped")
	return nil
}

// buildDeps wires storage, auth, scheduling and the optional AI tutor.
func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (httpapi.Deps, func(), error) {
	var (
		deps     httpapi.Deps
		closers  []func()
		users    auth.UserStore
		cleanups = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	)

	if cfg.Database.DSN != "" {
		store, err := pg.Open(cfg.Database.DSN, pg.PoolOptions{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return deps, cleanups, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		closers = append(closers, func() { _ = store.Close() })

		if cfg.Database.AutoMigrate {
			mgr, err := migrate.NewManager(store.DB())
			if err != nil {
				return deps, cleanups, oops.Code("MIGRATION_FAILED").Wrap(err)
			}
			applied, err := mgr.Up(ctx)
			if err != nil {
				return deps, cleanups, oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
			}
			logger.Info("migrations applied", zap.Int("count", len(applied)))
		}

		deps.Store = store
		deps.Ready = httpapi.ReadyProbe{Store: store}
		users = store.Users()
	} else {
		logger.Warn("database.dsn is empty; data is kept in memory and lost on exit")
		deps.Store = vocab.NewInMemory()
		users = auth.NewMemoryUsers()
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret,
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return deps, cleanups, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	deps.Auth = auth.NewService(users, tokens,
		auth.WithMaxUsers(cfg.Auth.MaxUsers),
		auth.WithHasher(auth.NewBcryptHasher(cfg.Auth.BcryptCost)))

	loc, err := cfg.Review.Location()
	if err != nil {
		return deps, cleanups, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	deps.Scheduler = srs.NewScheduler(
		srs.WithGranularity(srs.Granularity(cfg.Review.DueGranularity)),
		srs.WithLocation(loc))

	tutor, closeCache, err := buildTutor(ctx, cfg, logger)
	if err != nil {
		return deps, cleanups, err
	}
	if closeCache != nil {
		closers = append(closers, closeCache)
	}
	deps.Tutor = tutor
	return deps, cleanups, nil
}

func buildTutor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ai.Tutor, func(), error) {
	if !cfg.AI.Enabled() {
		logger.Info("ai.api_key is empty; AI routes answer 503")
		return nil, nil, nil
	}
	llm, err := ai.NewClient(cfg.AI.APIURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	if err != nil {
		return nil, nil, oops.Code("AI_INIT_FAILED").Wrap(err)
	}
	opts := []ai.TutorOption{
		ai.WithModel(llm.Model()),
		ai.WithTask(ai.TaskCheck, ai.Settings(cfg.AI.Check)),
		ai.WithTask(ai.TaskDeconstruct, ai.Settings(cfg.AI.Deconstruct)),
		ai.WithTask(ai.TaskCoach, ai.Settings(cfg.AI.Coach)),
	}

	var closeCache func()
	if cfg.Redis.Addr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		cache, err := ai.NewRedisCache(pingCtx, ai.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, oops.Code("CACHE_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		closeCache = func() { _ = cache.Close() }
		opts = append(opts, ai.WithCache(cache, cfg.Redis.CacheTTL))
	}
	return ai.NewTutor(llm, opts...), closeCache, nil
}
