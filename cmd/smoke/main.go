package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"one4allvocab.org/internal/client"
	"one4allvocab.org/internal/obs"
	"one4allvocab.org/internal/srs"
	"one4allvocab.org/internal/vocab"
)

type options struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	keep     bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "vocab-smoke",
		Short: "End-to-end smoke run against a live API",
		Long: `Signs up (or reuses) an account, logs in, creates words, runs a
review session grading every card, checks the rescheduled dates and
deletes what it created.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return run(ctx, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "http://localhost:8080/api", "API base URL including the base path")
	f.StringVar(&opts.username, "username", "", "account to use; a fresh smoke-* account when empty")
	f.StringVar(&opts.password, "password", "smoke-password", "account password")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	f.BoolVar(&opts.keep, "keep", false, "keep the created words")
	return cmd
}

func run(ctx context.Context, opts options) error {
	log := obs.Logger()
	if opts.username == "" {
		opts.username = "smoke-" + uuid.NewString()[:8]
	}
	c := client.New(opts.baseURL)

	err := c.Signup(ctx, opts.username, opts.password)
	var apiErr *client.APIError
	switch {
	case err == nil:
		log.Info("signed up", zap.String("username", opts.username))
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
		log.Info("reusing existing account", zap.String("username", opts.username))
	default:
		return oops.Code("SMOKE_SIGNUP_FAILED").Wrap(err)
	}
	if err := c.Login(ctx, opts.username, opts.password); err != nil {
		return oops.Code("SMOKE_LOGIN_FAILED").Wrap(err)
	}

	var created []int64
	for _, in := range []vocab.WordInput{
		{Word: "ubiquitous", Meaning: "found everywhere", Tags: []string{"smoke"}},
		{Word: "meticulous", Meaning: "very careful", Difficulty: vocab.DifficultyHard},
	} {
		id, err := c.CreateWord(ctx, in)
		if err != nil {
			return oops.Code("SMOKE_CREATE_FAILED").With("word", in.Word).Wrap(err)
		}
		created = append(created, id)
	}
	if !opts.keep {
		defer func() {
			for _, id := range created {
				if err := c.DeleteWord(context.WithoutCancel(ctx), id); err != nil {
					obs.LogError(log, "cleanup failed", err)
				}
			}
		}()
	}

	queue, err := c.Practice(ctx, created[0])
	if err != nil {
		return oops.Code("SMOKE_REVIEW_FAILED").Wrap(err)
	}
	more, err := c.Practice(ctx, created[1])
	if err != nil {
		return oops.Code("SMOKE_REVIEW_FAILED").Wrap(err)
	}
	queue = append(queue, more...)

	start := time.Now()
	session := srs.NewSession(c, c)
	if err := session.Start(queue); err != nil {
		return oops.Code("SMOKE_SESSION_FAILED").Wrap(err)
	}
	for session.State().Phase != srs.Finished {
		if err := session.Flip(); err != nil {
			return oops.Code("SMOKE_SESSION_FAILED").Wrap(err)
		}
		if err := session.Grade(ctx, srs.GradeHard); err != nil {
			return oops.Code("SMOKE_SESSION_FAILED").Wrap(err)
		}
	}

	for _, w := range c.Words() {
		if !slices.Contains(created, w.ID) {
			continue
		}
		if w.NextReviewDate == nil {
			return oops.Code("SMOKE_SCHEDULE_WRONG").With("word_id", w.ID).Errorf("next_review_date missing")
		}
		// Hard is one day out; allow for clock skew between smoke host and server.
		delta := w.NextReviewDate.Sub(start.Add(24 * time.Hour))
		if delta < -time.Minute || delta > time.Minute {
			return oops.Code("SMOKE_SCHEDULE_WRONG").With("word_id", w.ID).
				Errorf("next review %s is not one day after %s", w.NextReviewDate, start)
		}
	}

	log.Info("smoke test passed", zap.String("username", opts.username), zap.Int64s("words", created))
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
