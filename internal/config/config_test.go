package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.MaxUsers)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, GranularityDay, cfg.Review.DueGranularity)
	assert.Equal(t, NotFoundEmpty, cfg.HTTP.NotFoundMode)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.AI.Model)
	assert.Equal(t, 50, cfg.AI.Check.MaxTokens)
	assert.InDelta(t, 0.5, cfg.AI.Check.Temperature, 1e-9)
	assert.False(t, cfg.AI.Enabled())
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("VOCAB_AUTH_SECRET", "s3cret")
	t.Setenv("VOCAB_AUTH_MAX_USERS", "3")
	t.Setenv("VOCAB_REVIEW_DUE_GRANULARITY", "instant")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, 3, cfg.Auth.MaxUsers)
	assert.Equal(t, GranularityInstant, cfg.Review.DueGranularity)
}

func TestFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	body := []byte("server:\n  addr: \":9000\"\n  base_path: v1/\nauth:\n  secret: from-file\nhttp:\n  not_found_mode: status\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("addr", "", "")
	require.NoError(t, fs.Parse([]string{"--addr", ":9100"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9100", cfg.Server.Addr, "flag wins over file")
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, "from-file", cfg.Auth.Secret)
	assert.Equal(t, NotFoundStatus, cfg.HTTP.NotFoundMode)
}

func TestValidateRejectsUnknownEnums(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Auth.Secret = "x"
	cfg.Review.DueGranularity = "week"
	cfg.HTTP.NotFoundMode = "teapot"
	cfg.Review.Timezone = "Mars/Olympus"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "due_granularity")
	assert.Contains(t, err.Error(), "not_found_mode")
	assert.Contains(t, err.Error(), "timezone")
}
