// Package config loads service configuration from an optional YAML file,
// VOCAB_* environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const envPrefix = "VOCAB"

// Due-date comparison granularities.
const (
	GranularityDay     = "day"
	GranularityInstant = "instant"
)

// Not-found response modes.
const (
	NotFoundEmpty  = "empty"
	NotFoundStatus = "status"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Review   ReviewConfig   `mapstructure:"review"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	AI       AIConfig       `mapstructure:"ai"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	BasePath          string        `mapstructure:"base_path"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL settings. An empty DSN selects the in-memory store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// AuthConfig holds token and registration settings.
type AuthConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	MaxUsers   int           `mapstructure:"max_users"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// ReviewConfig controls due-item selection.
type ReviewConfig struct {
	DueGranularity string `mapstructure:"due_granularity"`
	Timezone       string `mapstructure:"timezone"`
}

// Location resolves Timezone, defaulting to UTC.
func (r ReviewConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(r.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// HTTPConfig holds response-shape switches.
type HTTPConfig struct {
	NotFoundMode string `mapstructure:"not_found_mode"`
}

// AIConfig configures the chat-completion collaborator.
type AIConfig struct {
	APIURL      string         `mapstructure:"api_url"`
	APIKey      string         `mapstructure:"api_key"`
	Model       string         `mapstructure:"model"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	Check       AITaskSettings `mapstructure:"check"`
	Deconstruct AITaskSettings `mapstructure:"deconstruct"`
	Coach       AITaskSettings `mapstructure:"coach"`
}

// Enabled reports whether an API key was configured.
func (a AIConfig) Enabled() bool { return strings.TrimSpace(a.APIKey) != "" }

// AITaskSettings bounds a single completion.
type AITaskSettings struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RedisConfig configures the optional completion cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// LogConfig selects level and encoder.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"dsn":       "database.dsn",
	"migrate":   "database.auto_migrate",
	"log-level": "log.level",
}

// Load reads configuration. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.BasePath = normalizeBasePath(cfg.Server.BasePath)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.read_header_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "one4all-vocab")
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.max_users", 10)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("review.due_granularity", GranularityDay)
	v.SetDefault("review.timezone", "UTC")

	v.SetDefault("http.not_found_mode", NotFoundEmpty)

	v.SetDefault("ai.api_url", "https://api.groq.com/openai/v1/chat/completions")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "llama-3.3-70b-versatile")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("ai.check.temperature", 0.5)
	v.SetDefault("ai.check.max_tokens", 50)
	v.SetDefault("ai.deconstruct.temperature", 0.3)
	v.SetDefault("ai.deconstruct.max_tokens", 400)
	v.SetDefault("ai.coach.temperature", 0.7)
	v.SetDefault("ai.coach.max_tokens", 300)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "24h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Validate checks required values and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("auth.secret is required (set VOCAB_AUTH_SECRET)"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.MaxUsers <= 0 {
		errs = append(errs, errors.New("auth.max_users must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be within [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	switch c.Review.DueGranularity {
	case GranularityDay, GranularityInstant:
	default:
		errs = append(errs, fmt.Errorf("review.due_granularity %q must be %q or %q", c.Review.DueGranularity, GranularityDay, GranularityInstant))
	}
	if _, err := c.Review.Location(); err != nil {
		errs = append(errs, fmt.Errorf("review.timezone: %w", err))
	}
	switch c.HTTP.NotFoundMode {
	case NotFoundEmpty, NotFoundStatus:
	default:
		errs = append(errs, fmt.Errorf("http.not_found_mode %q must be %q or %q", c.HTTP.NotFoundMode, NotFoundEmpty, NotFoundStatus))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	return errors.Join(errs...)
}
