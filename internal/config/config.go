// Package config loads settings from, in increasing priority: flag
// defaults, an optional YAML file, an optional .env file, SATPREP_
// environment variables and explicitly set flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables; "__" separates levels,
// so SATPREP_DATABASE__DSN sets database.dsn.
const EnvPrefix = "SATPREP_"

type Config struct {
	Addr     string         `koanf:"addr" validate:"required"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	AI       AIConfig       `koanf:"ai"`
	Limits   LimitsConfig   `koanf:"limits"`
	Sources  SourcesConfig  `koanf:"sources"`
	Jobs     JobsConfig     `koanf:"jobs"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type AuthConfig struct {
	Secret        string        `koanf:"secret" validate:"required,min=16"`
	TokenTTL      time.Duration `koanf:"token_ttl" validate:"min=1m"`
	SecureCookies bool          `koanf:"secure_cookies"`
	Admins        []string      `koanf:"admins" validate:"dive,email"` // may manage deck sources
}

type AIConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	APIKey    string        `koanf:"api_key"`
	Model     string        `koanf:"model" validate:"required"`
	Timeout   time.Duration `koanf:"timeout" validate:"min=1s"`
	MaxTokens int           `koanf:"max_tokens" validate:"min=1"`
}

type LimitsConfig struct {
	FreeMonthlyGenerations int           `koanf:"free_monthly_generations" validate:"min=0"`
	RequestsPerWindow      int           `koanf:"requests_per_window" validate:"min=1"`
	Window                 time.Duration `koanf:"window" validate:"min=1s"`
	LessonCacheTTL         time.Duration `koanf:"lesson_cache_ttl" validate:"min=0"`
}

type SourcesConfig struct {
	ReposDir     string        `koanf:"repos_dir" validate:"required"`
	LocalRoot    string        `koanf:"local_root" validate:"required"` // local sources added over HTTP must live here
	SyncInterval time.Duration `koanf:"sync_interval" validate:"min=0"` // 0 disables the job
}

type JobsConfig struct {
	DigestHour int `koanf:"digest_hour" validate:"min=-1,max=23"` // -1 disables the digest
}

// Flags returns a flag set carrying every config key with its default.
// Callers may add their own flags before parsing.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("satprep", pflag.ContinueOnError)
	f.String("config", "", "path to a YAML config file")
	f.String("env-file", ".env", "path to a .env file, ignored when missing")

	f.String("addr", ":8080", "HTTP listen address")
	f.String("log.level", "info", "debug, info, warn or error")
	f.String("log.format", "json", "json or console")
	f.String("database.driver", "sqlite", "sqlite or postgres")
	f.String("database.dsn", "satprep.db", "database file or connection string")
	f.String("auth.secret", "", "HMAC key for session tokens (at least 16 bytes)")
	f.Duration("auth.token_ttl", 30*24*time.Hour, "session lifetime")
	f.Bool("auth.secure_cookies", false, "mark cookies Secure (behind HTTPS)")
	f.StringSlice("auth.admins", nil, "emails of accounts allowed to manage deck sources")
	f.String("ai.base_url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("ai.api_key", "", "API key for the AI provider")
	f.String("ai.model", "gpt-4o-mini", "chat model")
	f.Duration("ai.timeout", 60*time.Second, "AI request timeout")
	f.Int("ai.max_tokens", 2000, "maximum tokens per AI response")
	f.Int("limits.free_monthly_generations", 20, "AI generations per month on the free plan")
	f.Int("limits.requests_per_window", 10, "rate-limited requests allowed per window")
	f.Duration("limits.window", time.Minute, "rate limit window")
	f.Duration("limits.lesson_cache_ttl", 24*time.Hour, "how long generated lessons are cached")
	f.String("sources.repos_dir", "repos", "where git deck sources are cloned")
	f.String("sources.local_root", "decks", "directory holding local deck sources added from the web")
	f.Duration("sources.sync_interval", time.Hour, "deck sync interval, 0 to disable")
	f.Int("jobs.digest_hour", 7, "UTC hour of the daily due digest, -1 to disable")
	return f
}

// Load reads configuration using a flag set from Flags that has already
// been parsed.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if path, _ := f.GetString("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ZerologLevel parses the configured level, defaulting to info.
func (c LogConfig) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger builds the root logger writing to w.
func (c LogConfig) Logger(w io.Writer) zerolog.Logger {
	if c.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(c.ZerologLevel()).With().Timestamp().Logger()
}

// LoadArgs is Flags, Parse and Load in one step.
func LoadArgs(args []string) (*Config, error) {
	f := Flags()
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	return Load(f)
}
