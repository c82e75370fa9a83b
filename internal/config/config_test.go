package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123"

func TestDefaults(t *testing.T) {
	cfg, err := LoadArgs([]string{"--auth.secret", secret, "--env-file", ""})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 20, cfg.Limits.FreeMonthlyGenerations)
	assert.Equal(t, time.Hour, cfg.Sources.SyncInterval)
	assert.Equal(t, 7, cfg.Jobs.DigestHour)
	assert.Empty(t, cfg.Auth.Admins)
	assert.Equal(t, "decks", cfg.Sources.LocalRoot)
}

func TestAdmins(t *testing.T) {
	cfg, err := LoadArgs([]string{"--auth.secret", secret, "--env-file", "",
		"--auth.admins", "ops@example.com,lead@example.com", "--sources.local_root", "/srv/decks"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, cfg.Auth.Admins)
	assert.Equal(t, "/srv/decks", cfg.Sources.LocalRoot)
}

func TestLayering(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "satprep.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
addr: ":9000"
database:
  driver: postgres
  dsn: postgres://localhost/satprep
limits:
  window: 30s
ai:
  model: from-file
`), 0o644))
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("SATPREP_LIMITS__FREE_MONTHLY_GENERATIONS=3\n"), 0o644))

	t.Setenv("SATPREP_AUTH__SECRET", secret)
	t.Setenv("SATPREP_AI__MODEL", "from-env")
	t.Setenv("SATPREP_LOG__LEVEL", "warn")

	// godotenv writes straight into the process environment.
	t.Cleanup(func() { os.Unsetenv("SATPREP_LIMITS__FREE_MONTHLY_GENERATIONS") })

	cfg, err := LoadArgs([]string{"--config", yamlPath, "--env-file", envPath, "--log.level", "debug"})
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr, "file over default")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Limits.Window)
	assert.Equal(t, "from-env", cfg.AI.Model, "env over file")
	assert.Equal(t, 3, cfg.Limits.FreeMonthlyGenerations, ".env file")
	assert.Equal(t, "debug", cfg.Log.Level, "explicit flag over env")
	assert.Equal(t, secret, cfg.Auth.Secret)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing secret", nil},
		{"short secret", []string{"--auth.secret", "short"}},
		{"bad driver", []string{"--auth.secret", secret, "--database.driver", "oracle"}},
		{"bad level", []string{"--auth.secret", secret, "--log.level", "loud"}},
		{"bad digest hour", []string{"--auth.secret", secret, "--jobs.digest_hour", "24"}},
		{"bad base url", []string{"--auth.secret", secret, "--ai.base_url", "not a url"}},
		{"bad admin email", []string{"--auth.secret", secret, "--auth.admins", "root"}},
		{"empty local root", []string{"--auth.secret", secret, "--sources.local_root", ""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadArgs(append(tc.args, "--env-file", ""))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := LoadArgs([]string{"--auth.secret", secret, "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)

	assert.Equal(t, zerolog.InfoLevel, LogConfig{Level: "nonsense"}.ZerologLevel())
	assert.Equal(t, zerolog.DebugLevel, LogConfig{Level: "debug"}.ZerologLevel())
}
