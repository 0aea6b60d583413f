package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_SECRET", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gpt-4o", cfg.OpenAIChatModel)
	assert.Equal(t, 60*time.Second, cfg.OpenAITimeout)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Len(t, cfg.SessionSecret, 64, "a random secret is generated outside production")
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, "www.ulrikadavidsson.se/longevity", cfg.ContactURL)
	assert.Equal(t, "070-12 34 56", cfg.ContactPhone)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_TIMEOUT", "5s")
	t.Setenv("SESSION_SECRET", "fixed")
	t.Setenv("COACH_NAME", "Maja")
	t.Setenv("ALLOWED_ORIGINS", "https://kurs.example,https://www.kurs.example")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")
	t.Setenv("CONTACT_PHONE", "08-123 45")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, 5*time.Second, cfg.OpenAITimeout)
	assert.Equal(t, "fixed", cfg.SessionSecret)
	assert.Equal(t, "Maja", cfg.CoachName)
	assert.Equal(t, []string{"https://kurs.example", "https://www.kurs.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.TrustedProxies)
	assert.Equal(t, "08-123 45", cfg.ContactPhone)
}

func TestLoadDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SNAPSHOT_DIR=/tmp/from-dotenv\n"), 0o600))
	t.Setenv("SNAPSHOT_DIR", "")
	_ = os.Unsetenv("SNAPSHOT_DIR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-dotenv", cfg.SnapshotDir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestProductionRequiresSessionSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingSessionSecret)
}

func TestSetupLogging(t *testing.T) {
	prev, prevCtx := log.Logger, zerolog.DefaultContextLogger
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.DefaultContextLogger = prevCtx
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	})

	var buf bytes.Buffer
	SetupLogging(&Config{AppEnv: "production", LogLevel: "warn"}, &buf)
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)
	assert.Same(t, &log.Logger, zerolog.DefaultContextLogger)
}
