// Package config loads the service configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Jakeminator123/kurs/internal/utility"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrMissingSessionSecret = errors.New("SESSION_SECRET must be set in production")

// Config holds all application configuration.
type Config struct {
	Port   int    `mapstructure:"port"`
	AppEnv string `mapstructure:"app_env"`

	SessionSecret    string `mapstructure:"session_secret"`
	SessionCacheSize int    `mapstructure:"session_cache_size"`

	OpenAIAPIKey     string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL    string        `mapstructure:"openai_base_url"`
	OpenAIChatModel  string        `mapstructure:"openai_chat_model"`
	OpenAIImageModel string        `mapstructure:"openai_image_model"`
	OpenAIMaxTokens  int           `mapstructure:"openai_max_tokens"`
	OpenAITimeout    time.Duration `mapstructure:"openai_timeout"`

	OutputDir   string `mapstructure:"output_dir"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
	DatabaseURL string `mapstructure:"database_url"`

	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	SMTPUser string `mapstructure:"smtp_user"`
	SMTPPass string `mapstructure:"smtp_pass"`
	SMTPFrom string `mapstructure:"smtp_from"`

	// AllowedOrigins may call the API with credentials and open the socket.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// TrustedProxies are CIDRs whose X-Forwarded-For header is believed.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	CoachName    string `mapstructure:"coach_name"`
	ContactURL   string `mapstructure:"contact_url"`
	ContactPhone string `mapstructure:"contact_phone"`
	CourseStart  string `mapstructure:"course_start"`
	LogLevel     string `mapstructure:"log_level"`
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("app_env", "development")
	v.SetDefault("session_secret", "")
	v.SetDefault("session_cache_size", 1024)

	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("openai_chat_model", "gpt-4o")
	v.SetDefault("openai_image_model", "dall-e-3")
	v.SetDefault("openai_max_tokens", 1000)
	v.SetDefault("openai_timeout", "60s")

	v.SetDefault("output_dir", "output")
	v.SetDefault("snapshot_dir", "snapshots")
	v.SetDefault("database_url", "")

	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_pass", "")
	v.SetDefault("smtp_from", "")

	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("trusted_proxies", []string{})

	v.SetDefault("coach_name", "Ulrika Davidsson")
	v.SetDefault("contact_url", "www.ulrikadavidsson.se/longevity")
	v.SetDefault("contact_phone", "070-12 34 56")
	v.SetDefault("course_start", "")
	v.SetDefault("log_level", "info")
}

// Load reads envFile (if it exists) into the process environment and then
// builds the Config from environment variables over defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingSessionSecret
		}
		secret, err := utility.GenerateSecureToken(32)
		if err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.SessionSecret = secret
		log.Warn().Msg("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}
	if cfg.SessionCacheSize <= 0 {
		cfg.SessionCacheSize = 1024
	}
	return cfg, nil
}

// SetupLogging configures the global zerolog logger. Outside production it
// writes human readable console output.
func SetupLogging(cfg *Config, out io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsProduction() {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	zerolog.DefaultContextLogger = &log.Logger
}
