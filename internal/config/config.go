// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken        string
	ListenAddr         string
	DBPath             string
	LookbackDays       int
	RefreshInterval    time.Duration
	RefreshConcurrency int
	DispatchInterval   time.Duration
	Timezone           string
	SMTP               SMTPConfig
	LLM                LLMConfig
	LogLevel           string
	LogFormat          string
}

// SMTPConfig holds outgoing mail settings. An empty Host means mail is
// logged instead of sent.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// LLMConfig points at an Ollama server used for translations and activity
// summaries. An empty URL disables both.
type LLMConfig struct {
	URL      string
	Model    string
	Language string
	Timeout  time.Duration
}

// HasGitHubToken reports whether a token was provided through the environment.
// The composition root falls back to the OS keyring when it was not.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// HasSMTP reports whether outgoing mail is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTP.Host != ""
}

// HasLLM reports whether a language model server is configured.
func (c *Config) HasLLM() bool {
	return c.LLM.URL != ""
}

// Translates reports whether fetched text is translated. Translation needs a
// language model and a target language.
func (c *Config) Translates() bool {
	return c.HasLLM() && c.LLM.Language != ""
}

// DefaultListenAddr is used when REPODIGEST_LISTEN_ADDR is unset.
const DefaultListenAddr = "127.0.0.1:8080"

// LoadListenAddr resolves only the server listen address, reading .env the
// same way Load does. The rest of the configuration is not validated.
func LoadListenAddr() (string, error) {
	if err := loadDotEnv(); err != nil {
		return "", err
	}
	return getEnv("REPODIGEST_LISTEN_ADDR", DefaultListenAddr), nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated
// Config. A .env file in the working directory is loaded first when present;
// variables already set in the environment win over it.
//
// Optional variables with defaults: REPODIGEST_LISTEN_ADDR (127.0.0.1:8080),
// REPODIGEST_DB_PATH (repodigest.db), REPODIGEST_LOOKBACK_DAYS (1),
// REPODIGEST_REFRESH_INTERVAL (5m), REPODIGEST_REFRESH_CONCURRENCY (4),
// REPODIGEST_DISPATCH_INTERVAL (30s), REPODIGEST_TIMEZONE (UTC),
// REPODIGEST_SMTP_PORT (587), REPODIGEST_LLM_MODEL (llama3.2),
// REPODIGEST_LLM_TIMEOUT (60s), REPODIGEST_LOG_LEVEL (info),
// REPODIGEST_LOG_FORMAT (text).
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		GitHubToken: os.Getenv("REPODIGEST_GITHUB_TOKEN"),
		ListenAddr:  getEnv("REPODIGEST_LISTEN_ADDR", DefaultListenAddr),
		DBPath:      getEnv("REPODIGEST_DB_PATH", "repodigest.db"),
		Timezone:    getEnv("REPODIGEST_TIMEZONE", "UTC"),
		LogLevel:    getEnv("REPODIGEST_LOG_LEVEL", "info"),
		LogFormat:   getEnv("REPODIGEST_LOG_FORMAT", "text"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("REPODIGEST_SMTP_HOST"),
			Username: os.Getenv("REPODIGEST_SMTP_USERNAME"),
			Password: os.Getenv("REPODIGEST_SMTP_PASSWORD"),
			From:     os.Getenv("REPODIGEST_SMTP_FROM"),
		},
		LLM: LLMConfig{
			URL:      os.Getenv("REPODIGEST_LLM_URL"),
			Model:    getEnv("REPODIGEST_LLM_MODEL", "llama3.2"),
			Language: os.Getenv("REPODIGEST_LLM_LANGUAGE"),
		},
	}

	var err error
	if cfg.LookbackDays, err = getEnvInt("REPODIGEST_LOOKBACK_DAYS", 1); err != nil {
		return nil, err
	}
	if cfg.RefreshConcurrency, err = getEnvInt("REPODIGEST_REFRESH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.SMTP.Port, err = getEnvInt("REPODIGEST_SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getEnvDuration("REPODIGEST_REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DispatchInterval, err = getEnvDuration("REPODIGEST_DISPATCH_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLM.Timeout, err = getEnvDuration("REPODIGEST_LLM_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field rules that single variable parsing cannot.
func (c *Config) Validate() error {
	if !model.IsLookbackWindow(c.LookbackDays) {
		return fmt.Errorf("REPODIGEST_LOOKBACK_DAYS must be one of %v, got %d", model.LookbackWindows, c.LookbackDays)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("REPODIGEST_REFRESH_INTERVAL must not be negative, got %s", c.RefreshInterval)
	}
	if c.DispatchInterval <= 0 {
		return fmt.Errorf("REPODIGEST_DISPATCH_INTERVAL must be positive, got %s", c.DispatchInterval)
	}
	if c.RefreshConcurrency < 1 {
		return fmt.Errorf("REPODIGEST_REFRESH_CONCURRENCY must be at least 1, got %d", c.RefreshConcurrency)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("REPODIGEST_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return errors.New("REPODIGEST_SMTP_FROM or REPODIGEST_SMTP_USERNAME is required when REPODIGEST_SMTP_HOST is set")
	}
	if c.HasLLM() {
		u, err := url.Parse(c.LLM.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("REPODIGEST_LLM_URL must be an http or https URL, got %q", c.LLM.URL)
		}
		if c.LLM.Model == "" {
			return errors.New("REPODIGEST_LLM_MODEL is required when REPODIGEST_LLM_URL is set")
		}
		if c.LLM.Timeout <= 0 {
			return fmt.Errorf("REPODIGEST_LLM_TIMEOUT must be positive, got %s", c.LLM.Timeout)
		}
	}
	return nil
}

// Location resolves the configured IANA time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("REPODIGEST_TIMEZONE has invalid zone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// NewLogger builds the process logger from the configured level and format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("REPODIGEST_LOG_LEVEL has invalid level %q: %w", s, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return d, nil
}
