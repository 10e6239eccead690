package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default scope grants full calendar access; event inserts need it.
var defaultScopes = []string{"https://www.googleapis.com/auth/calendar"}

// Config holds everything the bot needs at startup. Values come from the
// environment, with an optional YAML overlay for the non-secret knobs.
type Config struct {
	TelegramToken string
	MistralAPIKey string
	MistralModel  string
	VisionModel   string
	AudioModel    string

	GoogleClientID     string
	GoogleClientSecret string
	Scopes             []string

	// AppURL is the externally reachable base URL. When set the bot runs
	// in webhook mode and the OAuth redirect path is served; when empty
	// the bot polls and authorization cannot complete.
	AppURL string
	Port   int

	EncryptionKey string
	RedisURL      string
	Timezone      string
	PendingTTL    time.Duration
	LogLevel      string
}

// fileOverlay is the optional agendabot.yaml shape.
type fileOverlay struct {
	Timezone     string   `yaml:"timezone"`
	Scopes       []string `yaml:"scopes"`
	PendingTTL   string   `yaml:"pending_ttl"`
	MistralModel string   `yaml:"mistral_model"`
	VisionModel  string   `yaml:"vision_model"`
}

// googleClientDocument matches the client-secret JSON downloaded from the
// Google Cloud console. Either the "web" or "installed" section is set.
type googleClientDocument struct {
	Web       *googleClientSection `json:"web"`
	Installed *googleClientSection `json:"installed"`
}

type googleClientSection struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Load builds the configuration from the environment. LoadEnv should have
// run first so .env and managed secrets are already applied.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		MistralAPIKey: strings.TrimSpace(os.Getenv("MISTRAL_API_KEY")),
		MistralModel:  envOr("MISTRAL_MODEL", "mistral-large-latest"),
		VisionModel:   envOr("MISTRAL_VISION_MODEL", "pixtral-large-latest"),
		AudioModel:    envOr("MISTRAL_AUDIO_MODEL", "voxtral-mini-latest"),

		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		Scopes:             defaultScopes,

		AppURL: strings.TrimRight(strings.TrimSpace(os.Getenv("APP_URL")), "/"),
		Port:   envInt("PORT", 8443),

		EncryptionKey: os.Getenv("CREDENTIAL_ENCRYPTION_KEY"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Timezone:      envOr("TIMEZONE", "America/Santiago"),
		PendingTTL:    envDuration("PENDING_AUTH_TTL", 10*time.Minute),
		LogLevel:      envOr("LOG_LEVEL", "info"),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.MistralAPIKey == "" {
		return nil, fmt.Errorf("MISTRAL_API_KEY is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is required")
	}

	// Client id/secret may come from a downloaded client-secret document
	// instead of discrete env vars.
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		path := envOr("GOOGLE_CREDENTIALS_FILE", "credentials-google.json")
		if err := cfg.loadGoogleClientDocument(path); err != nil {
			return nil, fmt.Errorf("google client credentials: %w", err)
		}
	}

	if path := os.Getenv("CONFIG_FILE_PATH"); path != "" {
		if err := cfg.applyOverlay(path); err != nil {
			return nil, fmt.Errorf("config overlay %s: %w", path, err)
		}
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

// WebhookMode reports whether the bot serves HTTP for Telegram updates and
// the OAuth redirect. In polling mode the redirect path is not reachable
// and authorization cannot complete.
func (c *Config) WebhookMode() bool {
	return c.AppURL != ""
}

// RedirectURL is the fixed OAuth redirect target registered with the
// provider.
func (c *Config) RedirectURL() string {
	return c.AppURL + "/oauth2/callback"
}

func (c *Config) loadGoogleClientDocument(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("set GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET or provide %s: %w", path, err)
	}
	var doc googleClientDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	section := doc.Web
	if section == nil {
		section = doc.Installed
	}
	if section == nil || section.ClientID == "" || section.ClientSecret == "" {
		return fmt.Errorf("%s has no usable web or installed client section", path)
	}
	c.GoogleClientID = section.ClientID
	c.GoogleClientSecret = section.ClientSecret
	return nil
}

func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	if overlay.Timezone != "" {
		c.Timezone = overlay.Timezone
	}
	if len(overlay.Scopes) > 0 {
		c.Scopes = overlay.Scopes
	}
	if overlay.PendingTTL != "" {
		ttl, err := time.ParseDuration(overlay.PendingTTL)
		if err != nil {
			return fmt.Errorf("pending_ttl: %w", err)
		}
		c.PendingTTL = ttl
	}
	if overlay.MistralModel != "" {
		c.MistralModel = overlay.MistralModel
	}
	if overlay.VisionModel != "" {
		c.VisionModel = overlay.VisionModel
	}
	return nil
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
