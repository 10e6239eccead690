package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "123456:bot-token")
	t.Setenv("MISTRAL_API_KEY", "mistral-key")
	t.Setenv("CREDENTIAL_ENCRYPTION_KEY", "very-secret")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	// Keep host-specific env from leaking into the defaults under test.
	t.Setenv("APP_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("PENDING_AUTH_TTL", "")
	t.Setenv("CONFIG_FILE_PATH", "")
	t.Setenv("REDIS_URL", "")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123456:bot-token", cfg.TelegramToken)
	assert.Equal(t, "mistral-large-latest", cfg.MistralModel)
	assert.Equal(t, "pixtral-large-latest", cfg.VisionModel)
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, "America/Santiago", cfg.Timezone)
	assert.Equal(t, 10*time.Minute, cfg.PendingTTL)
	assert.Equal(t, defaultScopes, cfg.Scopes)
	assert.False(t, cfg.WebhookMode())
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, key := range []string{"TELEGRAM_TOKEN", "MISTRAL_API_KEY", "CREDENTIAL_ENCRYPTION_KEY"} {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_WebhookMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_URL", "https://bot.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.WebhookMode())
	assert.Equal(t, "https://bot.example.com/oauth2/callback", cfg.RedirectURL())
}

func TestLoad_GoogleClientDocument(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	path := filepath.Join(t.TempDir(), "client.json")
	doc := `{"web": {"client_id": "doc-id", "client_secret": "doc-secret", "redirect_uris": []}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("GOOGLE_CREDENTIALS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "doc-id", cfg.GoogleClientID)
	assert.Equal(t, "doc-secret", cfg.GoogleClientSecret)
}

func TestLoad_GoogleClientDocumentInstalledSection(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	path := filepath.Join(t.TempDir(), "client.json")
	doc := `{"installed": {"client_id": "desk-id", "client_secret": "desk-secret"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("GOOGLE_CREDENTIALS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "desk-id", cfg.GoogleClientID)
}

func TestLoad_GoogleClientDocumentMissing(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "missing.json"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "agendabot.yaml")
	overlay := "timezone: Europe/Madrid\npending_ttl: 5m\nmistral_model: mistral-small-latest\nscopes:\n  - https://www.googleapis.com/auth/calendar.events\n"
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o600))
	t.Setenv("CONFIG_FILE_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Europe/Madrid", cfg.Timezone)
	assert.Equal(t, 5*time.Minute, cfg.PendingTTL)
	assert.Equal(t, "mistral-small-latest", cfg.MistralModel)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar.events"}, cfg.Scopes)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)
}
