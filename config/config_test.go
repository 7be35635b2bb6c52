package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 2, cfg.WhatsApp.ReconnectDelay)
	assert.Equal(t, 20, cfg.WhatsApp.SendTimeout)
	assert.True(t, cfg.Webhook.RequireAPIKey)
	assert.Contains(t, cfg.Messages.DefaultTemplate, "{name}")
	assert.Contains(t, cfg.Messages.OrderTemplate, "{order}")
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wanotify.yml")
	content := `
database:
  type: postgres
  name: notify
whatsapp:
  reconnect_delay: 5
  send_timeout: 10
messages:
  not_registered: "not registered"
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	t.Setenv("WANOTIFY_WEB_PORT", "8080")
	t.Setenv("WANOTIFY_WEBHOOK_REQUIRE_API_KEY", "false")

	cfg, err := LoadConfig(file)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "notify", cfg.Database.Name)
	assert.Equal(t, 5, cfg.WhatsApp.ReconnectDelay)
	assert.Equal(t, "not registered", cfg.Messages.NotRegistered)
	// untouched sections keep their defaults
	assert.Equal(t, "اشتراكك منتهي", cfg.Messages.Inactive)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.False(t, cfg.Webhook.RequireAPIKey)
}

func TestLoadConfigRejectsUnknownDatabase(t *testing.T) {
	t.Setenv("WANOTIFY_DB_TYPE", "mysql")
	_, err := LoadConfig("")
	require.Error(t, err)
}
