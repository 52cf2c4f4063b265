package app

import (
	"testing"
	"time"

	"product_sheet/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"SPREADSHEET_ID", "SHEET_NAME", "GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_CREDENTIALS_FILE", "HTTP_ADDR", "SHUTDOWN_TIMEOUT", "NTFY_ENABLED", "NTFY_BATCH"} {
		t.Setenv(key, "")
	}
	t.Setenv("SPREADSHEET_ID", "sheet-123")

	cfg, err := LoadConfig(true)
	require.NoError(t, err)
	assert.Equal(t, "sheet-123", cfg.SpreadsheetID)
	assert.Equal(t, "page1", cfg.SheetName)
	assert.Equal(t, "credentials.json", cfg.CredentialsFile)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.NtfyEnabled)
	assert.True(t, cfg.NtfyBatch)
}

func TestLoadConfigRequiresSpreadsheetID(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")

	_, err := LoadConfig(true)
	require.Error(t, err)

	_, err = LoadConfig(false)
	require.NoError(t, err)
}

func TestLoadConfigRejectsBadShutdownTimeout(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "sheet-123")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	_, err := LoadConfig(true)
	require.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "sheet-123")
	t.Setenv("SHEET_NAME", "Inventory")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("SHUTDOWN_TIMEOUT", "3")
	t.Setenv("NTFY_ENABLED", "true")
	t.Setenv("NTFY_BATCH", "false")
	t.Setenv("NTFY_TOPIC", "shop")

	cfg, err := LoadConfig(true)
	require.NoError(t, err)
	assert.Equal(t, "Inventory", cfg.SheetName)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.NtfyEnabled)
	assert.False(t, cfg.NtfyBatch)
	assert.Equal(t, "shop", cfg.NtfyTopic)
}

func TestNewInventoryWithoutNotifier(t *testing.T) {
	cfg := Config{NtfyEnabled: false, NtfyURL: "http://127.0.0.1:1", NtfyTopic: "t"}
	inv := NewInventory(sheets.NewMemory("page1"), InitializeNotificationClient(cfg))
	require.NotNil(t, inv)

	assert.NotNil(t, NewInventory(sheets.NewMemory("page1"), nil))
}
