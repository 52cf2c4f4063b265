package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"product_sheet/internal/config"
	"product_sheet/internal/inventory"
	"product_sheet/internal/notifications"
	"product_sheet/internal/sheets"

	"github.com/rs/zerolog/log"
)

// Config is the process configuration, read once at startup.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	NtfyEnabled  bool
	NtfyURL      string
	NtfyTopic    string
	NtfyPriority string
	NtfyBatch    bool
}

// LoadConfig reads configuration from the environment. SPREADSHEET_ID is only
// required when requireSheet is set; an in-memory run does not need it.
func LoadConfig(requireSheet bool) (Config, error) {
	cfg := Config{
		SpreadsheetID:   os.Getenv("SPREADSHEET_ID"),
		SheetName:       GetEnvWithDefault("SHEET_NAME", "page1"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: GetEnvWithDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		HTTPAddr:        GetEnvWithDefault("HTTP_ADDR", ":8000"),
		NtfyEnabled:     GetEnvWithDefault("NTFY_ENABLED", "false") == "true",
		NtfyURL:         GetEnvWithDefault("NTFY_URL", "https://ntfy.sh"),
		NtfyTopic:       GetEnvWithDefault("NTFY_TOPIC", "product-sheet"),
		NtfyPriority:    os.Getenv("NTFY_PRIORITY"),
		NtfyBatch:       GetEnvWithDefault("NTFY_BATCH", "true") == "true",
	}

	seconds, err := strconv.Atoi(GetEnvWithDefault("SHUTDOWN_TIMEOUT", "15"))
	if err != nil || seconds <= 0 {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be a positive number of seconds, got %q", os.Getenv("SHUTDOWN_TIMEOUT"))
	}
	cfg.ShutdownTimeout = time.Duration(seconds) * time.Second

	if requireSheet && cfg.SpreadsheetID == "" {
		return Config{}, fmt.Errorf("SPREADSHEET_ID environment variable is required")
	}
	return cfg, nil
}

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// OpenWorksheet authenticates against Google Sheets and resolves the configured worksheet.
func OpenWorksheet(ctx context.Context, cfg Config) (*sheets.Worksheet, error) {
	log.Debug().Str("spreadsheet_id", cfg.SpreadsheetID).Str("sheet", cfg.SheetName).Msg("Initializing sheets client")

	creds := sheets.Credentials{File: cfg.CredentialsFile}
	if cfg.CredentialsJSON != "" {
		creds = sheets.Credentials{JSON: []byte(cfg.CredentialsJSON)}
	}

	client, err := sheets.NewClient(ctx, creds, config.DefaultResilienceConfig)
	if err != nil {
		return nil, err
	}
	ws, err := client.Worksheet(ctx, cfg.SpreadsheetID, cfg.SheetName)
	if err != nil {
		return nil, err
	}

	log.Debug().Msg("Sheets client initialized successfully")
	return ws, nil
}

// InitializeNotificationClient creates the ntfy client described by cfg.
func InitializeNotificationClient(cfg Config) *notifications.Client {
	log.Debug().
		Bool("enabled", cfg.NtfyEnabled).
		Str("base_url", cfg.NtfyURL).
		Str("topic", cfg.NtfyTopic).
		Msg("Initializing notification client")

	client := notifications.NewClient(notifications.Options{
		BaseURL:   cfg.NtfyURL,
		Topic:     cfg.NtfyTopic,
		Enabled:   cfg.NtfyEnabled,
		BatchMode: cfg.NtfyBatch,
		Priority:  cfg.NtfyPriority,
		Retry:     config.DefaultResilienceConfig.Notification,
	})

	if cfg.NtfyEnabled {
		log.Info().Str("topic", cfg.NtfyTopic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}

// NewInventory builds the orchestrator over sheet, wiring notifications when enabled.
func NewInventory(sheet inventory.Sheet, notifier *notifications.Client) *inventory.Orchestrator {
	if notifier == nil {
		return inventory.NewOrchestrator(sheet, nil)
	}
	return inventory.NewOrchestrator(sheet, notifier)
}
