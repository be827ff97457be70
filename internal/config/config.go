package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Storage configuration
	StoreBackend     string // "sqlite", "azure" or "memory"
	SQLitePath       string
	StorageAccount   string
	StorageContainer string

	// Schedule configuration
	DigestSchedule     string // "daily" or "weekly"
	TimeZone           string
	ReminderAfterHours int

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	ExpoPushURL       string
	ExpoAccessToken   string

	// Chat assistant
	ChatAPIKey       string
	ChatBaseURL      string
	ChatModel        string
	ChatTemperature  float64
	ChatMaxTokens    int
	ChatHistoryLimit int

	// Risk indicator phrases, matched in this order
	RiskKeywords []string
}

// DefaultRiskKeywords is the phrase list used when RISK_KEYWORDS is unset.
var DefaultRiskKeywords = []string{
	"suicidio",
	"suicidarme",
	"matarme",
	"quitarme la vida",
	"no quiero vivir",
	"acabar con mi vida",
	"terminar con todo",
	"ya no aguanto más",
	"mejor morir",
	"desaparecer para siempre",
	"no vale la pena seguir",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		StoreBackend:     getEnv("STORE_BACKEND", "sqlite"),
		SQLitePath:       getEnv("SQLITE_PATH", "data/riskwatch.db"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "riskwatch"),

		DigestSchedule:     getEnv("DIGEST_SCHEDULE", "daily"),
		TimeZone:           getEnv("TIMEZONE", "UTC"),
		ReminderAfterHours: getIntEnv("REMINDER_AFTER_HOURS", 24),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		ExpoPushURL:       getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		ExpoAccessToken:   getEnv("EXPO_ACCESS_TOKEN", ""),

		ChatAPIKey:       getEnv("CHAT_API_KEY", ""),
		ChatBaseURL:      getEnv("CHAT_BASE_URL", "https://api.groq.com/openai/v1"),
		ChatModel:        getEnv("CHAT_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
		ChatTemperature:  getFloatEnv("CHAT_TEMPERATURE", 0.7),
		ChatMaxTokens:    getIntEnv("CHAT_MAX_TOKENS", 500),
		ChatHistoryLimit: getIntEnv("CHAT_HISTORY_LIMIT", 9),

		RiskKeywords: getSliceEnv("RISK_KEYWORDS", DefaultRiskKeywords),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DigestSchedule != "daily" && c.DigestSchedule != "weekly" {
		return fmt.Errorf("DIGEST_SCHEDULE must be 'daily' or 'weekly'")
	}

	switch c.StoreBackend {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required for the azure backend")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be 'sqlite', 'azure' or 'memory'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.ChatHistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be positive")
	}

	if len(c.RiskKeywords) == 0 {
		return fmt.Errorf("RISK_KEYWORDS must list at least one phrase")
	}

	return nil
}

// SMTPEnabled reports whether outgoing e-mail can be sent.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUsername != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
