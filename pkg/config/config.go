package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Application settings
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Sync     SyncConfig
	Platform PlatformConfig
	Storage  StorageConfig
}

// Server settings
type ServerConfig struct {
	Port string
}

// Sync pipeline settings
type SyncConfig struct {
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	ThumbnailBatchSize int
	ThumbnailPause     time.Duration
	UpsertBatchSize    int
	CategoryRulesPath  string
}

// Ad-platform API settings. The secondary account is optional; when unset
// the pipeline runs single-account.
type PlatformConfig struct {
	BaseURL               string
	APIVersion            string
	RequestTimeout        time.Duration
	RequestsPerSecond     float64
	PrimaryAccountRef     string
	PrimaryAccountToken   string
	SecondaryAccountRef   string
	SecondaryAccountToken string
}

// Storage settings
type StorageConfig struct {
	PostgresDSN string
}

// Logging settings
type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Sync: SyncConfig{
			MaxRetries:         getIntEnv("MAX_RETRIES", 5),
			RetryBaseDelay:     getDurationEnv("RETRY_BASE_DELAY", "2s"),
			RetryMaxDelay:      getDurationEnv("RETRY_MAX_DELAY", "60s"),
			ThumbnailBatchSize: getIntEnv("THUMBNAIL_BATCH_SIZE", 5),
			ThumbnailPause:     getDurationEnv("THUMBNAIL_BATCH_PAUSE", "10s"),
			UpsertBatchSize:    getIntEnv("UPSERT_BATCH_SIZE", 100),
			CategoryRulesPath:  getEnv("CATEGORY_RULES_PATH", ""),
		},
		Platform: PlatformConfig{
			BaseURL:               getEnv("PLATFORM_API_URL", "https://graph.example.com"),
			APIVersion:            getEnv("PLATFORM_API_VERSION", "v19.0"),
			RequestTimeout:        getDurationEnv("REQUEST_TIMEOUT", "30s"),
			RequestsPerSecond:     getFloatEnv("PLATFORM_RPS", 2),
			PrimaryAccountRef:     getEnv("PRIMARY_ACCOUNT_REF", ""),
			PrimaryAccountToken:   getEnv("PRIMARY_ACCOUNT_TOKEN", ""),
			SecondaryAccountRef:   getEnv("SECONDARY_ACCOUNT_REF", ""),
			SecondaryAccountToken: getEnv("SECONDARY_ACCOUNT_TOKEN", ""),
		},
		Storage: StorageConfig{
			PostgresDSN: getEnv("PG_DSN", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if config.Platform.PrimaryAccountRef == "" {
		return nil, fmt.Errorf("PRIMARY_ACCOUNT_REF is required")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
