package config

import (
	"errors"
	"os"
	"time"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration
	LogLevel    string
	LogFormat   string
}

// DeviceConfig configures the device-side sync agent.
type DeviceConfig struct {
	ServerURL    string
	AuthToken    string
	DeviceID     string
	DBPath       string
	SyncInterval time.Duration
	LogLevel     string
	LogFormat    string
}

func LoadConfig() (*Config, error) {
	expiryStr := getEnv("JWT_EXPIRY", "24h")
	expiry, err := time.ParseDuration(expiryStr)
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTExpiry:   expiry,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func LoadDeviceConfig() (*DeviceConfig, error) {
	intervalStr := getEnv("SYNC_INTERVAL", "30s")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, errors.New("invalid SYNC_INTERVAL format")
	}

	cfg := &DeviceConfig{
		ServerURL:    getEnv("SERVER_URL", "http://127.0.0.1:8080"),
		AuthToken:    os.Getenv("AUTH_TOKEN"),
		DeviceID:     os.Getenv("DEVICE_ID"),
		DBPath:       getEnv("DEVICE_DB_PATH", "walletsync.db"),
		SyncInterval: interval,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("DEVICE_ID is required")
	}
	if cfg.AuthToken == "" {
		return nil, errors.New("AUTH_TOKEN is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
