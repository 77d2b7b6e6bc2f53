package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	ImageDir    string
	LogLevel    string
	LogFormat   string

	// RoomIdleTimeout controls how long an idle room actor stays resident.
	RoomIdleTimeout time.Duration
	// MaxSessionsPerRoom caps concurrent WebSocket sessions per room.
	MaxSessionsPerRoom int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		ImageDir:    getEnv("IMAGE_DIR", "data/images"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	idleSeconds, err := getEnvInt("ROOM_IDLE_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	if idleSeconds <= 0 {
		return nil, fmt.Errorf("ROOM_IDLE_TIMEOUT_SECONDS must be positive")
	}
	cfg.RoomIdleTimeout = time.Duration(idleSeconds) * time.Second

	maxSessions, err := getEnvInt("MAX_SESSIONS_PER_ROOM", 500)
	if err != nil {
		return nil, err
	}
	if maxSessions < 0 {
		return nil, fmt.Errorf("MAX_SESSIONS_PER_ROOM must not be negative")
	}
	cfg.MaxSessionsPerRoom = maxSessions

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
