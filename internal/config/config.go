// Package config centralises configuration parsing for the cycletrack backend.
package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for both the API server and the
// daily refresh daemon.
type Config struct {
	HTTPAddress     string
	PostgresURL     string
	CollectorBin    string
	AllowedOrigins  []string
	RefreshInterval time.Duration
}

// Load reads a .env file when present, then environment variables. The two
// external-service settings have no defaults; the process fails fast
// without them.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddress:     getEnv("HTTP_ADDRESS", ":8080"),
		PostgresURL:     must("DATABASE_URL"),
		CollectorBin:    must("COLLECTOR_BIN"),
		RefreshInterval: getDurationEnv("REFRESH_INTERVAL", 24*time.Hour),
	}
	cfg.AllowedOrigins = splitAndTrim(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"))
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func must(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("missing env %s", key)
	}
	return value
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
