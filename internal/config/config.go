// Package config provides configuration for the ingress service and the copilot CLI.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the ingress and CLI configuration.
type Config struct {
	// Server settings
	HTTPPort int // Port serving /chat, /reset, /ws and /health

	// Backend settings
	BackendURL     string
	BackendTimeout time.Duration // 0 keeps the transport default
	MaxUploadBytes int64 // Whole /chat body
	MaxFileBytes   int64 // Attachment alone, enforced by the upload policy

	// Exchange log
	DatabaseURL string

	// Upload policy; empty uses the built-in rego module
	PolicyFile string

	// Auth settings
	APIKey string // Static API key for hello.api_key validation on /ws

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// CLI settings
	CopilotURL string // Base URL of the ingress, as seen by the CLI

	// Logging
	LogLevel  string
	LogPretty bool
}

// envFiles are loaded in order; earlier files win because godotenv never
// overrides a variable that is already set.
var envFiles = []string{".env.local", ".env"}

// Load loads configuration from .env files and environment variables.
func Load() *Config {
	for _, f := range envFiles {
		// Missing files are fine; the process environment still applies.
		_ = godotenv.Load(f)
	}

	return &Config{
		HTTPPort:       getEnvInt("INGRESS_PORT", 3000),
		BackendURL:     strings.TrimSuffix(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
		BackendTimeout: time.Duration(getEnvInt("BACKEND_TIMEOUT_MS", 0)) * time.Millisecond,
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		MaxFileBytes:   int64(getEnvInt("MAX_FILE_BYTES", 5<<20)),
		DatabaseURL:    getEnv("DATABASE_URL", "file:ingress.db?cache=shared&mode=rwc"),
		PolicyFile:     getEnv("UPLOAD_POLICY_FILE", ""),
		APIKey:         getEnv("INGRESS_API_KEY", ""),
		PingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		CopilotURL:     getEnv("COPILOT_URL", "http://localhost:3000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvBool("LOG_PRETTY", true),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
