package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Run modes for cmd/server
const (
	ModeServer   = "server"   // HTTP API only, jobs go to Redis
	ModeWorker   = "worker"   // asynq worker + recovery scheduler only
	ModeEmbedded = "embedded" // HTTP API and job execution in one process
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Env  string
	Port string
	Mode string

	DatabaseURL string
	RedisURL    string
	DevSeed     bool

	EncryptionKey string
	SessionSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	SlackClientID      string
	SlackClientSecret  string
	SlackCallbackURL   string

	GeminiAPIKey string
	GeminiModel  string
	AIStubMode   bool
	OutlinePath  string

	FrontendURL string
	CORSOrigins []string

	LogLevel  string
	LogFormat string

	WorkerConcurrency int
	WorkerQueueSize   int
	GenerationTimeout time.Duration
	RecoverySchedule  string
	RecoveryGrace     time.Duration
	StaleJobAfter     time.Duration
	ProgressStream    string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment values win.
func Load() *Config {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("Failed to load .env file", "error", err)
		}
	}

	cfg := &Config{
		Env:  getEnvWithDefault("ENV", "development"),
		Port: getEnvWithDefault("PORT", "8080"),
		Mode: strings.ToLower(getEnvWithDefault("MODE", ModeEmbedded)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		DevSeed:     getEnvBool("DEV_SEED", false),

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		SessionSecret: os.Getenv("SESSION_SECRET"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  getEnvWithDefault("GOOGLE_CALLBACK_URL", "http://localhost:8080/auth/google/callback"),
		SlackClientID:      os.Getenv("SLACK_CLIENT_ID"),
		SlackClientSecret:  os.Getenv("SLACK_CLIENT_SECRET"),
		SlackCallbackURL:   getEnvWithDefault("SLACK_CALLBACK_URL", "http://localhost:8080/auth/slack/callback"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnvWithDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		AIStubMode:   getEnvBool("AI_STUB_MODE", false),
		OutlinePath:  os.Getenv("OUTLINE_PATH"),

		FrontendURL: getEnvWithDefault("FRONTEND_URL", "http://localhost:3000"),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		WorkerQueueSize:   getEnvInt("WORKER_QUEUE_SIZE", 100),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 30*time.Minute),
		RecoverySchedule:  getEnvWithDefault("RECOVERY_SCHEDULE", "*/5 * * * *"),
		RecoveryGrace:     getEnvDuration("RECOVERY_GRACE", time.Minute),
		StaleJobAfter:     getEnvDuration("STALE_JOB_AFTER", 15*time.Minute),
		ProgressStream:    getEnvWithDefault("PROGRESS_STREAM", "generation:progress"),
	}
	cfg.CORSOrigins = parseOrigins(os.Getenv("CORS_ORIGINS"), cfg.FrontendURL)

	// Warn if using default session secret (insecure for production)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		slog.Warn("Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	if cfg.GeminiAPIKey == "" && !cfg.AIStubMode {
		slog.Warn("GEMINI_API_KEY not set, falling back to stub content generation")
		cfg.AIStubMode = true
	}

	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}

	return cfg
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func parseOrigins(raw, fallback string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{fallback}
	}
	return origins
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", v)
		return defaultValue
	}
	return i
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Invalid boolean in environment, using default", "key", key, "value", v)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", v)
		return defaultValue
	}
	return d
}
