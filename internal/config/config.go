package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	StoreSQL   = "sql"
	StoreLocal = "local"

	AuthIdentity     = "identity"
	AuthSharedSecret = "shared-secret"
)

type Config struct {
	Port         string
	ContentStore string
	DataDir      string
	SQLitePath   string
	DatabaseURL  string
	SeedDir      string

	AdminAuth         string
	AdminPassword     string
	JWTSecret         string
	SessionTTL        time.Duration
	AllowRegistration bool

	DefaultAuthor      string
	SiteTitle          string
	SiteDescription    string
	SiteBaseURL        string
	CorsAllowedOrigins []string

	ContactWebhookURL string

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	NotifyFrom string
	NotifyTo   string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, after loading .env if present.
func Load() (Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		ContentStore:       strings.ToLower(getEnv("CONTENT_STORE", StoreSQL)),
		DataDir:            dataDir,
		SQLitePath:         getEnv("SQLITE_DB_PATH", filepath.Join(dataDir, "racblog.db")),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SeedDir:            getEnv("SEED_DIR", ""),
		AdminAuth:          strings.ToLower(getEnv("ADMIN_AUTH", AuthIdentity)),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		DefaultAuthor:      getEnv("DEFAULT_AUTHOR", "RAC Immigration"),
		SiteTitle:          getEnv("SITE_TITLE", "RAC Immigration Blog"),
		SiteDescription:    getEnv("SITE_DESCRIPTION", "Immigration news and guides"),
		SiteBaseURL:        strings.TrimRight(getEnv("SITE_BASE_URL", "http://localhost:8080"), "/"),
		CorsAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ContactWebhookURL:  getEnv("CONTACT_WEBHOOK_URL", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPass:           getEnv("SMTP_PASS", ""),
		NotifyFrom:         getEnv("NOTIFY_FROM", ""),
		NotifyTo:           getEnv("NOTIFY_TO", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "24h")); err != nil {
		return cfg, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return cfg, fmt.Errorf("invalid SESSION_TTL: must be positive")
	}
	if cfg.AllowRegistration, err = strconv.ParseBool(getEnv("ALLOW_REGISTRATION", "false")); err != nil {
		return cfg, fmt.Errorf("invalid ALLOW_REGISTRATION: %w", err)
	}
	if cfg.SMTPPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587")); err != nil {
		return cfg, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	switch cfg.ContentStore {
	case StoreSQL, StoreLocal:
	default:
		return cfg, fmt.Errorf("invalid CONTENT_STORE %q: must be %s or %s", cfg.ContentStore, StoreSQL, StoreLocal)
	}

	switch cfg.AdminAuth {
	case AuthIdentity:
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = uuid.NewString() + uuid.NewString()
			log.Warn().Msg("JWT_SECRET not set; sessions will not survive a restart")
		}
	case AuthSharedSecret:
		if cfg.AdminPassword == "" {
			log.Warn().Msg("ADMIN_PASSWORD not set; admin login is disabled")
		}
	default:
		return cfg, fmt.Errorf("invalid ADMIN_AUTH %q: must be %s or %s", cfg.AdminAuth, AuthIdentity, AuthSharedSecret)
	}

	return cfg, nil
}

// SetupLogging configures the global zerolog logger.
func (c Config) SetupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
