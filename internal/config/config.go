package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Store selection, fixed priority: Mongo, then relational, then file.
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
	DBDriver      string
	DataPath      string

	// Reset flow
	ResetTokenExpiry   time.Duration
	DebugPasswordReset bool

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Observability (optional)
	SentryDSN string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "ONPI"),
		AppEnv:  envString("APP_ENV", "development"),
		Port:    envString("PORT", "3000"),

		// Store selection
		MongoURI:      envString("MONGO_URI", ""),
		MongoDatabase: envString("MONGO_DB", "onpi"),
		DatabaseURL:   envString("DATABASE_URL", ""),
		DBDriver:      envString("DB_DRIVER", "pgx"),
		DataPath:      envString("DATA_PATH", "data/users.json"),

		// Reset flow
		ResetTokenExpiry:   envDuration("RESET_TOKEN_EXPIRY", 1*time.Hour),
		DebugPasswordReset: envBool("DEBUG_PASSWORD_RESET", false),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
	}
	cfg.AppURL = envString("APP_URL", "http://localhost:"+cfg.Port)

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures required services are configured for production
// deployments. Development lets email fall back to log mode.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DebugResetTokens reports whether forgot-password responses may echo the
// issued token. True outside production, or when explicitly flagged.
func (c *Config) DebugResetTokens() bool {
	return !c.IsProduction() || c.DebugPasswordReset
}
