package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv     string
	Port        string
	JWTSecret   string
	TerminalID  string
	VaultSecret string
	Database    DatabaseConfig
	Remote      RemoteConfig
	Ledger      LedgerConfig
	Log         LogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver       string // sqlite or postgres
	Path         string // sqlite file
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	EmbeddedPath string
	Quiet        bool // suppress gorm SQL warnings
}

// RemoteConfig holds the cloud store endpoints
type RemoteConfig struct {
	URL         string
	FallbackURL string
	APISecret   string
}

// LedgerConfig holds fiscal ledger configuration
type LedgerConfig struct {
	KeyPath string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string
	JSON  bool
}

// Load loads configuration from environment variables for the API service
func Load() (*Config, error) {
	return load(true)
}

// LoadLocal loads configuration for offline tools that never issue tokens
func LoadLocal() (*Config, error) {
	return load(false)
}

func load(requireJWT bool) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if requireJWT && jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		NodeEnv:     getEnv("NODE_ENV", "development"),
		Port:        getEnv("PORT", "3210"),
		JWTSecret:   jwtSecret,
		TerminalID:  getEnv("TERMINAL_ID", "terminal-1"),
		VaultSecret: os.Getenv("VAULT_SECRET"),
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "sqlite"),
			Path:         getEnv("DB_PATH", "./data/pos.db"),
			Host:         getEnv("PG_HOST", "localhost"),
			Port:         getEnv("PG_PORT", "5432"),
			Username:     getEnv("PG_USERNAME", "postgres"),
			Password:     os.Getenv("PG_PASSWORD"),
			Database:     getEnv("PG_DATABASE", "eckpos"),
			EmbeddedPath: getEnv("PG_EMBEDDED_PATH", "./db_data"),
			Quiet:        getBoolEnv("DB_QUIET", false),
		},
		Remote: RemoteConfig{
			URL:         os.Getenv("REMOTE_URL"),
			FallbackURL: os.Getenv("REMOTE_FALLBACK_URL"),
			APISecret:   os.Getenv("REMOTE_API_SECRET"),
		},
		Ledger: LedgerConfig{
			KeyPath: getEnv("LEDGER_KEY_PATH", ".eck/fiscal_identity.json"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  getBoolEnv("LOG_JSON", false),
		},
	}

	if cfg.Database.Driver != "sqlite" && cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	return cfg, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
