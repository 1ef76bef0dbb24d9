// Package config loads process configuration from the environment and the
// complaint policy table from built-in defaults or a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the server and the admin CLI need at start-up.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DBDSN         string `envconfig:"DB_DSN" default:"host=localhost user=postgres password=postgres dbname=resolvex port=5432 sslmode=disable"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:""`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"60m"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	UploadDir   string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	MaxUploadMB int64  `envconfig:"MAX_UPLOAD_MB" default:"10"`

	EscalationEnabled  bool          `envconfig:"ESCALATION_ENABLED" default:"true"`
	EscalationInterval time.Duration `envconfig:"ESCALATION_INTERVAL" default:"1h"`
	PolicyFile         string        `envconfig:"POLICY_FILE" default:""`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`

	Locale string `envconfig:"LOCALE" default:"en"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	devJWTSecret = "dev-only-secret-change-me"
)

// Load reads an optional .env file, then the environment. A missing .env
// file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the current environment without touching .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devJWTSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	switch strings.ToLower(c.StorageDriver) {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required outside dev")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.EscalationEnabled && c.EscalationInterval <= 0 {
		return errors.New("ESCALATION_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

// MaxUploadBytes is the evidence size limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }
