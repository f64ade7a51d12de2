package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	JWTAccessExpiry    time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"24h"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string        `env:"GOOGLE_REDIRECT_URI" envDefault:"http://localhost:8080/api/auth/google/callback"`

	Logger   LoggerConfig
	Database DatabaseConfig
	Gmail    GmailConfig
	Sync     SyncConfig
}

type LoggerConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	DevMode bool   `env:"LOG_DEV_MODE" envDefault:"false"`
}

type DatabaseConfig struct {
	Host            string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port            string `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password        string `env:"POSTGRES_PASSWORD"`
	DBName          string `env:"POSTGRES_DB_NAME" envDefault:"mailmirror"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxConn         int    `env:"POSTGRES_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"POSTGRES_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"60"` // minutes
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
}

// GmailConfig guards the shared Gmail API quota.
type GmailConfig struct {
	RateLimit float64 `env:"GMAIL_RATE_LIMIT" envDefault:"10"`
	RateBurst int     `env:"GMAIL_RATE_BURST" envDefault:"20"`
}

type SyncConfig struct {
	OnStart  bool   `env:"SYNC_ON_START" envDefault:"true"`
	Schedule string `env:"SYNC_SCHEDULE"`

	InboxLimit int64 `env:"SYNC_INBOX_LIMIT" envDefault:"50"`
	SpamLimit  int64 `env:"SYNC_SPAM_LIMIT" envDefault:"20"`
	DraftLimit int64 `env:"SYNC_DRAFT_LIMIT" envDefault:"20"`
	SentLimit  int64 `env:"SYNC_SENT_LIMIT" envDefault:"100"`

	// LabelScope is "global" (one label row per name) or "user" (per-owner names).
	LabelScope string `env:"LABEL_SCOPE" envDefault:"global"`

	FetchConcurrency int `env:"SYNC_FETCH_CONCURRENCY" envDefault:"4"`
	UserConcurrency  int `env:"SYNC_USER_CONCURRENCY" envDefault:"1"`

	CallTimeout      time.Duration `env:"SYNC_CALL_TIMEOUT" envDefault:"30s"`
	RetryMaxAttempts int           `env:"SYNC_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryMinDelay    time.Duration `env:"SYNC_RETRY_MIN_DELAY" envDefault:"500ms"`
	RetryMaxDelay    time.Duration `env:"SYNC_RETRY_MAX_DELAY" envDefault:"10s"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found, using process environment")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Sync.LabelScope != "global" && cfg.Sync.LabelScope != "user" {
		return nil, fmt.Errorf("invalid LABEL_SCOPE %q: want global or user", cfg.Sync.LabelScope)
	}

	return cfg, nil
}
