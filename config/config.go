package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the decision core needs at start-up
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Cache    CacheConfig
	Events   EventsConfig
	Export   ExportConfig
	Scoring  ScoringConfig
	Decision DecisionConfig
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	Name            string        `env:"DB_NAME" envDefault:"nba"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD"`
	SSLMode         string        `env:"DB_SSL_MODE" envDefault:"disable"`
	TimeZone        string        `env:"DB_TIMEZONE" envDefault:"UTC"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	SlowQueryLog    time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	LogQueries      bool          `env:"DB_LOG_QUERIES" envDefault:"false"`
}

// DSN renders the key/value connection string gorm's postgres driver expects
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.TimeZone)
}

// URL renders the connection as a postgres:// URL for golang-migrate
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	BodyLimit       int           `env:"SERVER_BODY_LIMIT" envDefault:"1048576"`
}

// Addr is host:port for fiber's Listen
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CacheConfig struct {
	Enabled  bool          `env:"CACHE_ENABLED" envDefault:"false"`
	RedisURL string        `env:"CACHE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Prefix   string        `env:"CACHE_PREFIX" envDefault:"nba"`
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"10m"`
}

type EventsConfig struct {
	Enabled bool   `env:"NATS_ENABLED" envDefault:"false"`
	URL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	Subject string `env:"NATS_AUDIT_SUBJECT" envDefault:"nba.audit"`
	Name    string `env:"NATS_CLIENT_NAME" envDefault:"nba-decision-core"`
}

type ExportConfig struct {
	Enabled  bool   `env:"EXPORT_S3_ENABLED" envDefault:"false"`
	Bucket   string `env:"EXPORT_S3_BUCKET"`
	Prefix   string `env:"EXPORT_S3_PREFIX" envDefault:"exports/"`
	Region   string `env:"EXPORT_S3_REGION" envDefault:"us-east-1"`
	Endpoint string `env:"EXPORT_S3_ENDPOINT"`
}

type ScoringConfig struct {
	// ProfileFile is a TOML file overriding the built-in scoring constants
	ProfileFile string `env:"SCORING_PROFILE_FILE"`
}

type DecisionConfig struct {
	SampleSize int  `env:"DECISION_SAMPLE_SIZE" envDefault:"20"`
	ScoreAll   bool `env:"DECISION_SCORE_ALL" envDefault:"false"`

	// ExpirySweepInterval runs ReconcileAll in the background while serving; 0 leaves expiry to reads
	ExpirySweepInterval time.Duration `env:"DECISION_EXPIRY_SWEEP_INTERVAL" envDefault:"5m"`
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		log.Println("No .env file found, relying on OS environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Database.Host == "" {
		problems = append(problems, "DB_HOST is required")
	}
	if cfg.Database.Name == "" {
		problems = append(problems, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		problems = append(problems, "DB_USER is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		problems = append(problems, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.MaxIdleConns > cfg.Database.MaxOpenConns {
		problems = append(problems, "DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, "SERVER_PORT must be between 1 and 65535")
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.RedisURL == "" {
			problems = append(problems, "CACHE_REDIS_URL is required when the cache is enabled")
		}
		if cfg.Cache.TTL <= 0 {
			problems = append(problems, "CACHE_TTL must be positive")
		}
	}

	if cfg.Events.Enabled {
		if cfg.Events.URL == "" {
			problems = append(problems, "NATS_URL is required when events are enabled")
		}
		if cfg.Events.Subject == "" {
			problems = append(problems, "NATS_AUDIT_SUBJECT is required when events are enabled")
		}
	}

	if cfg.Export.Enabled && cfg.Export.Bucket == "" {
		problems = append(problems, "EXPORT_S3_BUCKET is required when S3 export is enabled")
	}

	if cfg.Decision.SampleSize < 1 || cfg.Decision.SampleSize > 1000 {
		problems = append(problems, "DECISION_SAMPLE_SIZE must be between 1 and 1000")
	}
	if cfg.Decision.ExpirySweepInterval < 0 {
		problems = append(problems, "DECISION_EXPIRY_SWEEP_INTERVAL cannot be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
