// Package config defines the top-level configuration for the exchange engine
// and provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/courtside/refexchange/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by REFX_* environment variables.
type Config struct {
	Refbase  RefbaseConfig  `toml:"refbase"`
	Transit  TransitConfig  `toml:"transit"`
	Referee  RefereeConfig  `toml:"referee"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Engine   EngineConfig   `toml:"engine"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// RefbaseConfig holds the endpoint and credentials of the system of record.
type RefbaseConfig struct {
	BaseURL     string `toml:"base_url"`
	BearerToken string `toml:"bearer_token"`
	// ClientID/ClientSecret sign requests with HMAC when set; the bearer
	// token alone is enough for read-only deployments.
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// TransitConfig holds the journey-planner endpoint and throttle parameters.
type TransitConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// RefereeConfig identifies the referee the engine acts as, plus the profile
// data the filters compare against.
type RefereeConfig struct {
	ID              string `toml:"id"`
	AssociationCode string `toml:"association_code"`
	// Gradation is the referee's own level value; 0 means unknown.
	Gradation float64 `toml:"gradation"`
	// HomeLat/HomeLng is the home location for distance and travel-time
	// filtering. Both zero means no home on record.
	HomeLat float64 `toml:"home_lat"`
	HomeLng float64 `toml:"home_lng"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// RetentionDays is how long delivered outbox entries stay in Postgres
	// before they are exported and removed.
	RetentionDays int `toml:"retention_days"`
	// Interval is how often the archiver runs.
	Interval duration `toml:"interval"`
}

// EngineConfig holds the engine's behavioral parameters.
type EngineConfig struct {
	// PoolRefreshInterval is the periodic background refetch of the open
	// pool. Change push still fires on every invalidation.
	PoolRefreshInterval duration `toml:"pool_refresh_interval"`
	// ProbeInterval is how often the connectivity monitor probes the system
	// of record.
	ProbeInterval duration `toml:"probe_interval"`
	// StrictUnknown excludes offers whose filter input is missing instead
	// of keeping them. Off by default: unknown data should not silently
	// hide offers.
	StrictUnknown bool `toml:"strict_unknown"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit caps requests per client IP per minute. Zero disables it.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	WebhookURL     string   `toml:"webhook_url"`
	Events         []string `toml:"events"`
}

// HomeCoord returns the configured home location, or nil when none is set.
func (r RefereeConfig) HomeCoord() *domain.Coord {
	c := domain.Coord{Lat: r.HomeLat, Lng: r.HomeLng}
	if !c.Valid() {
		return nil
	}
	return &c
}

// GradationValue returns the referee's gradation, or nil when unknown.
func (r RefereeConfig) GradationValue() *float64 {
	if r.Gradation <= 0 || math.IsNaN(r.Gradation) {
		return nil
	}
	g := r.Gradation
	return &g
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Refbase: RefbaseConfig{
			BaseURL: "https://api.refbase.example.com",
		},
		Transit: TransitConfig{
			BaseURL: "https://transit.example.com",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "refexchange",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "refexchange-archive",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  30,
			Interval:       duration{24 * time.Hour},
		},
		Engine: EngineConfig{
			PoolRefreshInterval: duration{2 * time.Minute},
			ProbeInterval:       duration{15 * time.Second},
			StrictUnknown:       false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"replay_delivered", "replay_failed", "pool_degraded"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Refbase
	if c.Refbase.BaseURL == "" {
		errs = append(errs, "refbase: base_url must not be empty")
	}
	if (c.Refbase.ClientID == "") != (c.Refbase.ClientSecret == "") {
		errs = append(errs, "refbase: client_id and client_secret must be set together")
	}

	// Transit
	if c.Transit.BaseURL == "" {
		errs = append(errs, "transit: base_url must not be empty")
	}

	// Referee
	if strings.TrimSpace(c.Referee.ID) == "" {
		errs = append(errs, "referee: id must not be empty")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
	}

	// Engine
	if c.Engine.PoolRefreshInterval.Duration <= 0 {
		errs = append(errs, "engine: pool_refresh_interval must be positive")
	}
	if c.Engine.ProbeInterval.Duration <= 0 {
		errs = append(errs, "engine: probe_interval must be positive")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
