package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies REFX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known REFX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Refbase ──
	setStr(&cfg.Refbase.BaseURL, "REFX_REFBASE_BASE_URL")
	setStr(&cfg.Refbase.BearerToken, "REFX_REFBASE_BEARER_TOKEN")
	setStr(&cfg.Refbase.ClientID, "REFX_REFBASE_CLIENT_ID")
	setStr(&cfg.Refbase.ClientSecret, "REFX_REFBASE_CLIENT_SECRET")

	// ── Transit ──
	setStr(&cfg.Transit.BaseURL, "REFX_TRANSIT_BASE_URL")
	setStr(&cfg.Transit.APIKey, "REFX_TRANSIT_API_KEY")

	// ── Referee ──
	setStr(&cfg.Referee.ID, "REFX_REFEREE_ID")
	setStr(&cfg.Referee.AssociationCode, "REFX_REFEREE_ASSOCIATION_CODE")
	setFloat64(&cfg.Referee.Gradation, "REFX_REFEREE_GRADATION")
	setFloat64(&cfg.Referee.HomeLat, "REFX_REFEREE_HOME_LAT")
	setFloat64(&cfg.Referee.HomeLng, "REFX_REFEREE_HOME_LNG")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "REFX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "REFX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "REFX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "REFX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "REFX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "REFX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "REFX_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "REFX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "REFX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "REFX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "REFX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REFX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REFX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REFX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REFX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REFX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "REFX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "REFX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "REFX_S3_REGION")
	setStr(&cfg.S3.Bucket, "REFX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "REFX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "REFX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "REFX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "REFX_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "REFX_S3_RETENTION_DAYS")
	setDuration(&cfg.S3.Interval, "REFX_S3_INTERVAL")

	// ── Engine ──
	setDuration(&cfg.Engine.PoolRefreshInterval, "REFX_ENGINE_POOL_REFRESH_INTERVAL")
	setDuration(&cfg.Engine.ProbeInterval, "REFX_ENGINE_PROBE_INTERVAL")
	setBool(&cfg.Engine.StrictUnknown, "REFX_ENGINE_STRICT_UNKNOWN")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "REFX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "REFX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "REFX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "REFX_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "REFX_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "REFX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "REFX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.WebhookURL, "REFX_NOTIFY_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "REFX_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "REFX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
