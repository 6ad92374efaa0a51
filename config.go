package vitalsbot

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the engine configuration. Zero values are filled with defaults
// by New; invalid values (negative pool sizes and the like) panic there,
// since they are programmer errors, not runtime conditions.
type Config struct {
	Pool      PoolConfig    `json:"pool"`
	Query     QueryConfig   `json:"query"`
	Timezone  string        `json:"timezone"`
	Logging   LoggingConfig `json:"logging"`
	RateLimit RateConfig    `json:"rate_limit"`
}

// PoolConfig holds connection pool settings. Zero values select the
// defaults; a pool with no pre-warmed connections is not representable,
// MinConns is at least the default minimum.
type PoolConfig struct {
	MaxConns              int    `json:"max_conns"`
	MinConns              int    `json:"min_conns"`
	AcquireTimeoutSeconds int    `json:"acquire_timeout_seconds"`
	MaxConnLifetime       string `json:"max_conn_lifetime"`
	MaxConnIdleTime       string `json:"max_conn_idle_time"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	TimeoutSeconds   int `json:"timeout_seconds"`
	CatalogTimeout   int `json:"catalog_timeout_seconds"`
	MaxRows          int `json:"max_rows"`
	PageSize         int `json:"page_size"`
	BrowsePageSize   int `json:"browse_page_size"`
	MaxPageSize      int `json:"max_page_size"`
	MaxMessageLength int `json:"max_message_length"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// RateConfig holds the inbound sliding-window rate limit.
type RateConfig struct {
	MaxCalls      int `json:"max_calls"`
	WindowSeconds int `json:"window_seconds"`
}

// BotConfig is the full process configuration for cmd/vitalsbot:
// engine Config plus transport credentials.
type BotConfig struct {
	Config
	BotToken      string `json:"-"`
	DatabaseURL   string `json:"-"`
	AllowedUserID int64  `json:"allowed_user_id"`
}

// Defaults mirror the pool and pagination sizes the bot has always run with.
func defaultConfig() Config {
	return Config{
		Pool: PoolConfig{
			MaxConns:              5,
			MinConns:              2,
			AcquireTimeoutSeconds: 5,
		},
		Query: QueryConfig{
			TimeoutSeconds:   10,
			CatalogTimeout:   10,
			MaxRows:          100,
			PageSize:         10,
			BrowsePageSize:   20,
			MaxPageSize:      100,
			MaxMessageLength: 4000,
		},
		Timezone:  "Atlantic/Reykjavik",
		Logging:   LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
		RateLimit: RateConfig{MaxCalls: 30, WindowSeconds: 60},
	}
}

// LoadBotConfig builds a BotConfig from environment variables.
// TELEGRAM_BOT_TOKEN, DATABASE_URL and TG_ALLOWED_USER_ID are required;
// everything else falls back to defaults.
func LoadBotConfig() (*BotConfig, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("missing required env var TELEGRAM_BOT_TOKEN")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("missing required env var DATABASE_URL")
	}
	rawID := os.Getenv("TG_ALLOWED_USER_ID")
	if rawID == "" {
		return nil, fmt.Errorf("missing required env var TG_ALLOWED_USER_ID")
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TG_ALLOWED_USER_ID %q: %w", rawID, err)
	}

	cfg := defaultConfig()
	if tz := os.Getenv("TZ"); tz != "" {
		cfg.Timezone = tz
	}
	if v := os.Getenv("VITALSBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VITALSBOT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v, ok, err := intEnv("VITALSBOT_POOL_MAX_CONNS"); err != nil {
		return nil, err
	} else if ok {
		cfg.Pool.MaxConns = v
	}
	if v, ok, err := intEnv("VITALSBOT_POOL_MIN_CONNS"); err != nil {
		return nil, err
	} else if ok {
		cfg.Pool.MinConns = v
	}
	if v, ok, err := intEnv("VITALSBOT_QUERY_MAX_ROWS"); err != nil {
		return nil, err
	} else if ok {
		cfg.Query.MaxRows = v
	}
	if v, ok, err := intEnv("VITALSBOT_PAGE_SIZE"); err != nil {
		return nil, err
	} else if ok {
		cfg.Query.PageSize = v
	}

	return &BotConfig{
		Config:        cfg,
		BotToken:      token,
		DatabaseURL:   dsn,
		AllowedUserID: userID,
	}, nil
}

func intEnv(name string) (int, bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, true, nil
}
