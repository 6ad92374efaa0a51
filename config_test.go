package vitalsbot

import (
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:token")
	t.Setenv("DATABASE_URL", "postgres://bot@localhost/health")
	t.Setenv("TG_ALLOWED_USER_ID", "42")
}

func TestLoadBotConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadBotConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.AllowedUserID != 42 {
		t.Fatalf("allowed user: got %d", cfg.AllowedUserID)
	}
	if cfg.Pool.MaxConns != 5 || cfg.Query.MaxRows != 100 || cfg.Query.PageSize != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg.Config)
	}
	if cfg.RateLimit.MaxCalls != 30 || cfg.RateLimit.WindowSeconds != 60 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadBotConfig_MissingRequired(t *testing.T) {
	for _, name := range []string{"TELEGRAM_BOT_TOKEN", "DATABASE_URL", "TG_ALLOWED_USER_ID"} {
		setRequiredEnv(t)
		t.Setenv(name, "")
		if _, err := LoadBotConfig(); err == nil || !strings.Contains(err.Error(), name) {
			t.Fatalf("expected error naming %s, got %v", name, err)
		}
	}
}

func TestLoadBotConfig_BadUserID(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TG_ALLOWED_USER_ID", "not-a-number")
	if _, err := LoadBotConfig(); err == nil {
		t.Fatal("expected error for unparseable user ID")
	}
}

func TestLoadBotConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TZ", "Europe/Berlin")
	t.Setenv("VITALSBOT_POOL_MAX_CONNS", "8")
	t.Setenv("VITALSBOT_QUERY_MAX_ROWS", "250")
	t.Setenv("VITALSBOT_PAGE_SIZE", "15")
	t.Setenv("VITALSBOT_LOG_LEVEL", "debug")

	cfg, err := LoadBotConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("timezone: got %q", cfg.Timezone)
	}
	if cfg.Pool.MaxConns != 8 || cfg.Query.MaxRows != 250 || cfg.Query.PageSize != 15 {
		t.Fatalf("overrides not applied: %+v", cfg.Config)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level: got %q", cfg.Logging.Level)
	}
}

func TestLoadBotConfig_BadIntOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VITALSBOT_POOL_MAX_CONNS", "lots")
	if _, err := LoadBotConfig(); err == nil {
		t.Fatal("expected error for unparseable int override")
	}
}
