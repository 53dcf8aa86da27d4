package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{
		"SERVER_PORT", "PORT", "STORAGE_DRIVER", "SCORING_MODEL", "SCORING_API_BASE_URL",
		"SCORING_HTTP_TIMEOUT_SECONDS", "SCORE_REFRESH_SCHEDULE", "SCORE_REFRESH_BATCH_SIZE",
		"EVENTS_EXCHANGE", "LOAN_EVENT_QUEUE", "REDIS_RATE_LIMIT_PREFIX",
	} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.StorageDriver != StorageDriverPostgres {
		t.Fatalf("expected postgres storage driver, got %q", cfg.StorageDriver)
	}
	if cfg.ScoringModel != "google/gemini-2.5-flash" {
		t.Fatalf("unexpected default model %q", cfg.ScoringModel)
	}
	if cfg.ScoringTimeout() != 60*time.Second {
		t.Fatalf("expected 60s scoring timeout, got %s", cfg.ScoringTimeout())
	}
	if cfg.ScoreRefreshSchedule != "@daily" {
		t.Fatalf("expected @daily refresh schedule, got %q", cfg.ScoreRefreshSchedule)
	}
	if cfg.ScoreRefreshBatchSize != 50 {
		t.Fatalf("expected refresh batch size 50, got %d", cfg.ScoreRefreshBatchSize)
	}
	if cfg.EventsExchange != "credible.events" || cfg.LoanEventQueue != "credit_service.loan_events" {
		t.Fatalf("unexpected messaging defaults: %q %q", cfg.EventsExchange, cfg.LoanEventQueue)
	}
}

func TestLoadConfig_UsesLovableAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SCORING_API_KEY")
	setEnvWithCleanup(t, "LOVABLE_API_KEY", " alias-key ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ScoringAPIKey != "alias-key" {
		t.Fatalf("expected ScoringAPIKey from alias env var, got %q", cfg.ScoringAPIKey)
	}
}

func TestLoadConfig_ScoringAPIKeyTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SCORING_API_KEY", "primary-key")
	setEnvWithCleanup(t, "LOVABLE_API_KEY", "alias-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ScoringAPIKey != "primary-key" {
		t.Fatalf("expected ScoringAPIKey to prioritize SCORING_API_KEY, got %q", cfg.ScoringAPIKey)
	}
}

func TestLoadConfig_UsesSupabaseDBURLAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "DATABASE_URL")
	setEnvWithCleanup(t, "SUPABASE_DB_URL", "postgres://u:p@db.example.supabase.co:5432/postgres")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://u:p@db.example.supabase.co:5432/postgres" {
		t.Fatalf("expected DatabaseURL from alias env var, got %q", cfg.DatabaseURL)
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NormalizesInvalidNumbers(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SCORING_HTTP_TIMEOUT_SECONDS", "0")
	setEnvWithCleanup(t, "CREDIT_SCORE_RATE_LIMIT_PER_MINUTE", "-3")
	setEnvWithCleanup(t, "SCORE_REFRESH_BATCH_SIZE", "-1")
	setEnvWithCleanup(t, "STORAGE_DRIVER", " SQLite ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ScoringHTTPTimeoutSeconds != 60 {
		t.Fatalf("expected timeout fallback to 60, got %d", cfg.ScoringHTTPTimeoutSeconds)
	}
	if cfg.CreditScoreRateLimitPerMinute != 0 {
		t.Fatalf("expected negative rate limit to clamp to 0, got %d", cfg.CreditScoreRateLimitPerMinute)
	}
	if cfg.ScoreRefreshBatchSize != 50 {
		t.Fatalf("expected batch size fallback to 50, got %d", cfg.ScoreRefreshBatchSize)
	}
	if cfg.StorageDriver != StorageDriverSQLite {
		t.Fatalf("expected normalized sqlite driver, got %q", cfg.StorageDriver)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "postgres with url", cfg: Config{StorageDriver: StorageDriverPostgres, DatabaseURL: "postgres://localhost/db"}},
		{name: "postgres without url", cfg: Config{StorageDriver: StorageDriverPostgres}, wantErr: true},
		{name: "sqlite with path", cfg: Config{StorageDriver: StorageDriverSQLite, SQLitePath: "data/x.db"}},
		{name: "sqlite without path", cfg: Config{StorageDriver: StorageDriverSQLite}, wantErr: true},
		{name: "unknown driver", cfg: Config{StorageDriver: "mysql"}, wantErr: true},
		{name: "missing scoring key is not fatal", cfg: Config{StorageDriver: StorageDriverSQLite, SQLitePath: ":memory:"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
