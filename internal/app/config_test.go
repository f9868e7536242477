package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg := LoadConfig(logger.Nop())
	if cfg.Port != "8080" || cfg.AccessTokenTTL != time.Hour || cfg.EmailMaxAttempts != 5 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DBLockTimeout != 5*time.Second {
		t.Fatalf("unexpected lock timeout %s", cfg.DBLockTimeout)
	}
	if cfg.ReminderCron != "0 8 * * *" || cfg.RedisAddr != "" || len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfigEnvFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "RATE_LIMIT_PER_MINUTE=42\nFRONTEND_URL=https://app.example.com/\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("ACCESS_TOKEN_TTL", "900")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	// godotenv never overrides a variable that is already present, even when empty.
	// t.Setenv registers the restore; the Unsetenv leaves the key absent for the load.
	for _, k := range []string{"RATE_LIMIT_PER_MINUTE", "FRONTEND_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := LoadConfig(logger.Nop())
	if cfg.RateLimitPerMinute != 42 {
		t.Fatalf("expected env file value, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.FrontendURL != "https://app.example.com" {
		t.Fatalf("expected trimmed frontend url, got %q", cfg.FrontendURL)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected env override, got %s", cfg.AccessTokenTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}
