package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type Config struct {
	AppEnv string
	Port   string

	DBLockTimeout time.Duration

	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisAddr          string
	RedisPassword      string
	RedisChannel       string
	RateLimitPerMinute int
	AuthRateLimit      int

	SendGridAPIKey         string
	EmailFrom              string
	EmailFromName          string
	EmailWorkerConcurrency int
	EmailMaxAttempts       int

	ObjectStorageMode   string
	StorageEmulatorHost string
	EvidenceBucketName  string
	EvidencePublicURL   string

	ReminderCron string

	MetricsAddr  string
	OtelEnabled  bool
	OtelEndpoint string

	CORSAllowedOrigins []string
	FrontendURL        string
}

// LoadConfig reads an optional .env file (ENV_FILE, default ".env") and then the process
// environment. Environment variables always win over the file.
func LoadConfig(log *logger.Logger) Config {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn("Failed to load env file", "path", envFile, "error", err)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		AppEnv: v.GetString("APP_ENV"),
		Port:   v.GetString("PORT"),

		DBLockTimeout: time.Duration(v.GetInt("DB_LOCK_TIMEOUT_MS")) * time.Millisecond,

		JWTSecretKey:    v.GetString("JWT_SECRET_KEY"),
		AccessTokenTTL:  seconds(v, "ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: seconds(v, "REFRESH_TOKEN_TTL"),

		RedisAddr:          strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisChannel:       v.GetString("REDIS_CHANNEL"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		AuthRateLimit:      v.GetInt("AUTH_RATE_LIMIT_PER_MINUTE"),

		SendGridAPIKey:         v.GetString("SENDGRID_API_KEY"),
		EmailFrom:              v.GetString("EMAIL_FROM"),
		EmailFromName:          v.GetString("EMAIL_FROM_NAME"),
		EmailWorkerConcurrency: v.GetInt("EMAIL_WORKER_CONCURRENCY"),
		EmailMaxAttempts:       v.GetInt("EMAIL_MAX_ATTEMPTS"),

		ObjectStorageMode:   v.GetString("OBJECT_STORAGE_MODE"),
		StorageEmulatorHost: v.GetString("STORAGE_EMULATOR_HOST"),
		EvidenceBucketName:  strings.TrimSpace(v.GetString("EVIDENCE_BUCKET_NAME")),
		EvidencePublicURL:   v.GetString("EVIDENCE_PUBLIC_BASE_URL"),

		ReminderCron: v.GetString("REMINDER_CRON"),

		MetricsAddr:  v.GetString("METRICS_ADDR"),
		OtelEnabled:  v.GetBool("OTEL_ENABLED"),
		OtelEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		FrontendURL:        strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
	}
	if cfg.JWTSecretKey == defaultJWTSecret && cfg.AppEnv == "production" {
		log.Warn("JWT_SECRET_KEY is using the development default")
	}
	return cfg
}

const defaultJWTSecret = "dev-secret-change-me"

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_LOCK_TIMEOUT_MS", 5000)
	v.SetDefault("JWT_SECRET_KEY", defaultJWTSecret)
	v.SetDefault("ACCESS_TOKEN_TTL", 3600)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*3600)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CHANNEL", "trainhub:sse")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM", "no-reply@trainhub.local")
	v.SetDefault("EMAIL_FROM_NAME", "TrainHub")
	v.SetDefault("EMAIL_WORKER_CONCURRENCY", 2)
	v.SetDefault("EMAIL_MAX_ATTEMPTS", 5)
	v.SetDefault("OBJECT_STORAGE_MODE", "")
	v.SetDefault("STORAGE_EMULATOR_HOST", "")
	v.SetDefault("EVIDENCE_BUCKET_NAME", "")
	v.SetDefault("EVIDENCE_PUBLIC_BASE_URL", "")
	v.SetDefault("REMINDER_CRON", "0 8 * * *")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
