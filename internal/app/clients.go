package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/trainhub-backend/internal/platform/gcp"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/platform/sendgrid"
	"github.com/yungbote/trainhub-backend/internal/realtime/bus"
)

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset.
	Redis    goredis.UniversalClient
	SSEBus   bus.Bus
	Mailer   sendgrid.Client
	Evidence gcp.BucketService
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		b, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		out.Redis = rdb
		out.SSEBus = b
	} else {
		log.Warn("REDIS_ADDR not set; realtime stays in-process and rate limiting is disabled")
		out.SSEBus = bus.NewLocalBus()
	}

	// SendGrid
	mailer, err := sendgrid.New(log, sendgrid.Config{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	})
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init sendgrid client: %w", err)
	}
	out.Mailer = mailer

	// Gcs
	bucket, err := resolveBucketService(ctx, log, cfg)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Evidence = bucket

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
