package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/platform/ratelimit"
)

type memStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (s *memStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func limitedRouter(l *ratelimit.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", RateLimit(l, nil, "test"), func(c *gin.Context) { response.RespondOK(c, "pong") })
	return r
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	store := &memStore{counts: map[string]int64{}}
	r := limitedRouter(ratelimit.NewLimiter(logger.Nop(), store, 2, time.Minute))

	for i := 0; i < 2; i++ {
		rec, _ := get(r, "/ping", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec, env := get(r, "/ping", "")
	if rec.Code != http.StatusTooManyRequests || env.Code != "rate_limited" {
		t.Fatalf("expected 429, got %d %+v", rec.Code, env)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	store := &memStore{counts: map[string]int64{}, err: errors.New("redis down")}
	r := limitedRouter(ratelimit.NewLimiter(logger.Nop(), store, 1, time.Minute))
	for i := 0; i < 3; i++ {
		if rec, _ := get(r, "/ping", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 on store failure, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimitNilLimiter(t *testing.T) {
	r := limitedRouter(nil)
	if rec, _ := get(r, "/ping", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}
