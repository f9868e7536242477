package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/observability"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/platform/ratelimit"
)

// RateLimit keys on the authenticated user when there is one, else on client IP.
// A nil limiter admits everything.
func RateLimit(l *ratelimit.Limiter, m *observability.Metrics, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		subject := "ip:" + c.ClientIP()
		if a := ctxutil.GetActor(c.Request.Context()); a != nil {
			subject = "user:" + a.UserID.String()
		}
		d := l.Allow(c.Request.Context(), scope, subject)
		if !d.Allowed {
			m.IncRateLimited(scope)
			response.RespondTooManyRequests(c, d.RetryAfter)
			return
		}
		c.Next()
	}
}
