package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/apierr"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/services"
)

const ctxKeyUser = "auth_user"

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// RequireAuth resolves the bearer token to an active user and attaches the actor to the
// request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.RespondError(c, fmt.Errorf("%w: missing token", apierr.ErrUnauthorized))
			return
		}
		actor, u, err := am.authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			am.log.Debug("authentication rejected", "path", c.FullPath(), "error", err)
			response.RespondError(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), actor))
		c.Set(ctxKeyUser, u)
		c.Next()
	}
}

// RequireRole admits callers whose role ranks at least min.
func RequireRole(min user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := ctxutil.GetActor(c.Request.Context())
		if a == nil {
			response.RespondError(c, apierr.ErrUnauthorized)
			return
		}
		if !user.ParseRole(a.Role).AtLeast(min) {
			response.RespondError(c, domainagg.NewError(domainagg.CodeForbidden, "RequireRole", "insufficient role", nil))
			return
		}
		c.Next()
	}
}

// RequireExactRole admits only the listed roles; rank is ignored.
func RequireExactRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := ctxutil.GetActor(c.Request.Context())
		if a == nil {
			response.RespondError(c, apierr.ErrUnauthorized)
			return
		}
		got := user.ParseRole(a.Role)
		for _, r := range roles {
			if got == r {
				c.Next()
				return
			}
		}
		response.RespondError(c, domainagg.NewError(domainagg.CodeForbidden, "RequireExactRole", "insufficient role", nil))
	}
}

// CurrentUser returns the user loaded by RequireAuth.
func CurrentUser(c *gin.Context) *user.User {
	if v, ok := c.Get(ctxKeyUser); ok {
		if u, ok := v.(*user.User); ok {
			return u
		}
	}
	return nil
}

// extractToken prefers the Authorization header; EventSource cannot set headers, so SSE
// passes ?token=.
func extractToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
