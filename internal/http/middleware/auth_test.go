package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/apierr"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type fakeAuth struct {
	users map[string]*user.User
}

func (f *fakeAuth) Login(context.Context, string, string) (*services.TokenPair, *user.User, error) {
	return nil, nil, apierr.ErrUnauthorized
}
func (f *fakeAuth) Refresh(context.Context, string) (*services.TokenPair, error) {
	return nil, apierr.ErrUnauthorized
}
func (f *fakeAuth) Logout(context.Context, string) error { return nil }
func (f *fakeAuth) AccessTTL() time.Duration           { return time.Hour }

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*ctxutil.Actor, *user.User, error) {
	u, ok := f.users[token]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown token", apierr.ErrUnauthorized)
	}
	return &ctxutil.Actor{UserID: u.ID, Role: string(u.Role), Token: token}, u, nil
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{users: map[string]*user.User{
		"trainee-token": {ID: uuid.New(), Role: user.RoleTrainee},
		"trainer-token": {ID: uuid.New(), Role: user.RoleTrainer},
		"admin-token":   {ID: uuid.New(), Role: user.RoleAdmin},
	}}
	am := NewAuthMiddleware(logger.Nop(), auth)
	r := gin.New()
	g := r.Group("/", am.RequireAuth())
	g.GET("/me", func(c *gin.Context) {
		u := CurrentUser(c)
		a := ctxutil.GetActor(c.Request.Context())
		response.RespondOK(c, gin.H{"id": u.ID, "actorRole": a.Role})
	})
	g.GET("/staff", RequireRole(user.RoleTrainer), func(c *gin.Context) { response.RespondOK(c, nil) })
	g.GET("/trainee-only", RequireExactRole(user.RoleTrainee), func(c *gin.Context) { response.RespondOK(c, nil) })
	return r
}

func get(r http.Handler, path, token string) (*httptest.ResponseRecorder, response.Envelope) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env response.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestRequireAuth(t *testing.T) {
	r := newAuthRouter()

	rec, env := get(r, "/me", "")
	if rec.Code != http.StatusUnauthorized || env.Code != "unauthorized" || env.Success {
		t.Fatalf("missing token: %d %+v", rec.Code, env)
	}
	rec, _ = get(r, "/me", "forged")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown token: expected 401, got %d", rec.Code)
	}
	rec, env = get(r, "/me", "trainer-token")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("valid token: %d %s", rec.Code, rec.Body.String())
	}

	// EventSource clients pass the token in the query string.
	rec, _ = get(r, "/me?token=trainee-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("query token: expected 200, got %d", rec.Code)
	}
}

func TestRoleGuards(t *testing.T) {
	r := newAuthRouter()
	cases := []struct {
		path  string
		token string
		want  int
	}{
		{"/staff", "trainee-token", http.StatusForbidden},
		{"/staff", "trainer-token", http.StatusOK},
		{"/staff", "admin-token", http.StatusOK},
		{"/trainee-only", "trainee-token", http.StatusOK},
		{"/trainee-only", "admin-token", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.path+"/"+tc.token, func(t *testing.T) {
			rec, _ := get(r, tc.path, tc.token)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
