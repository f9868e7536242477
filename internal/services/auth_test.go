package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/trainhub-backend/internal/data/repos/testutil"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/apierr"
)

func TestAuthLifecycle(t *testing.T) {
	h := newHarness(t)
	admin := h.seedUser(t, user.RoleAdmin)
	u, err := h.userSvc.Create(as(admin), CreateUserInput{
		Email: "learner@x.io", Password: "secret123", FullName: "Learner", Role: user.RoleTrainee,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	authSvc := NewAuthService(h.db, testutil.Logger(t), h.users, h.tokens, "test-secret", time.Minute, time.Hour)
	ctx := context.Background()

	if _, _, err := authSvc.Login(ctx, "learner@x.io", "wrong"); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad password, got %v", err)
	}
	if _, _, err := authSvc.Login(ctx, "nobody@x.io", "secret123"); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}

	pair, got, err := authSvc.Login(ctx, "learner@x.io", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != u.ID || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("unexpected login result %+v %+v", got, pair)
	}

	actor, _, err := authSvc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if actor.UserID != u.ID || actor.Role != string(user.RoleTrainee) {
		t.Fatalf("unexpected actor %+v", actor)
	}

	rotated, err := authSvc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh token should rotate")
	}
	if _, err := authSvc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("old refresh token must be rejected, got %v", err)
	}
	if _, _, err := authSvc.Authenticate(ctx, pair.AccessToken); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("old access token must be revoked, got %v", err)
	}

	if err := authSvc.Logout(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := authSvc.Authenticate(ctx, rotated.AccessToken); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("logged out token must be rejected, got %v", err)
	}

	again, _, err := authSvc.Login(ctx, "learner@x.io", "secret123")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if _, err := h.userSvc.Deactivate(as(admin), u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, _, err := authSvc.Authenticate(ctx, again.AccessToken); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("deactivated user must be rejected, got %v", err)
	}
	if _, _, err := authSvc.Login(ctx, "learner@x.io", "secret123"); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("deactivated user cannot log in, got %v", err)
	}
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	h := newHarness(t)
	admin := h.seedUser(t, user.RoleAdmin)
	if _, err := h.userSvc.Create(as(admin), CreateUserInput{
		Email: "t@x.io", Password: "secret123", FullName: "T", Role: user.RoleTrainer,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	issuer := NewAuthService(h.db, testutil.Logger(t), h.users, h.tokens, "secret-a", time.Minute, time.Hour)
	verifier := NewAuthService(h.db, testutil.Logger(t), h.users, h.tokens, "secret-b", time.Minute, time.Hour)
	pair, _, err := issuer.Login(context.Background(), "t@x.io", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := verifier.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
