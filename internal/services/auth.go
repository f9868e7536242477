package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/domain/auth"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/apierr"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*TokenPair, *user.User, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	// Authenticate validates an access token and returns the actor it belongs to.
	Authenticate(ctx context.Context, accessToken string) (*ctxutil.Actor, *user.User, error)
	AccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	jwtSecretKey  []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &authService{
		db:            db,
		log:           log.With("service", "AuthService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		jwtSecretKey:  []byte(jwtSecretKey),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           nowUTC,
	}
}

func (as *authService) AccessTTL() time.Duration { return as.accessTTL }

func (as *authService) Login(ctx context.Context, email, password string) (*TokenPair, *user.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: email and password required", apierr.ErrUnauthorized)
	}
	u, err := as.userRepo.GetByEmail(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		return nil, nil, internal("Auth.Login", err)
	}
	// same answer for unknown email and wrong password
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, nil, fmt.Errorf("%w: invalid email or password", apierr.ErrUnauthorized)
	}
	if !u.IsActive {
		return nil, nil, fmt.Errorf("%w: account deactivated", apierr.ErrUnauthorized)
	}

	var pair *TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := as.userTokenRepo.DeleteExpired(dbc, as.now()); err != nil {
			return err
		}
		p, err := as.issue(dbc, u)
		pair = p
		return err
	})
	if err != nil {
		return nil, nil, internal("Auth.Login", err)
	}
	as.log.Info("user logged in", "user_id", u.ID)
	return pair, u, nil
}

// Refresh rotates the token row: the old refresh token stops working.
func (as *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token required", apierr.ErrUnauthorized)
	}
	var pair *TokenPair
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		existing, err := as.userTokenRepo.GetByRefreshToken(dbc, refreshToken)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%w: unknown refresh token", apierr.ErrUnauthorized)
		}
		if existing.ExpiresAt.Before(as.now()) {
			return fmt.Errorf("%w: refresh token expired", apierr.ErrUnauthorized)
		}
		if err := as.userTokenRepo.DeleteByIDs(dbc, []uuid.UUID{existing.ID}); err != nil {
			return err
		}
		u, err := as.userRepo.GetByID(dbc, existing.UserID)
		if err != nil {
			return err
		}
		if u == nil || !u.IsActive {
			return fmt.Errorf("%w: account unavailable", apierr.ErrUnauthorized)
		}
		p, err := as.issue(dbc, u)
		pair = p
		return err
	})
	if err != nil {
		if errors.Is(err, apierr.ErrUnauthorized) {
			return nil, err
		}
		return nil, internal("Auth.Refresh", err)
	}
	return pair, nil
}

func (as *authService) Logout(ctx context.Context, accessToken string) error {
	dbc := dbctx.Context{Ctx: ctx}
	row, err := as.userTokenRepo.GetByAccessToken(dbc, accessToken)
	if err != nil {
		return internal("Auth.Logout", err)
	}
	if row == nil {
		return nil
	}
	if err := as.userTokenRepo.DeleteByIDs(dbc, []uuid.UUID{row.ID}); err != nil {
		return internal("Auth.Logout", err)
	}
	return nil
}

func (as *authService) Authenticate(ctx context.Context, accessToken string) (*ctxutil.Actor, *user.User, error) {
	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil || !parsed.Valid {
		return nil, nil, fmt.Errorf("%w: invalid or expired token", apierr.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid subject", apierr.ErrUnauthorized)
	}

	dbc := dbctx.Context{Ctx: ctx}
	row, err := as.userTokenRepo.GetByAccessToken(dbc, accessToken)
	if err != nil {
		return nil, nil, internal("Auth.Authenticate", err)
	}
	if row == nil || row.UserID != userID {
		return nil, nil, fmt.Errorf("%w: token revoked", apierr.ErrUnauthorized)
	}
	u, err := as.userRepo.GetByID(dbc, userID)
	if err != nil {
		return nil, nil, internal("Auth.Authenticate", err)
	}
	if u == nil || !u.IsActive {
		return nil, nil, fmt.Errorf("%w: account unavailable", apierr.ErrUnauthorized)
	}
	// role comes from the row, not the token, so role changes apply immediately
	return &ctxutil.Actor{UserID: u.ID, Role: string(u.Role), Token: accessToken}, u, nil
}

func (as *authService) issue(dbc dbctx.Context, u *user.User) (*TokenPair, error) {
	now := as.now()
	claims := JWTClaims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.jwtSecretKey)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	row := &auth.UserToken{
		UserID:       u.ID,
		AccessToken:  access,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    now.Add(as.refreshTTL),
	}
	if _, err := as.userTokenRepo.Create(dbc, []*auth.UserToken{row}); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: row.RefreshToken, ExpiresAt: now.Add(as.accessTTL)}, nil
}

// HashPassword is shared by the user service and the seeder.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
