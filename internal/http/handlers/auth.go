package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
	validator   *validation.Validator
}

func NewAuthHandler(authService services.AuthService, validator *validation.Validator) *AuthHandler {
	return &AuthHandler{authService: authService, validator: validator}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, ah.validator, "Auth.Login", &req) {
		return
	}
	pair, u, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.ExpiresAt,
		"expiresIn":    int(ah.authService.AccessTTL().Seconds()),
		"user":         u,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// POST /api/auth/refresh
func (ah *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, ah.validator, "Auth.Refresh", &req) {
		return
	}
	pair, err := ah.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.ExpiresAt,
		"expiresIn":    int(ah.authService.AccessTTL().Seconds()),
	})
}

// POST /api/auth/logout (authenticated)
func (ah *AuthHandler) Logout(c *gin.Context) {
	a := ctxutil.GetActor(c.Request.Context())
	if a == nil {
		response.RespondOK(c, nil)
		return
	}
	if err := ah.authService.Logout(c.Request.Context(), a.Token); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "logged out", nil)
}
