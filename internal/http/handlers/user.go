package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
	validator   *validation.Validator
}

func NewUserHandler(userService services.UserService, validator *validation.Validator) *UserHandler {
	return &UserHandler{userService: userService, validator: validator}
}

// GET /api/me
func (uh *UserHandler) GetMe(c *gin.Context) {
	me, err := uh.userService.GetMe(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, me)
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"required,notblank,max=200"`
	Role     string `json:"role" validate:"required,oneof=ADMIN SUPERVISOR TRAINER TRAINEE"`
}

// POST /api/users
func (uh *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, uh.validator, "User.Create", &req) {
		return
	}
	u, err := uh.userService.Create(c.Request.Context(), services.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     user.ParseRole(req.Role),
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, u)
}

// GET /api/users?role=&active=&q=&page=&limit=
func (uh *UserHandler) List(c *gin.Context) {
	filter := repos.UserFilter{
		Role:   user.ParseRole(c.Query("role")),
		Search: strings.TrimSpace(c.Query("q")),
	}
	switch strings.ToLower(c.Query("active")) {
	case "true":
		v := true
		filter.Active = &v
	case "false":
		v := false
		filter.Active = &v
	}
	res, err := uh.userService.List(c.Request.Context(), filter, pageFrom(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondPage(c, res.Items, res.Page.Page, res.Page.Limit, res.Total)
}

// PATCH /api/users/:id/deactivate
func (uh *UserHandler) Deactivate(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	u, err := uh.userService.Deactivate(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "user deactivated", u)
}
