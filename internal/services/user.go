package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

type CreateUserInput struct {
	Email    string
	Password string
	FullName string
	Role     user.Role
}

type UserService interface {
	GetMe(ctx context.Context) (*user.User, error)
	Create(ctx context.Context, in CreateUserInput) (*user.User, error)
	List(ctx context.Context, filter repos.UserFilter, page Page) (PageResult[*user.User], error)
	Deactivate(ctx context.Context, userID uuid.UUID) (*user.User, error)
}

type userService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, userTokenRepo repos.UserTokenRepo) UserService {
	return &userService{
		db:            db,
		log:           log.With("service", "UserService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
	}
}

func (us *userService) GetMe(ctx context.Context) (*user.User, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	u, err := us.userRepo.GetByID(dbctx.Context{Ctx: ctx}, a.UserID)
	if err != nil {
		return nil, internal("User.GetMe", err)
	}
	if u == nil {
		return nil, notFound("User.GetMe", "user")
	}
	return u, nil
}

// Create is restricted to supervisors and admins. Only admins create admins.
func (us *userService) Create(ctx context.Context, in CreateUserInput) (*user.User, error) {
	const op = "User.Create"
	a, err := requireRole(ctx, op, user.RoleSupervisor)
	if err != nil {
		return nil, err
	}
	in.Role = user.ParseRole(string(in.Role))
	if !in.Role.Valid() {
		return nil, domainagg.NewValidationError(op, "invalid request", []domainagg.FieldError{{Field: "role", Message: "unknown role"}})
	}
	if in.Role == user.RoleAdmin && a.role != user.RoleAdmin {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "only admins can create admins", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	exists, err := us.userRepo.EmailExists(dbc, in.Email)
	if err != nil {
		return nil, internal(op, err)
	}
	if exists {
		return nil, domainagg.NewError(domainagg.CodeConflict, op, "email already registered", nil)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, internal(op, err)
	}
	u := &user.User{
		Email:    in.Email,
		Password: hash,
		FullName: strings.TrimSpace(in.FullName),
		Role:     in.Role,
		IsActive: true,
	}
	if _, err := us.userRepo.Create(dbc, []*user.User{u}); err != nil {
		return nil, internal(op, err)
	}
	us.log.Info("user created", "user_id", u.ID, "role", u.Role, "created_by", a.UserID)
	return u, nil
}

func (us *userService) List(ctx context.Context, filter repos.UserFilter, page Page) (PageResult[*user.User], error) {
	const op = "User.List"
	if _, err := requireRole(ctx, op, user.RoleTrainer); err != nil {
		return PageResult[*user.User]{}, err
	}
	page = page.Normalize()
	rows, total, err := us.userRepo.List(dbctx.Context{Ctx: ctx}, filter, page.Limit, page.Offset())
	if err != nil {
		return PageResult[*user.User]{}, internal(op, err)
	}
	return newPageResult(rows, total, page), nil
}

// Deactivate is a soft delete: the row stays, every session is revoked.
func (us *userService) Deactivate(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	const op = "User.Deactivate"
	a, err := requireRole(ctx, op, user.RoleSupervisor)
	if err != nil {
		return nil, err
	}
	if a.UserID == userID {
		return nil, domainagg.NewError(domainagg.CodePreconditionFailed, op, "cannot deactivate yourself", nil)
	}
	var target *user.User
	err = us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		u, err := us.userRepo.GetByID(dbc, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return notFound(op, "user")
		}
		if u.Role == user.RoleAdmin && a.role != user.RoleAdmin {
			return domainagg.NewError(domainagg.CodeForbidden, op, "only admins can deactivate admins", nil)
		}
		if _, err := us.userRepo.SetActive(dbc, userID, false); err != nil {
			return err
		}
		if err := us.userTokenRepo.DeleteByUserIDs(dbc, []uuid.UUID{userID}); err != nil {
			return err
		}
		u.IsActive = false
		target = u
		return nil
	})
	if err != nil {
		if _, ok := domainagg.As(err); ok {
			return nil, err
		}
		return nil, internal(op, err)
	}
	us.log.Info("user deactivated", "user_id", userID, "by", a.UserID)
	return target, nil
}
