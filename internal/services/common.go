package services

import (
	"context"
	"fmt"
	"time"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
	"github.com/yungbote/trainhub-backend/internal/platform/apierr"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Page is a 1-based page request. Zero values fall back to page 1 / default limit.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

type PageResult[T any] struct {
	Items []T
	Total int64
	Page  Page
}

func newPageResult[T any](items []T, total int64, p Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Items: items, Total: total, Page: p.Normalize()}
}

type actorInfo struct {
	*ctxutil.Actor
	role user.Role
}

func requireActor(ctx context.Context) (actorInfo, error) {
	a := ctxutil.GetActor(ctx)
	if a == nil {
		return actorInfo{}, fmt.Errorf("%w: no authenticated user", apierr.ErrUnauthorized)
	}
	return actorInfo{Actor: a, role: user.ParseRole(a.Role)}, nil
}

func requireRole(ctx context.Context, op string, min user.Role) (actorInfo, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return a, err
	}
	if !a.role.AtLeast(min) {
		return a, domainagg.NewError(domainagg.CodeForbidden, op, "insufficient role", nil)
	}
	return a, nil
}

func notFound(op, what string) error {
	return domainagg.NewError(domainagg.CodeNotFound, op, what+" not found", nil)
}

func internal(op string, err error) error {
	return domainagg.NewError(domainagg.CodeInternal, op, "internal error", err)
}

func nowUTC() time.Time { return time.Now().UTC() }
