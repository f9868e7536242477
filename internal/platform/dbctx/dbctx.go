package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context pairs a request context with the transaction a write is running in.
// A nil Tx means "use the repo's root handle".
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background wraps ctx without a transaction.
func Background(ctx context.Context) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return Context{Ctx: ctx}
}

// DB returns the handle a repo should issue statements on.
func (c Context) DB(root *gorm.DB) *gorm.DB {
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Tx != nil {
		return c.Tx.WithContext(ctx)
	}
	return root.WithContext(ctx)
}
