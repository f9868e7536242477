package aggregates

import (
	"context"
	"fmt"
	"time"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// DefaultLockTimeout bounds how long a write waits for the course row lock on Postgres.
// A timed-out wait surfaces as lock_not_available, which MapError reports as retryable.
const DefaultLockTimeout = 5 * time.Second

// TxRunner is the transaction boundary every aggregate write runs inside.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormTxRunner runs writes in GORM transactions. lockTimeout <= 0 waits indefinitely.
func NewGormTxRunner(db *gorm.DB, lockTimeout time.Duration) TxRunner {
	return &gormTxRunner{db: db, lockTimeout: lockTimeout}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if stmt := lockTimeoutStatement(tx.Dialector.Name(), r.lockTimeout); stmt != "" {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// lockTimeoutStatement scopes the timeout to the current transaction. SQLite serializes
// writers on its own and has no equivalent setting.
func lockTimeoutStatement(dialect string, d time.Duration) string {
	if dialect != "postgres" || d <= 0 {
		return ""
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}
