package aggregates

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// lifecycleRow names a table whose rows move through training.Status.
type lifecycleRow struct {
	table  string
	entity string
}

var (
	courseRow  = lifecycleRow{table: training.Course{}.TableName(), entity: "course"}
	subjectRow = lifecycleRow{table: training.Subject{}.TableName(), entity: "subject"}
)

// CASGuard applies status transitions as compare-and-set updates, so a row only moves
// when it is still in the state the caller read under the course lock.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// TryTransition moves row id to `to` when its status is one of from. Entering IN_PROGRESS
// stamps start_date and entering FINISHED stamps end_date. It reports whether the row moved.
func (g CASGuard) TryTransition(dbc dbctx.Context, row lifecycleRow, id uuid.UUID, to training.Status, now time.Time, from ...training.Status) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	if row.table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for a status transition")
	}
	if len(from) == 0 {
		return false, ValidationError("transition needs at least one source status")
	}
	if !to.Valid() {
		return false, ValidationError(fmt.Sprintf("unknown target status %q", to))
	}
	updates := map[string]any{"status": to, "updated_at": now}
	switch to {
	case training.StatusInProgress:
		updates["start_date"] = now
	case training.StatusFinished:
		updates["end_date"] = now
	}
	return g.updateByStatus(db, row.table, id, statusStrings(from), updates)
}

// UpdateByStatus applies updates to table row id only while its status is one of from.
// Progress rows use it for the moves their own timestamps describe.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, from []string, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for a status update")
	}
	if len(from) == 0 || len(updates) == 0 {
		return false, ValidationError("status update needs source statuses and updates")
	}
	return g.updateByStatus(db, table, id, from, updates)
}

func (g CASGuard) updateByStatus(db *gorm.DB, table string, id uuid.UUID, from []string, updates map[string]any) (bool, error) {
	res := db.Table(table).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Transition is TryTransition that treats a row which has already moved as a conflict.
func (g CASGuard) Transition(dbc dbctx.Context, row lifecycleRow, id uuid.UUID, to training.Status, now time.Time, from ...training.Status) error {
	ok, err := g.TryTransition(dbc, row, id, to, now, from...)
	if err != nil {
		return err
	}
	if !ok {
		return ConflictError(row.entity + " changed concurrently")
	}
	return nil
}

// requireStatus rejects a transition attempted from the wrong lifecycle state.
func requireStatus(row lifecycleRow, current training.Status, allowed ...training.Status) error {
	if len(allowed) == 0 {
		return ValidationError("allowed statuses cannot be empty")
	}
	for _, s := range allowed {
		if current == s {
			return nil
		}
	}
	return PreconditionError(fmt.Sprintf("%s is %s; expected %s", row.entity, current, strings.Join(statusStrings(allowed), " or ")))
}

func statusStrings(in []training.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
