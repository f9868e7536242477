package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	repotest "github.com/yungbote/trainhub-backend/internal/data/repos/testutil"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
)

func TestLockTimeoutStatement(t *testing.T) {
	cases := []struct {
		dialect string
		d       time.Duration
		want    string
	}{
		{"postgres", 5 * time.Second, "SET LOCAL lock_timeout = '5000ms'"},
		{"postgres", 250 * time.Microsecond, "SET LOCAL lock_timeout = '1ms'"},
		{"postgres", 0, ""},
		{"sqlite", 5 * time.Second, ""},
	}
	for _, tc := range cases {
		if got := lockTimeoutStatement(tc.dialect, tc.d); got != tc.want {
			t.Fatalf("lockTimeoutStatement(%s, %s) = %q, want %q", tc.dialect, tc.d, got, tc.want)
		}
	}
}

func TestGormTxRunnerOnSQLite(t *testing.T) {
	db := repotest.DB(t)
	runner := NewGormTxRunner(db, DefaultLockTimeout)

	var sawTx bool
	if err := runner.InTx(context.Background(), func(dbc dbctx.Context) error {
		sawTx = dbc.Tx != nil
		return nil
	}); err != nil {
		t.Fatalf("in tx: %v", err)
	}
	if !sawTx {
		t.Fatalf("expected a transaction handle")
	}

	boom := errors.New("boom")
	if err := runner.InTx(context.Background(), func(dbctx.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	if err := NewGormTxRunner(nil, 0).InTx(context.Background(), func(dbctx.Context) error { return nil }); err == nil {
		t.Fatalf("expected nil db to fail")
	}
}
