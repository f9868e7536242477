package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TRAINHUB_TEST_INT", "abc")
	if got := Int("TRAINHUB_TEST_INT", 7); got != 7 {
		t.Fatalf("want 7, got %d", got)
	}
	t.Setenv("TRAINHUB_TEST_INT", " 12 ")
	if got := Int("TRAINHUB_TEST_INT", 7); got != 12 {
		t.Fatalf("want 12, got %d", got)
	}
}

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("TRAINHUB_TEST_DUR", "30")
	if got := Duration("TRAINHUB_TEST_DUR", time.Minute); got != 30*time.Second {
		t.Fatalf("want 30s, got %s", got)
	}
	t.Setenv("TRAINHUB_TEST_DUR", "2m")
	if got := Duration("TRAINHUB_TEST_DUR", time.Minute); got != 2*time.Minute {
		t.Fatalf("want 2m, got %s", got)
	}
	t.Setenv("TRAINHUB_TEST_DUR", "soon")
	if got := Duration("TRAINHUB_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("want default, got %s", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("TRAINHUB_TEST_BOOL", "off")
	if Bool("TRAINHUB_TEST_BOOL", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("TRAINHUB_TEST_BOOL", "")
	if !Bool("TRAINHUB_TEST_BOOL", true) {
		t.Fatalf("expected default true")
	}
}
