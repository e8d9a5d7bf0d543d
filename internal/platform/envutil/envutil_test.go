package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TRIAGE_TEST_INT", "abc")
	if got := Int("TRIAGE_TEST_INT", 7); got != 7 {
		t.Fatalf("Int: want=%d got=%d", 7, got)
	}
	t.Setenv("TRIAGE_TEST_INT", " 12 ")
	if got := Int("TRIAGE_TEST_INT", 7); got != 12 {
		t.Fatalf("Int: want=%d got=%d", 12, got)
	}
}

func TestDurationAcceptsSeconds(t *testing.T) {
	t.Setenv("TRIAGE_TEST_DUR", "3")
	if got := Duration("TRIAGE_TEST_DUR", time.Second); got != 3*time.Second {
		t.Fatalf("Duration: want=%v got=%v", 3*time.Second, got)
	}
	t.Setenv("TRIAGE_TEST_DUR", "250ms")
	if got := Duration("TRIAGE_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("Duration: want=%v got=%v", 250*time.Millisecond, got)
	}
}

func TestBoolDefault(t *testing.T) {
	t.Setenv("TRIAGE_TEST_BOOL", "")
	if got := Bool("TRIAGE_TEST_BOOL", true); !got {
		t.Fatalf("Bool: want=true got=false")
	}
	t.Setenv("TRIAGE_TEST_BOOL", "off")
	if got := Bool("TRIAGE_TEST_BOOL", true); got {
		t.Fatalf("Bool: want=false got=true")
	}
}
