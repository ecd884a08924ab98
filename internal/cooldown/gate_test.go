package cooldown

import (
	"testing"
	"time"

	"github.com/antoniostano/peek/internal/clock"
)

func TestGateRemainingCountsDown(t *testing.T) {
	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	g := NewGate(c, 30*time.Second)

	if got := g.Remaining("u1"); got != 0 {
		t.Fatalf("Remaining() before any peek = %v, want 0", got)
	}
	g.SetAfterPeek("u1")
	if got := g.Remaining("u1"); got != 30*time.Second {
		t.Fatalf("Remaining() = %v, want 30s", got)
	}
	c.Advance(20 * time.Second)
	if got := g.Remaining("u1"); got != 10*time.Second {
		t.Fatalf("Remaining() = %v, want 10s", got)
	}
	c.Advance(10 * time.Second)
	if got := g.Remaining("u1"); got != 0 {
		t.Fatalf("Remaining() at expiry = %v, want 0", got)
	}
	if got := g.Remaining("u2"); got != 0 {
		t.Fatalf("Remaining() for other actor = %v, want 0", got)
	}
}

func TestGateDisabled(t *testing.T) {
	g := NewGate(clock.Fake(time.Now()), 0)
	g.SetAfterPeek("u1")
	if got := g.Remaining("u1"); got != 0 {
		t.Fatalf("Remaining() = %v, want 0 when disabled", got)
	}
}
