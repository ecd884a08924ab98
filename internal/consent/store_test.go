package consent

import (
	"testing"
	"time"

	"github.com/antoniostano/peek/internal/clock"
)

func TestToggle(t *testing.T) {
	s := NewStore(clock.Fake(time.Now()), time.Minute)
	if s.IsPrivate("u1") {
		t.Fatalf("IsPrivate() = true by default")
	}
	if !s.Toggle("u1") || !s.IsPrivate("u1") {
		t.Fatalf("first Toggle() should enable private mode")
	}
	if s.Toggle("u1") || s.IsPrivate("u1") {
		t.Fatalf("second Toggle() should disable private mode")
	}
}

func TestRequestLastWriterWins(t *testing.T) {
	s := NewStore(clock.Fake(time.Now()), time.Minute)
	if _, replaced := s.Request("a", "subject"); replaced {
		t.Fatalf("first Request() replaced = true")
	}
	prev, replaced := s.Request("b", "subject")
	if !replaced || prev.Observer != "a" {
		t.Fatalf("second Request() = %+v, %v; want replacement of a", prev, replaced)
	}

	req, ok := s.Take("subject")
	if !ok || req.Observer != "b" {
		t.Fatalf("Take() = %+v, %v; want observer b", req, ok)
	}
	if _, ok := s.Take("subject"); ok {
		t.Fatalf("Take() twice returned a request")
	}
}

func TestRequestExpires(t *testing.T) {
	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewStore(c, time.Minute)
	s.Request("a", "subject")

	c.Advance(59 * time.Second)
	if _, ok := s.Pending("subject"); !ok {
		t.Fatalf("Pending() = false before expiry")
	}
	c.Advance(time.Second)
	if _, ok := s.Take("subject"); ok {
		t.Fatalf("Take() returned an expired request")
	}
}

func TestDropActor(t *testing.T) {
	s := NewStore(clock.Fake(time.Now()), 0)
	s.Request("a", "s1")
	s.Request("b", "a")
	s.Request("c", "s2")

	dropped := s.DropActor("a")
	if len(dropped) != 2 {
		t.Fatalf("DropActor() dropped %d, want 2", len(dropped))
	}
	if _, ok := s.Pending("s2"); !ok {
		t.Fatalf("unrelated request was dropped")
	}
}
