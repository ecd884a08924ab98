package messages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogHasLifecycleKeys(t *testing.T) {
	c := Default()
	keys := []string{
		"already-peeking", "player-not-found", "cannot-peek-self", "target-is-peeking", "being-peeked-busy",
		"peek-start", "being-peeked", "peek-end", "peek-end-target", "time-expired",
		"teleport-failed", "not-peeking", "stats-self", "on-cooldown", "awaiting-consent",
	}
	for _, key := range keys {
		if !c.Has(key) {
			t.Fatalf("default catalog missing %q", key)
		}
	}
}

func TestRenderSubstitutesPairs(t *testing.T) {
	c, err := Parse([]byte("prefix: \"[P] \"\nmessages:\n  hi: \"hello {player}, {count} left\"\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got, ok := c.Render("hi", "player", "Alice", "count", "3", "dangling")
	if !ok {
		t.Fatalf("Render() ok = false")
	}
	if got != "[P] hello Alice, 3 left" {
		t.Fatalf("Render() = %q", got)
	}
	plain, _ := c.Plain("hi", "player", "Bob")
	if plain != "hello Bob, {count} left" {
		t.Fatalf("Plain() = %q", plain)
	}
	if _, ok := c.Render("missing"); ok {
		t.Fatalf("Render(missing) ok = true, want false")
	}
}

func TestLoadOverlaysAndDisables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yml")
	body := "messages:\n  peek-end: \"bye\"\n  being-peeked: \"\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write override: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, ok := c.Render("peek-end")
	if !ok || !strings.HasSuffix(got, "bye") {
		t.Fatalf("Render(peek-end) = %q, %v", got, ok)
	}
	if c.Has("being-peeked") {
		t.Fatalf("being-peeked should be disabled by empty override")
	}
	if !c.Has("peek-start") {
		t.Fatalf("peek-start should still come from the embedded catalog")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatalf("Load() error = nil, want error for missing file")
	}
}
