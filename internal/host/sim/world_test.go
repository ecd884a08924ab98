package sim

import (
	"testing"
	"time"

	"github.com/antoniostano/peek/internal/host"
)

func TestJoinResolveQuit(t *testing.T) {
	w := New(Options{Inline: true, Worlds: []string{"overworld"}})
	loc := host.Location{World: "overworld", X: 1, Y: 64, Z: 1}
	if err := w.Join("u1", "Alice", &loc, host.ModeSurvival); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	a, ok := w.ResolveOnline("alice")
	if !ok || a.ID != "u1" {
		t.Fatalf("ResolveOnline(alice) = %+v, %v", a, ok)
	}
	if err := w.Quit("u1"); err != nil {
		t.Fatalf("Quit() error = %v", err)
	}
	if _, ok := w.ResolveOnline("Alice"); ok {
		t.Fatalf("offline actor resolved")
	}
	got, _ := w.Location("u1")
	if got != loc {
		t.Fatalf("Location() = %+v, want %+v retained after quit", got, loc)
	}
}

func TestRelocateInlineAndFailureInjection(t *testing.T) {
	w := New(Options{Inline: true, Worlds: []string{"overworld", "nether"}})
	start := host.Location{World: "overworld"}
	_ = w.Join("u1", "Alice", &start, host.ModeSurvival)

	dest := host.Location{World: "nether", X: 10}
	var result *bool
	w.Relocate("u1", dest, func(ok bool) { result = &ok })
	if result == nil || !*result {
		t.Fatalf("Relocate() result = %v, want true", result)
	}
	if got, _ := w.Location("u1"); got != dest {
		t.Fatalf("Location() = %+v, want %+v", got, dest)
	}

	w.FailRelocations("u1", 1)
	result = nil
	w.Relocate("u1", start, func(ok bool) { result = &ok })
	if result == nil || *result {
		t.Fatalf("Relocate() with injected failure = %v, want false", result)
	}
	if got, _ := w.Location("u1"); got != dest {
		t.Fatalf("failed relocation moved actor to %+v", got)
	}

	result = nil
	w.Relocate("u1", host.Location{World: "void"}, func(ok bool) { result = &ok })
	if result == nil || *result {
		t.Fatalf("relocation into unknown world = %v, want false", result)
	}
}

func TestRelocateAsyncCompletesOnRegion(t *testing.T) {
	w := New(Options{Worlds: []string{"overworld"}})
	defer w.Close()
	start := host.Location{World: "overworld"}
	_ = w.Join("u1", "Alice", &start, host.ModeSurvival)

	done := make(chan bool, 1)
	w.Relocate("u1", host.Location{World: "overworld", X: 5}, func(ok bool) { done <- ok })
	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("Relocate() = false, want true")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relocation never completed")
	}
}

func TestRunOnActorRetiredWhenOffline(t *testing.T) {
	w := New(Options{Inline: true})
	retired := false
	w.RunOnActor("ghost", func() { t.Fatalf("fn ran for unknown actor") }, func() { retired = true })
	if !retired {
		t.Fatalf("retired callback not invoked")
	}
}

func TestNotificationsOnlyReachOnlineActors(t *testing.T) {
	w := New(Options{Inline: true})
	_ = w.Join("u1", "Alice", nil, "")
	ch, cancel := w.Subscribe("u1")
	defer cancel()

	w.SendMessage("u1", "hello")
	select {
	case n := <-ch:
		if n.Kind != KindMessage || n.Text != "hello" {
			t.Fatalf("notification = %+v", n)
		}
	default:
		t.Fatalf("no notification delivered")
	}

	_ = w.Quit("u1")
	w.SendMessage("u1", "dropped")
	if got := w.Messages("u1"); len(got) != 1 {
		t.Fatalf("Messages() = %v, want only the online delivery", got)
	}
}
