// Package cooldown tracks, per observer, when a new session may start.
package cooldown

import (
	"sync"
	"time"

	"github.com/antoniostano/peek/internal/clock"
	"github.com/antoniostano/peek/internal/host"
)

type Gate struct {
	clock    clock.Clock
	duration time.Duration

	mu      sync.RWMutex
	expires map[host.ActorID]time.Time
}

// NewGate returns a gate applying duration after each session. A
// non-positive duration disables the gate.
func NewGate(c clock.Clock, duration time.Duration) *Gate {
	if c == nil {
		c = clock.Real()
	}
	return &Gate{
		clock:    c,
		duration: duration,
		expires:  make(map[host.ActorID]time.Time),
	}
}

// SetAfterPeek records now+duration for observer.
func (g *Gate) SetAfterPeek(observer host.ActorID) {
	if g.duration <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expires[observer] = g.clock.Now().Add(g.duration)
}

// Remaining is max(0, expiry-now).
func (g *Gate) Remaining(observer host.ActorID) time.Duration {
	g.mu.RLock()
	expiry, ok := g.expires[observer]
	g.mu.RUnlock()
	if !ok {
		return 0
	}
	left := expiry.Sub(g.clock.Now())
	if left <= 0 {
		g.mu.Lock()
		if e, still := g.expires[observer]; still && e.Equal(expiry) {
			delete(g.expires, observer)
		}
		g.mu.Unlock()
		return 0
	}
	return left
}

func (g *Gate) Duration() time.Duration { return g.duration }
