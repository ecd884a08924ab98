// Package clock abstracts time so that session timeouts, cooldowns and
// consent expiry can be driven deterministically in tests. It is a thin
// layer over clockwork.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source used by the lifecycle components.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed. The returned Timer can cancel
	// the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback. clockwork.Timer satisfies it.
type Timer interface {
	// Stop prevents the callback from running. It reports false when the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

type realClock struct {
	inner clockwork.Clock
}

// Real returns a Clock backed by the system clock.
func Real() Clock { return realClock{inner: clockwork.NewRealClock()} }

func (c realClock) Now() time.Time { return c.inner.Now().UTC() }

func (c realClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.inner.AfterFunc(d, f)
}
