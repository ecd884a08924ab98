package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// fakeSource is the part of clockwork's fake clock used here.
type fakeSource interface {
	clockwork.Clock
	Advance(d time.Duration)
}

// FakeClock only moves when Advance is called. Advance returns after every
// callback it made due has finished, so tests observe their effects
// without sleeping. Callbacks must not call Advance.
type FakeClock struct {
	inner fakeSource

	mu      sync.Mutex
	armed   map[*fakeTimer]struct{}
	running sync.WaitGroup
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	inner    clockwork.Timer
	// due is set by Advance and owes one running.Done.
	due bool
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{
		inner: clockwork.NewFakeClockAt(initial),
		armed: make(map[*fakeTimer]struct{}),
	}
}

func (c *FakeClock) Now() time.Time { return c.inner.Now() }

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	if d <= 0 {
		f()
		return &fakeTimer{clock: c}
	}
	t := &fakeTimer{clock: c, deadline: c.inner.Now().Add(d)}
	c.mu.Lock()
	c.armed[t] = struct{}{}
	c.mu.Unlock()
	inner := c.inner.AfterFunc(d, func() { c.fire(t, f) })
	c.mu.Lock()
	t.inner = inner
	c.mu.Unlock()
	return t
}

func (c *FakeClock) fire(t *fakeTimer, f func()) {
	c.mu.Lock()
	_, live := c.armed[t]
	delete(c.armed, t)
	due := t.due
	t.due = false
	c.mu.Unlock()

	if live {
		f()
	}
	if due {
		c.running.Done()
	}
}

// Advance moves the clock forward by d and waits for every callback whose
// deadline has been reached.
func (c *FakeClock) Advance(d time.Duration) {
	target := c.inner.Now().Add(d)
	c.mu.Lock()
	for t := range c.armed {
		if !t.due && !t.deadline.After(target) {
			t.due = true
			c.running.Add(1)
		}
	}
	c.mu.Unlock()

	c.inner.Advance(d)
	c.running.Wait()
}

// Pending returns the number of armed, unstopped callbacks.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.armed)
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	_, live := c.armed[t]
	inner := t.inner
	c.mu.Unlock()
	if !live || inner == nil {
		return false
	}
	if !inner.Stop() {
		return false
	}

	c.mu.Lock()
	delete(c.armed, t)
	owed := t.due
	t.due = false
	c.mu.Unlock()
	if owed {
		c.running.Done()
	}
	return true
}
