// Package sim is an in-process world host. Each world is its own
// scheduling partition backed by a dispatch.Queue; relocation completes
// asynchronously on the destination partition.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/peek/internal/dispatch"
	"github.com/antoniostano/peek/internal/host"
	"github.com/antoniostano/peek/internal/policy"
)

var ErrUnknownActor = errors.New("unknown actor")

const historyLimit = 128

type Options struct {
	// Inline runs region tasks and relocation completions synchronously on
	// the caller's goroutine. Used for deterministic tests.
	Inline bool
	// Worlds are created up front; relocation into an unknown world fails.
	Worlds []string
}

type actor struct {
	id     host.ActorID
	name   string
	loc    host.Location
	mode   host.Mode
	perms  []string
	online bool
}

type World struct {
	inline bool

	mu       sync.RWMutex
	actors   map[host.ActorID]*actor
	byName   map[string]host.ActorID
	worlds   map[string]bool
	regions  map[string]*dispatch.Queue
	failNext map[host.ActorID]int
	history  map[host.ActorID][]Notification
	subs     map[host.ActorID]map[int]chan Notification
	nextSub  int
	closed   bool
}

func New(opts Options) *World {
	w := &World{
		inline:   opts.Inline,
		actors:   make(map[host.ActorID]*actor),
		byName:   make(map[string]host.ActorID),
		worlds:   make(map[string]bool),
		regions:  make(map[string]*dispatch.Queue),
		failNext: make(map[host.ActorID]int),
		history:  make(map[host.ActorID][]Notification),
		subs:     make(map[host.ActorID]map[int]chan Notification),
	}
	for _, name := range opts.Worlds {
		w.worlds[name] = true
	}
	return w
}

// AddWorld registers a world partition.
func (w *World) AddWorld(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.worlds[name] = true
}

// Join brings an actor online, creating it on first sight. A returning
// actor keeps its last known location and mode unless loc is non-nil.
func (w *World) Join(id host.ActorID, name string, loc *host.Location, mode host.Mode, perms ...string) error {
	id = host.ActorID(strings.TrimSpace(string(id)))
	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		return errors.New("actor id and name are required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	a, ok := w.actors[id]
	if !ok {
		a = &actor{id: id, mode: host.ModeSurvival}
		w.actors[id] = a
	}
	if a.name != "" && !strings.EqualFold(a.name, name) {
		delete(w.byName, strings.ToLower(a.name))
	}
	a.name = name
	a.online = true
	if loc != nil {
		a.loc = *loc
		w.worlds[loc.World] = true
	}
	if mode != "" {
		a.mode = mode
	}
	if perms != nil {
		a.perms = append([]string(nil), perms...)
	}
	w.byName[strings.ToLower(name)] = id
	return nil
}

// Quit takes an actor offline. State is kept for a later Join.
func (w *World) Quit(id host.ActorID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok {
		return ErrUnknownActor
	}
	a.online = false
	return nil
}

// Move teleports an actor synchronously, outside of any session.
func (w *World) Move(id host.ActorID, loc host.Location) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok {
		return ErrUnknownActor
	}
	a.loc = loc
	w.worlds[loc.World] = true
	return nil
}

func (w *World) SetPermissions(id host.ActorID, perms ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok {
		return ErrUnknownActor
	}
	a.perms = append([]string(nil), perms...)
	return nil
}

// FailRelocations makes the next n relocations of id report failure.
func (w *World) FailRelocations(id host.ActorID, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failNext[id] = n
}

func (w *World) ResolveOnline(name string) (host.Actor, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return host.Actor{}, false
	}
	a := w.actors[id]
	if a == nil || !a.online {
		return host.Actor{}, false
	}
	return host.Actor{ID: a.id, Name: a.name}, true
}

func (w *World) Name(id host.ActorID) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if a, ok := w.actors[id]; ok {
		return a.name
	}
	return string(id)
}

func (w *World) IsOnline(id host.ActorID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	return ok && a.online
}

func (w *World) Location(id host.ActorID) (host.Location, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	if !ok {
		return host.Location{}, false
	}
	return a.loc, true
}

func (w *World) Mode(id host.ActorID) (host.Mode, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	if !ok {
		return "", false
	}
	return a.mode, true
}

func (w *World) HasPermission(id host.ActorID, node string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	if !ok {
		return false
	}
	return policy.Allows(a.perms, node)
}

func (w *World) OnlineNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.actors))
	for _, a := range w.actors {
		if a.online {
			out = append(out, a.name)
		}
	}
	sort.Strings(out)
	return out
}

func (w *World) SetMode(id host.ActorID, mode host.Mode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok || !a.online {
		return fmt.Errorf("set mode for %s: %w", id, ErrUnknownActor)
	}
	a.mode = mode
	return nil
}

func (w *World) Relocate(id host.ActorID, to host.Location, done func(ok bool)) {
	w.RunOnRegion(to, func() {
		done(w.relocateNow(id, to))
	})
}

func (w *World) relocateNow(id host.ActorID, to host.Location) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok || !a.online || !w.worlds[to.World] {
		return false
	}
	if n := w.failNext[id]; n > 0 {
		w.failNext[id] = n - 1
		return false
	}
	a.loc = to
	return true
}

func (w *World) RunOnRegion(loc host.Location, fn func()) {
	if w.inline {
		fn()
		return
	}
	q := w.region(loc.World)
	if q == nil {
		return
	}
	q.Submit(fn)
}

func (w *World) RunOnActor(id host.ActorID, fn func(), retired func()) {
	loc, ok := w.Location(id)
	if !ok || !w.IsOnline(id) {
		if retired != nil {
			retired()
		}
		return
	}
	w.RunOnRegion(loc, func() {
		if !w.IsOnline(id) {
			if retired != nil {
				retired()
			}
			return
		}
		fn()
	})
}

func (w *World) region(name string) *dispatch.Queue {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	q, ok := w.regions[name]
	if !ok {
		q = dispatch.NewQueue("region:" + name)
		w.regions[name] = q
	}
	return q
}

// Close stops every region queue after draining queued work.
func (w *World) Close() {
	w.mu.Lock()
	w.closed = true
	regions := make([]*dispatch.Queue, 0, len(w.regions))
	for _, q := range w.regions {
		regions = append(regions, q)
	}
	w.mu.Unlock()

	for _, q := range regions {
		q.Close()
	}
	for _, q := range regions {
		select {
		case <-q.Done():
		case <-time.After(5 * time.Second):
		}
	}
}
