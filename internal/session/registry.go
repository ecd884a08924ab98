package session

import (
	"sort"

	"github.com/antoniostano/peek/internal/clock"
	"github.com/antoniostano/peek/internal/host"
)

// entry owns a registered session and its max-duration timer, so that
// removing the entry and cancelling the timer happen together.
type entry struct {
	session *Session
	timer   clock.Timer
}

// registry maps observer to entry. It is only touched from the
// controller's queue and needs no locking.
type registry map[host.ActorID]*entry

func (r registry) lookup(observer host.ActorID) (*entry, bool) {
	e, ok := r[observer]
	return e, ok
}

// current returns the entry for observer only if it still holds the
// session with id. Timer and relocation callbacks use it to ignore
// sessions that were replaced.
func (r registry) current(observer host.ActorID, id string) (*entry, bool) {
	e, ok := r[observer]
	if !ok || e.session.ID != id {
		return nil, false
	}
	return e, true
}

func (r registry) remove(observer host.ActorID) {
	e, ok := r[observer]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(r, observer)
}

func (r registry) isObserver(actor host.ActorID) bool {
	_, ok := r[actor]
	return ok
}

// observersOf returns the observers watching subject, sorted for stable
// iteration.
func (r registry) observersOf(subject host.ActorID) []host.ActorID {
	var out []host.ActorID
	for observer, e := range r {
		if e.session.Subject == subject {
			out = append(out, observer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r registry) infos() []Info {
	out := make([]Info, 0, len(r))
	for _, e := range r {
		out = append(out, e.session.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
