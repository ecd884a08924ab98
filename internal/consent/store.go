// Package consent holds per-subject privacy flags and the single pending
// peek request each private subject may have.
package consent

import (
	"sync"
	"time"

	"github.com/antoniostano/peek/internal/clock"
	"github.com/antoniostano/peek/internal/host"
)

// Request is an observer waiting for a private subject's decision.
type Request struct {
	Observer  host.ActorID `json:"observer"`
	Subject   host.ActorID `json:"subject"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
}

func (r Request) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

type Store struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	private map[host.ActorID]bool
	pending map[host.ActorID]Request
}

// NewStore returns a consent store whose requests expire after ttl. A
// non-positive ttl keeps requests until they are consumed.
func NewStore(c clock.Clock, ttl time.Duration) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{
		clock:   c,
		ttl:     ttl,
		private: make(map[host.ActorID]bool),
		pending: make(map[host.ActorID]Request),
	}
}

// Toggle flips actor's private mode and returns the new value.
func (s *Store) Toggle(actor host.ActorID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := !s.private[actor]
	if next {
		s.private[actor] = true
	} else {
		delete(s.private, actor)
		delete(s.pending, actor)
	}
	return next
}

func (s *Store) IsPrivate(actor host.ActorID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.private[actor]
}

// Request records observer as waiting on subject, replacing any earlier
// request for that subject. The replaced request, if any, is returned.
func (s *Store) Request(observer, subject host.ActorID) (Request, bool) {
	now := s.clock.Now()
	req := Request{Observer: observer, Subject: subject, CreatedAt: now}
	if s.ttl > 0 {
		req.ExpiresAt = now.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.pending[subject]
	s.pending[subject] = req
	if had && (prev.Observer == observer || prev.expired(now)) {
		had = false
	}
	return prev, had
}

// Take consumes the pending request for subject. Expired requests are
// discarded and reported as absent.
func (s *Store) Take(subject host.ActorID) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[subject]
	if !ok {
		return Request{}, false
	}
	delete(s.pending, subject)
	if req.expired(s.clock.Now()) {
		return Request{}, false
	}
	return req, true
}

// Pending reports the live request for subject without consuming it.
func (s *Store) Pending(subject host.ActorID) (Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.pending[subject]
	if !ok || req.expired(s.clock.Now()) {
		return Request{}, false
	}
	return req, true
}

// DropActor removes every request where actor is the observer or the
// subject, returning them.
func (s *Store) DropActor(actor host.ActorID) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped []Request
	for subject, req := range s.pending {
		if subject == actor || req.Observer == actor {
			dropped = append(dropped, req)
			delete(s.pending, subject)
		}
	}
	return dropped
}
