package session

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/antoniostano/peek/internal/host"
)

var (
	ErrClosed = errors.New("session controller is shut down")
	// ErrIncomplete means the operation panicked on the registry queue.
	ErrIncomplete = errors.New("operation did not complete")
)

// Outcome is the result vocabulary of controller operations. Outcomes are
// values, not errors: a rejected start is a normal result.
type Outcome string

const (
	OutcomeStarted          Outcome = "started"
	OutcomeAlreadyActive    Outcome = "already_active"
	OutcomeTargetNotFound   Outcome = "target_not_found"
	OutcomeSelfTarget       Outcome = "self_target"
	OutcomeTargetBusy       Outcome = "target_busy"
	OutcomeObserverWatched  Outcome = "observer_watched"
	OutcomeTargetProtected  Outcome = "target_protected"
	OutcomeOnCooldown       Outcome = "on_cooldown"
	OutcomeAwaitingConsent  Outcome = "awaiting_consent"
	OutcomeObserverOffline  Outcome = "observer_offline"
	OutcomeExited           Outcome = "exited"
	OutcomeNotActive        Outcome = "not_active"
	OutcomeAlreadyExiting   Outcome = "already_exiting"
	OutcomeNoPendingRequest Outcome = "no_pending_request"
	OutcomeRequesterOffline Outcome = "requester_offline"
	OutcomeDenied           Outcome = "denied"
	OutcomePrivacyEnabled   Outcome = "privacy_enabled"
	OutcomePrivacyDisabled  Outcome = "privacy_disabled"
)

// Reason is what triggered a teardown.
type Reason string

const (
	ReasonCommand     Reason = "command"
	ReasonTimeout     Reason = "timeout"
	ReasonDisconnect  Reason = "disconnect"
	ReasonSubjectLeft Reason = "subject_left"
	ReasonShutdown    Reason = "shutdown"
)

// keepsSnapshot reports whether the journal entry must survive the
// teardown. Disconnect and shutdown restorations may not complete, so the
// observer is restored again from the journal on next join.
func (r Reason) keepsSnapshot() bool {
	return r == ReasonDisconnect || r == ReasonShutdown
}

// Result is returned by every controller operation.
type Result struct {
	Outcome   Outcome       `json:"outcome"`
	Observer  host.ActorID  `json:"observer,omitempty"`
	Subject   host.ActorID  `json:"subject,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Remaining time.Duration `json:"remaining,omitempty"`
}

// State is a session's position in its lifecycle. Transitions only move
// forward: Active, then Exiting, then Closed.
type State int32

const (
	StateActive State = iota
	StateExiting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExiting:
		return "exiting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one observer watching one subject.
type Session struct {
	ID               string
	Observer         host.ActorID
	Subject          host.ActorID
	OriginalLocation host.Location
	OriginalMode     host.Mode
	StartedAt        time.Time

	state      atomic.Int32
	spectating bool
}

func (s *Session) State() State { return State(s.state.Load()) }

// beginExit is the exiting latch. Exactly one caller wins.
func (s *Session) beginExit() bool {
	return s.state.CompareAndSwap(int32(StateActive), int32(StateExiting))
}

func (s *Session) close() { s.state.Store(int32(StateClosed)) }

// Info is a read-only view of a registered session.
type Info struct {
	ID               string        `json:"session_id"`
	Observer         host.ActorID  `json:"observer"`
	Subject          host.ActorID  `json:"subject"`
	OriginalLocation host.Location `json:"original_location"`
	OriginalMode     host.Mode     `json:"original_mode"`
	StartedAt        time.Time     `json:"started_at"`
	State            string        `json:"state"`
	Spectating       bool          `json:"spectating"`
}

func (s *Session) info() Info {
	return Info{
		ID:               s.ID,
		Observer:         s.Observer,
		Subject:          s.Subject,
		OriginalLocation: s.OriginalLocation,
		OriginalMode:     s.OriginalMode,
		StartedAt:        s.StartedAt,
		State:            s.State().String(),
		Spectating:       s.spectating,
	}
}

// EventType names lifecycle transitions reported to a Listener.
type EventType string

const (
	EventSpectating       EventType = "spectating"
	EventRelocationFailed EventType = "relocation_failed"
	EventClosed           EventType = "closed"
	EventRestored         EventType = "restored"
	EventRestoreFailed    EventType = "restore_failed"
	EventRecovered        EventType = "recovered"
)

type Event struct {
	Type      EventType    `json:"type"`
	SessionID string       `json:"session_id,omitempty"`
	Observer  host.ActorID `json:"observer"`
	Subject   host.ActorID `json:"subject,omitempty"`
	Reason    Reason       `json:"reason,omitempty"`
	At        time.Time    `json:"at"`
}

// Listener receives lifecycle events on the controller's queue. It must
// not call back into the controller synchronously.
type Listener func(Event)
