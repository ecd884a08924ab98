// Package journal persists in-flight session snapshots so that sessions
// interrupted by an abrupt stop can be restored when the observer returns.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/antoniostano/peek/internal/host"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the restart-surviving copy of a session's restoration data,
// keyed by observer.
type Snapshot struct {
	Observer  host.ActorID  `json:"observer"`
	Subject   host.ActorID  `json:"subject"`
	SessionID string        `json:"session_id"`
	Location  host.Location `json:"original_location"`
	Mode      host.Mode     `json:"original_mode"`
	StartedAt time.Time     `json:"started_at"`
}

// Store is an overwrite-by-key snapshot store. Put replaces any snapshot
// for the same observer; Delete of a missing key is not an error.
type Store interface {
	Put(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, observer host.ActorID) (Snapshot, error)
	Delete(ctx context.Context, observer host.ActorID) error
	List(ctx context.Context) ([]Snapshot, error)
	Close() error
}
