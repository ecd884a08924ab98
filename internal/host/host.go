// Package host defines what the lifecycle controller needs from the world
// host that owns actors, their positions and their observation modes.
package host

import (
	"fmt"
	"strings"
)

// ActorID is the stable identity of an actor. It survives reconnects and
// is what registries and journals are keyed by.
type ActorID string

// Actor is an online actor as resolved by name.
type Actor struct {
	ID   ActorID `json:"id"`
	Name string  `json:"name"`
}

// Location is a position inside a world. Worlds are the partitions that
// own scheduling: two locations share a context only if World matches.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

func (l Location) SamePartition(other Location) bool {
	return l.World == other.World
}

func (l Location) String() string {
	return fmt.Sprintf("world=%s, x=%.2f, y=%.2f, z=%.2f", l.World, l.X, l.Y, l.Z)
}

// Mode is an actor's observation/interaction mode.
type Mode string

const (
	ModeSurvival  Mode = "survival"
	ModeCreative  Mode = "creative"
	ModeAdventure Mode = "adventure"
	ModeSpectator Mode = "spectator"
)

func ParseMode(v string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(v))) {
	case ModeSurvival:
		return ModeSurvival, nil
	case ModeCreative:
		return ModeCreative, nil
	case ModeAdventure:
		return ModeAdventure, nil
	case ModeSpectator:
		return ModeSpectator, nil
	default:
		return "", fmt.Errorf("unknown mode %q", v)
	}
}

// World is the host surface consumed by the lifecycle controller.
//
// RunOnRegion and RunOnActor are asynchronous: fn runs later on the
// context that owns the location (or the actor's current location), and
// callers must re-validate presence once it runs. Relocate completes by
// calling done exactly once, from an unspecified context.
type World interface {
	ResolveOnline(name string) (Actor, bool)
	Name(id ActorID) string
	IsOnline(id ActorID) bool
	Location(id ActorID) (Location, bool)
	Mode(id ActorID) (Mode, bool)
	HasPermission(id ActorID, node string) bool
	OnlineNames() []string

	SetMode(id ActorID, mode Mode) error
	Relocate(id ActorID, to Location, done func(ok bool))
	RunOnRegion(loc Location, fn func())
	// RunOnActor runs fn on the actor's owning context, or retired if the
	// actor is gone by the time the task would run.
	RunOnActor(id ActorID, fn func(), retired func())
}

// Messenger delivers rendered text and cues to an actor. Delivery to an
// offline actor is dropped silently.
type Messenger interface {
	SendMessage(id ActorID, text string)
	SendActionBar(id ActorID, text string)
	PlaySound(id ActorID, sound string)
}
