// Package models defines the persistence-facing records shared by the
// store, the cache and the game service.
package models

import (
	"time"

	"github.com/google/uuid"

	"slowcoup/engine"
)

// Phase is the session's position in the turn cycle. Stored as text.
type Phase string

const (
	PhaseWaiting         Phase = "WAITING"
	PhaseAction          Phase = "ACTION_PHASE"
	PhaseActionLockout   Phase = "ACTION_LOCKOUT"
	PhaseReaction        Phase = "REACTION_PHASE"
	PhaseReactionLockout Phase = "REACTION_LOCKOUT"
	PhaseAwaitingChoices Phase = "AWAITING_CHOICES"
	PhaseBroadcast       Phase = "BROADCAST"
	PhaseEnding          Phase = "ENDING"
	PhaseCompleted       Phase = "COMPLETED"
	PhaseCancelled       Phase = "CANCELLED"
)

// Terminal reports whether no further transition can leave the phase.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// PhaseDurations carries the per-session wall-clock windows. Zero values
// are replaced by the configured defaults at session creation.
type PhaseDurations struct {
	Action    time.Duration
	Reaction  time.Duration
	Choices   time.Duration
	Broadcast time.Duration
	Ending    time.Duration
}

// MaxRematches bounds how often an ENDING session can be restarted.
const MaxRematches = 3

// GameSession is the authoritative session row. Version implements
// optimistic locking: every update must carry the version it read.
type GameSession struct {
	ID          uuid.UUID
	HostID      uuid.UUID
	Phase       Phase
	Turn        uint32
	TurnLimit   uint32
	PhaseEndsAt time.Time
	Durations   PhaseDurations

	// Deck and RNG state persist between resolutions so a replayed
	// resolution shuffles identically.
	DeckState []engine.CardType
	RNGState  uint64

	Winners      []uuid.UUID
	RematchCount int
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the session is in live play.
func (s *GameSession) Active() bool {
	return s.Phase != PhaseWaiting && !s.Phase.Terminal()
}
