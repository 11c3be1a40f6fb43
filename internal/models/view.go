package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerView is one seat as seen by a specific observer. Hand contents
// appear only on the observer's own entry.
type PlayerView struct {
	PlayerID    uuid.UUID `json:"playerId"`
	Seat        uint8     `json:"seat"`
	DisplayName string    `json:"displayName"`
	Coins       int       `json:"coins"`
	HandSize    int       `json:"handSize"`
	Revealed    []string  `json:"revealed"`
	Alive       bool      `json:"alive"`
	// MyCards is populated only for the requesting player.
	MyCards []string `json:"myCards,omitempty"`
}

// PendingActionView is a public ledger entry, exposed once the action
// phase has locked.
type PendingActionView struct {
	Seat     uint8  `json:"seat"`
	Action   string `json:"action"`
	Target   *uint8 `json:"target,omitempty"`
	Upgraded bool   `json:"upgraded,omitempty"`
	Visible  bool   `json:"visible"`
}

// PendingReactionView is a public reaction entry, exposed once the
// reaction phase has locked.
type PendingReactionView struct {
	Reactor  uint8  `json:"reactor"`
	Claimant uint8  `json:"claimant"`
	Kind     string `json:"kind"`
	Role     string `json:"role,omitempty"`
}

// SessionView is the observer-tailored snapshot returned by
// GetSessionState. It never leaks another player's hidden hand.
type SessionView struct {
	SessionID   uuid.UUID             `json:"sessionId"`
	Phase       Phase                 `json:"phase"`
	Turn        uint32                `json:"turn"`
	PhaseEndsAt time.Time             `json:"phaseEndsAt"`
	DeckSize    int                   `json:"deckSize"`
	Players     []PlayerView          `json:"players"`
	Actions     []PendingActionView   `json:"actions,omitempty"`
	Reactions   []PendingReactionView `json:"reactions,omitempty"`
	Winners     []uuid.UUID           `json:"winners,omitempty"`
}
