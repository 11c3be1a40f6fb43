package models

import (
	"time"

	"github.com/google/uuid"

	"slowcoup/engine"
)

// Player is one seat in a session. Seat order doubles as the roster
// order used for reaction tie-breaks.
type Player struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Seat        uint8
	DisplayName string

	Coins    int
	Hand     []engine.CardType
	Revealed []engine.CardType
	Alive    bool

	JoinedAt time.Time
}

// HandHas reports whether the hidden hand contains the given role.
func (p *Player) HandHas(role engine.CardType) bool {
	for _, c := range p.Hand {
		if c == role {
			return true
		}
	}
	return false
}
