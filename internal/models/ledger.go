package models

import (
	"time"

	"github.com/google/uuid"

	"slowcoup/engine"
)

// ActionRow is one ledger entry: the single pending action of a seat for
// a turn. Overwritable by the same seat until the lockout flips Locked.
type ActionRow struct {
	SessionID   uuid.UUID
	Turn        uint32
	Seat        uint8
	Action      engine.ActionType
	TargetSeat  uint8 // engine.SeatNone when untargeted
	Upgraded    bool
	SubmittedAt time.Time
	Locked      bool
}

// ReactionRow is one reaction-ledger entry, keyed by
// (session, turn, reactor, claimant, action).
type ReactionRow struct {
	SessionID    uuid.UUID
	Turn         uint32
	ReactorSeat  uint8
	ClaimantSeat uint8
	Action       engine.ActionType
	Kind         engine.ReactionType
	Role         engine.CardType // claimed blocking role; EmptyCard otherwise
	SubmittedAt  time.Time
	Locked       bool
}

// ChoiceRow is a card selection submitted ahead of resolution.
type ChoiceRow struct {
	SessionID   uuid.UUID
	Turn        uint32
	Seat        uint8
	Kind        engine.ChoiceKind
	Cards       []engine.CardType
	SubmittedAt time.Time
}

// TurnResultRow wraps the immutable engine result for storage, keyed by
// (session, turn). Its existence is the resolution idempotence marker.
type TurnResultRow struct {
	SessionID uuid.UUID
	Turn      uint32
	Result    engine.TurnResult
	CreatedAt time.Time
}
