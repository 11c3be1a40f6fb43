package engine

import "errors"

// Validation failures. The service layer maps these onto its wire-level
// reason codes.
var (
	ErrUnknownAction     = errors.New("unknown action type")
	ErrActorEliminated   = errors.New("actor is eliminated")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrForcedCoup        = errors.New("ten or more coins: coup is mandatory")
	ErrMissingTarget     = errors.New("action requires a target")
	ErrUnexpectedTarget  = errors.New("action does not take a target")
	ErrSelfTarget        = errors.New("cannot target yourself")
	ErrTargetEliminated  = errors.New("target is eliminated")
	ErrInvalidSeat       = errors.New("seat out of range")
	ErrNoUpgrade         = errors.New("action has no upgrade")
)

// Validate checks an intent against the rule table and the current state.
// Phase gating is the service layer's concern; this covers everything a
// pure rules check can see.
func (g *State) Validate(in Intent) error {
	if in.Action >= NumActionTypes {
		return ErrUnknownAction
	}
	if in.Actor >= g.NumPlayers {
		return ErrInvalidSeat
	}
	actor := &g.Players[in.Actor]
	if !actor.Alive() {
		return ErrActorEliminated
	}
	if actor.Coins >= ForcedCoupThreshold && in.Action != Coup {
		return ErrForcedCoup
	}

	spec := Specs[in.Action]
	if in.Upgraded && spec.UpgradeCost == 0 {
		return ErrNoUpgrade
	}
	if int(actor.Coins) < TotalCost(in.Action, in.Upgraded) {
		return ErrInsufficientCoins
	}

	if spec.Targeted {
		if in.Target == SeatNone {
			return ErrMissingTarget
		}
		if in.Target >= g.NumPlayers {
			return ErrInvalidSeat
		}
		if in.Target == in.Actor {
			return ErrSelfTarget
		}
		if !g.Players[in.Target].Alive() {
			return ErrTargetEliminated
		}
	} else if in.Target != SeatNone {
		return ErrUnexpectedTarget
	}
	return nil
}
