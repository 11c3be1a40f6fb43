package game

import (
	"errors"
	"fmt"

	"slowcoup/engine"
)

// Reason codes surfaced with every ValidationError.
const (
	CodePhaseMismatch     = "phase_mismatch"
	CodeInsufficientCoins = "insufficient_coins"
	CodeForcedCoup        = "forced_coup_required"
	CodeInvalidTarget     = "invalid_target"
	CodeInvalidAction     = "invalid_action"
	CodeInvalidReaction   = "invalid_reaction"
	CodeDuplicateReveal   = "duplicate_reveal"
	CodeNotInSession      = "not_in_session"
	CodeSessionFull       = "session_full"
	CodeNotHost           = "not_host"
	CodeTooFewPlayers     = "too_few_players"
	CodeRematchLimit      = "rematch_limit"
	CodeRoleMismatch      = "role_mismatch"
)

// ValidationError rejects a submission synchronously. Never retried.
type ValidationError struct {
	Code string
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func validationf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// ErrDeckUnderflow signals a broken card-conservation invariant. It is
// logged as fatal for the session; play cannot continue past it.
var ErrDeckUnderflow = errors.New("deck underflow")

// engineValidation maps a rules-core rejection onto a wire reason code.
func engineValidation(err error) *ValidationError {
	code := CodeInvalidAction
	switch {
	case errors.Is(err, engine.ErrForcedCoup):
		code = CodeForcedCoup
	case errors.Is(err, engine.ErrInsufficientCoins):
		code = CodeInsufficientCoins
	case errors.Is(err, engine.ErrMissingTarget),
		errors.Is(err, engine.ErrUnexpectedTarget),
		errors.Is(err, engine.ErrSelfTarget),
		errors.Is(err, engine.ErrTargetEliminated),
		errors.Is(err, engine.ErrInvalidSeat):
		code = CodeInvalidTarget
	}
	return &ValidationError{Code: code, Msg: err.Error()}
}
