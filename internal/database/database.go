// Package database owns durable session state. The Store interface is
// implemented by Postgres for production and by Memory for tests; both
// share the same conflict and idempotence semantics.
package database

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"slowcoup/internal/models"
)

var (
	// ErrNotFound is returned for any missing primary-key read.
	ErrNotFound = errors.New("database: not found")
	// ErrConflict is returned when an optimistic version check fails.
	ErrConflict = errors.New("database: version conflict")
	// ErrAlreadyResolved is returned by SaveResolution when a result for
	// the same (session, turn) already exists.
	ErrAlreadyResolved = errors.New("database: turn already resolved")
)

// ResolutionWrite is everything one turn resolution must persist
// atomically: the result row, every touched player, and the session row
// advanced past the resolved turn.
type ResolutionWrite struct {
	Session *models.GameSession
	Players []*models.Player
	Result  *models.TurnResultRow
}

// Store is the durable session store.
type Store interface {
	CreateSession(ctx context.Context, s *models.GameSession, host *models.Player) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	// UpdateSession applies the row if Version matches the stored value,
	// then increments it. ErrConflict otherwise.
	UpdateSession(ctx context.Context, s *models.GameSession) error
	// ListActiveSessions returns every session in a non-terminal phase,
	// WAITING included. Used by restart recovery.
	ListActiveSessions(ctx context.Context) ([]*models.GameSession, error)

	AddPlayer(ctx context.Context, p *models.Player) error
	RemovePlayer(ctx context.Context, sessionID, playerID uuid.UUID) error
	GetPlayers(ctx context.Context, sessionID uuid.UUID) ([]*models.Player, error)
	UpdatePlayers(ctx context.Context, players []*models.Player) error

	UpsertAction(ctx context.Context, a *models.ActionRow) error
	GetActions(ctx context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ActionRow, error)
	LockActions(ctx context.Context, sessionID uuid.UUID, turn uint32) error

	UpsertReaction(ctx context.Context, r *models.ReactionRow) error
	GetReactions(ctx context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ReactionRow, error)
	LockReactions(ctx context.Context, sessionID uuid.UUID, turn uint32) error

	UpsertChoice(ctx context.Context, c *models.ChoiceRow) error
	GetChoices(ctx context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ChoiceRow, error)

	// SaveResolution applies the whole write in one transaction. If the
	// turn was already resolved it changes nothing and returns
	// ErrAlreadyResolved, which is what makes crash-replay exactly-once.
	SaveResolution(ctx context.Context, w *ResolutionWrite) error
	GetTurnResult(ctx context.Context, sessionID uuid.UUID, turn uint32) (*models.TurnResultRow, error)
}
