package game

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slowcoup/engine"
	"slowcoup/internal/models"
)

func TestSessionViewHidesOtherHands(t *testing.T) {
	svc, _, _, _ := newTestService(t, Options{})
	ctx := context.Background()
	sessID, ids := startedSession(t, svc, 2)

	view, err := svc.GetSessionState(ctx, sessID, ids[0])
	require.NoError(t, err)
	require.Len(t, view.Players, 2)
	assert.Equal(t, engine.DeckSize-2*engine.CardsPerPlayer, view.DeckSize)

	assert.Len(t, view.Players[0].MyCards, engine.CardsPerPlayer)
	assert.Empty(t, view.Players[1].MyCards)
	assert.Equal(t, engine.CardsPerPlayer, view.Players[1].HandSize)

	// A spectator sees no hidden cards at all.
	spectator, err := svc.GetSessionState(ctx, sessID, uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, spectator.Players[0].MyCards)
	assert.Empty(t, spectator.Players[1].MyCards)
}

func TestBlockVisibleDuringReactionWindow(t *testing.T) {
	svc, _, sched, _ := newTestService(t, Options{})
	ctx := context.Background()
	sessID, ids := startedSession(t, svc, 3)

	require.NoError(t, svc.SubmitAction(ctx, sessID, ids[0], "foreign_aid", nil, "", false))
	sched.firePhase(t, sessID) // reaction window opens

	require.NoError(t, svc.SubmitReaction(ctx, sessID, ids[2], ids[0], "pass", ""))
	require.NoError(t, svc.SubmitReaction(ctx, sessID, ids[1], ids[0], "block", "duke"))

	// The block is public while it can still be challenged; the pass
	// stays hidden until the ledger locks.
	view, err := svc.GetSessionState(ctx, sessID, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, view.Reactions, 1)
	assert.Equal(t, "block", view.Reactions[0].Kind)
	assert.Equal(t, "duke", view.Reactions[0].Role)
	assert.Equal(t, uint8(1), view.Reactions[0].Reactor)
	assert.Equal(t, uint8(0), view.Reactions[0].Claimant)

	// Seeing the claim is what lets the table call it out.
	require.NoError(t, svc.SubmitReaction(ctx, sessID, ids[2], ids[1], "challenge", ""))
}

func TestSessionViewRevealsLedgersByPhase(t *testing.T) {
	svc, store, sched, _ := newTestService(t, Options{})
	ctx := context.Background()
	sessID, ids := startedSession(t, svc, 2)
	setCoins(t, store, sessID, 0, engine.CoupCost)

	require.NoError(t, svc.SubmitAction(ctx, sessID, ids[0], "coup", &ids[1], "", false))
	require.NoError(t, svc.SubmitAction(ctx, sessID, ids[1], "income", nil, "", false))

	// Still inside the action window: nothing is public yet.
	view, err := svc.GetSessionState(ctx, sessID, uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, view.Actions)

	sched.firePhase(t, sessID) // reaction window opens

	view, err = svc.GetSessionState(ctx, sessID, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, view.Actions, 1, "silent actions stay hidden")
	assert.Equal(t, "coup", view.Actions[0].Action)
	require.NotNil(t, view.Actions[0].Target)
	assert.Equal(t, uint8(1), *view.Actions[0].Target)
	assert.Empty(t, view.Reactions)

	require.NoError(t, svc.SubmitReaction(ctx, sessID, ids[1], ids[0], "pass", ""))
	sched.firePhase(t, sessID) // reaction lockout -> awaiting the forced reveal
	require.Equal(t, models.PhaseAwaitingChoices, getSession(t, store, sessID).Phase)

	view, err = svc.GetSessionState(ctx, sessID, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, view.Reactions, 1)
	assert.Equal(t, "pass", view.Reactions[0].Kind)
	assert.Equal(t, uint8(1), view.Reactions[0].Reactor)
}
