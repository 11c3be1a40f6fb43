package game

import (
	"context"

	"github.com/google/uuid"

	"slowcoup/engine"
	"slowcoup/internal/models"
)

// actionsRevealed reports whether the current turn's visible actions are
// public knowledge. Silent actions stay hidden until the turn resolves.
func actionsRevealed(phase models.Phase) bool {
	switch phase {
	case models.PhaseActionLockout, models.PhaseReaction,
		models.PhaseReactionLockout, models.PhaseAwaitingChoices:
		return true
	}
	return false
}

// reactionsRevealed reports whether the current turn's reaction ledger
// is public. During the reaction window itself only blocks show, since
// a block is an open role claim the table must be able to challenge.
func reactionsRevealed(phase models.Phase) bool {
	switch phase {
	case models.PhaseReaction, models.PhaseReactionLockout, models.PhaseAwaitingChoices:
		return true
	}
	return false
}

// GetSessionState builds the snapshot of a session as seen by viewerID.
// Pass uuid.Nil for a spectator view with no hidden cards at all.
func (s *Service) GetSessionState(ctx context.Context, sessionID, viewerID uuid.UUID) (*models.SessionView, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	view := &models.SessionView{
		SessionID:   sess.ID,
		Phase:       sess.Phase,
		Turn:        sess.Turn,
		PhaseEndsAt: sess.PhaseEndsAt,
		DeckSize:    len(sess.DeckState),
		Winners:     sess.Winners,
	}
	for _, p := range players {
		pv := models.PlayerView{
			PlayerID:    p.ID,
			Seat:        p.Seat,
			DisplayName: p.DisplayName,
			Coins:       p.Coins,
			HandSize:    len(p.Hand),
			Revealed:    cardNames(p.Revealed),
			Alive:       p.Alive,
		}
		if p.ID == viewerID {
			pv.MyCards = cardNames(p.Hand)
		}
		view.Players = append(view.Players, pv)
	}

	if actionsRevealed(sess.Phase) {
		actions, err := s.store.GetActions(ctx, sessionID, sess.Turn)
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			spec := engine.Specs[a.Action]
			if !spec.Visible {
				continue
			}
			av := models.PendingActionView{
				Seat:     a.Seat,
				Action:   a.Action.String(),
				Upgraded: a.Upgraded,
				Visible:  true,
			}
			if spec.Targeted {
				t := a.TargetSeat
				av.Target = &t
			}
			view.Actions = append(view.Actions, av)
		}
	}
	if reactionsRevealed(sess.Phase) {
		reactions, err := s.store.GetReactions(ctx, sessionID, sess.Turn)
		if err != nil {
			return nil, err
		}
		for _, r := range reactions {
			if sess.Phase == models.PhaseReaction && r.Kind != engine.Block {
				continue
			}
			rv := models.PendingReactionView{
				Reactor:  r.ReactorSeat,
				Claimant: r.ClaimantSeat,
				Kind:     r.Kind.String(),
			}
			if r.Role != engine.EmptyCard {
				rv.Role = r.Role.String()
			}
			view.Reactions = append(view.Reactions, rv)
		}
	}
	return view, nil
}

// GetTurnResult returns the stored outcome of an already-resolved turn.
func (s *Service) GetTurnResult(ctx context.Context, sessionID uuid.UUID, turn uint32) (*models.TurnResultRow, error) {
	return s.store.GetTurnResult(ctx, sessionID, turn)
}

func cardNames(cards []engine.CardType) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.String())
	}
	return out
}
