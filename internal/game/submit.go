package game

import (
	"context"

	"github.com/google/uuid"

	"slowcoup/engine"
	"slowcoup/internal/models"
)

func findPlayer(players []*models.Player, id uuid.UUID) (*models.Player, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// SubmitAction validates and upserts the actor's pending action for the
// current turn. Repeat submissions replace the earlier one until the
// action lockout.
func (s *Service) SubmitAction(ctx context.Context, sessionID, actorID uuid.UUID, action string, targetID *uuid.UUID, claimedRole string, upgraded bool) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != models.PhaseAction {
		return validationf(CodePhaseMismatch, "actions are accepted only during %s, session is in %s", models.PhaseAction, sess.Phase)
	}
	players, err := s.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return err
	}
	actor, ok := findPlayer(players, actorID)
	if !ok {
		return validationf(CodeNotInSession, "player not seated in session")
	}

	act := engine.ParseActionType(action)
	if act == engine.NumActionTypes {
		return validationf(CodeInvalidAction, "unknown action %q", action)
	}
	targetSeat := engine.SeatNone
	if targetID != nil {
		target, ok := findPlayer(players, *targetID)
		if !ok {
			return validationf(CodeInvalidTarget, "target not seated in session")
		}
		targetSeat = target.Seat
	}
	// A stated claim must match the rule table; the table is the truth
	// either way.
	if claimedRole != "" && engine.ParseCardType(claimedRole) != engine.Specs[act].Claims {
		return validationf(CodeRoleMismatch, "%s does not claim %s", act, claimedRole)
	}

	st := buildEngineState(sess, players)
	intent := engine.Intent{Actor: actor.Seat, Action: act, Target: targetSeat, Upgraded: upgraded}
	if err := st.Validate(intent); err != nil {
		return engineValidation(err)
	}

	return s.store.UpsertAction(ctx, &models.ActionRow{
		SessionID:   sessionID,
		Turn:        sess.Turn,
		Seat:        actor.Seat,
		Action:      act,
		TargetSeat:  targetSeat,
		Upgraded:    upgraded,
		SubmittedAt: s.now().UTC(),
	})
}

// SubmitReaction validates and upserts a challenge, block or pass
// against a visible action. Challenging a block names the blocker as
// the claimant.
func (s *Service) SubmitReaction(ctx context.Context, sessionID, reactorID, claimantID uuid.UUID, kind string, claimedRole string) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != models.PhaseReaction {
		return validationf(CodePhaseMismatch, "reactions are accepted only during %s, session is in %s", models.PhaseReaction, sess.Phase)
	}
	players, err := s.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return err
	}
	reactor, ok := findPlayer(players, reactorID)
	if !ok {
		return validationf(CodeNotInSession, "reactor not seated in session")
	}
	if !reactor.Alive {
		return validationf(CodeInvalidReaction, "eliminated players cannot react")
	}
	claimant, ok := findPlayer(players, claimantID)
	if !ok {
		return validationf(CodeInvalidReaction, "claimant not seated in session")
	}
	if claimant.Seat == reactor.Seat {
		return validationf(CodeInvalidReaction, "cannot react to your own claim")
	}

	rk := engine.ParseReactionType(kind)
	act, err := s.reactableAction(ctx, sess, claimant.Seat, rk)
	if err != nil {
		return err
	}

	role := engine.EmptyCard
	if rk == engine.Block {
		role = engine.ParseCardType(claimedRole)
		if role == engine.EmptyCard || !engine.CanBlockWith(act, role) {
			return validationf(CodeInvalidReaction, "%s cannot be blocked with %q", act, claimedRole)
		}
	}

	return s.store.UpsertReaction(ctx, &models.ReactionRow{
		SessionID:    sessionID,
		Turn:         sess.Turn,
		ReactorSeat:  reactor.Seat,
		ClaimantSeat: claimant.Seat,
		Action:       act,
		Kind:         rk,
		Role:         role,
		SubmittedAt:  s.now().UTC(),
	})
}

// reactableAction finds the action a reaction against the claimant
// refers to: the claimant's own visible action, or the action the
// claimant blocked when the reaction challenges that block.
func (s *Service) reactableAction(ctx context.Context, sess *models.GameSession, claimantSeat uint8, kind engine.ReactionType) (engine.ActionType, error) {
	actions, err := s.store.GetActions(ctx, sess.ID, sess.Turn)
	if err != nil {
		return 0, err
	}
	for _, a := range actions {
		if a.Seat != claimantSeat {
			continue
		}
		spec := engine.Specs[a.Action]
		if !spec.Visible {
			return 0, validationf(CodeInvalidReaction, "%s resolves silently", a.Action)
		}
		switch kind {
		case engine.Challenge:
			if !spec.Challengeable() {
				return 0, validationf(CodeInvalidReaction, "%s claims no role to challenge", a.Action)
			}
		case engine.Block:
			if !spec.Blockable() {
				return 0, validationf(CodeInvalidReaction, "%s cannot be blocked", a.Action)
			}
		}
		return a.Action, nil
	}

	// No action by the claimant: a challenge may target their block.
	if kind == engine.Challenge {
		reactions, err := s.store.GetReactions(ctx, sess.ID, sess.Turn)
		if err != nil {
			return 0, err
		}
		for _, r := range reactions {
			if r.ReactorSeat == claimantSeat && r.Kind == engine.Block {
				return r.Action, nil
			}
		}
	}
	return 0, validationf(CodeInvalidReaction, "seat %d has no reactable claim this turn", claimantSeat)
}

// SubmitCardChoice records a card selection ahead of resolution. During
// AWAITING_CHOICES a completed set of required choices resolves the turn
// immediately.
func (s *Service) SubmitCardChoice(ctx context.Context, sessionID, playerID uuid.UUID, kind string, cards []string) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != models.PhaseReaction && sess.Phase != models.PhaseAwaitingChoices {
		return validationf(CodePhaseMismatch, "choices are accepted during %s or %s, session is in %s",
			models.PhaseReaction, models.PhaseAwaitingChoices, sess.Phase)
	}
	players, err := s.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return err
	}
	player, ok := findPlayer(players, playerID)
	if !ok {
		return validationf(CodeNotInSession, "player not seated in session")
	}

	ck, ok := engine.ParseChoiceKind(kind)
	if !ok {
		return validationf(CodeInvalidAction, "unknown choice kind %q", kind)
	}
	parsed := make([]engine.CardType, 0, len(cards))
	for _, name := range cards {
		c := engine.ParseCardType(name)
		if c == engine.EmptyCard {
			return validationf(CodeInvalidAction, "unknown card %q", name)
		}
		parsed = append(parsed, c)
	}

	switch ck {
	case engine.ChoiceInfluenceLoss, engine.ChoiceAssassinPick:
		if len(parsed) != 1 {
			return validationf(CodeInvalidAction, "%s takes exactly one card", ck)
		}
		if ck == engine.ChoiceInfluenceLoss && !player.HandHas(parsed[0]) {
			for _, c := range player.Revealed {
				if c == parsed[0] {
					return validationf(CodeDuplicateReveal, "%s is already revealed", parsed[0])
				}
			}
			return validationf(CodeInvalidAction, "card %s is not in hand", parsed[0])
		}
	case engine.ChoiceExchangeKeep:
		if len(parsed) == 0 || len(parsed) > engine.MaxHandSize {
			return validationf(CodeInvalidAction, "%s takes 1 to %d cards", ck, engine.MaxHandSize)
		}
	}

	if err := s.store.UpsertChoice(ctx, &models.ChoiceRow{
		SessionID:   sessionID,
		Turn:        sess.Turn,
		Seat:        player.Seat,
		Kind:        ck,
		Cards:       parsed,
		SubmittedAt: s.now().UTC(),
	}); err != nil {
		return err
	}

	if sess.Phase == models.PhaseAwaitingChoices {
		missing, err := s.missingChoices(ctx, sess)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			s.resolveLocked(ctx, sessionID)
		}
	}
	return nil
}
