// phases.go holds the per-session phase state machine. Every transition is
// persisted before its consequences run, so a crash between any two
// steps is recoverable from the stored phase and deadline alone.
package game

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"slowcoup/engine"
	"slowcoup/internal/database"
	"slowcoup/internal/models"
	"slowcoup/internal/scheduler"
)

const (
	phaseRetryBase = 5 * time.Second
	phaseRetryMax  = time.Minute
)

// OnPhaseExpired is the scheduler callback: it runs the transition for
// whatever phase the session is in now. Idempotent per phase, so a
// catch-up call after restart behaves like the timer it replaces.
func (s *Service) OnPhaseExpired(ctx context.Context, id uuid.UUID) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		s.retryPhase(id, err, "load session")
		return
	}

	switch sess.Phase {
	case models.PhaseAction:
		s.closeActionWindow(ctx, sess)
	case models.PhaseActionLockout:
		// Crashed after locking actions, before opening reactions.
		s.openReactionWindow(ctx, sess)
	case models.PhaseReaction:
		s.closeReactionWindow(ctx, sess)
	case models.PhaseReactionLockout:
		// Crashed after locking reactions, before deciding on a choices
		// window. Re-check so the restart does not cost anyone theirs.
		s.afterReactionLockout(ctx, sess)
	case models.PhaseAwaitingChoices:
		s.resolveSession(ctx, sess)
	case models.PhaseBroadcast:
		s.afterBroadcast(ctx, sess)
	case models.PhaseEnding:
		s.completeSession(ctx, sess)
	default:
		// WAITING has no timer; terminal phases keep none armed.
		s.log.WithFields(logrus.Fields{"session_id": id, "phase": sess.Phase}).
			Debug("phase timer fired with nothing to do")
	}
}

// retryPhase re-arms the phase timer after a store failure, with
// exponential backoff capped at phaseRetryMax. The session stays in its
// current phase; a lockout is never skipped.
func (s *Service) retryPhase(id uuid.UUID, err error, what string) {
	n := 1
	if v, ok := s.retries.Load(id); ok {
		n = v.(int) + 1
	}
	s.retries.Store(id, n)

	delay := phaseRetryMax
	if n < 8 {
		if d := phaseRetryBase << uint(n-1); d < delay {
			delay = d
		}
	}
	s.log.WithError(err).WithFields(logrus.Fields{
		"session_id": id,
		"attempt":    n,
		"retry_in":   delay,
	}).Error(what + " failed, retrying")
	s.sched.ScheduleOnce(scheduler.KindPhase, id, s.now().Add(delay), func() {
		s.OnPhaseExpired(context.Background(), id)
	})
}

func (s *Service) clearRetries(id uuid.UUID) {
	s.retries.Delete(id)
}

// closeActionWindow flips the session into ACTION_LOCKOUT (so the write
// path rejects further actions), locks the ledger, classifies the
// submitted actions and opens the reaction window.
func (s *Service) closeActionWindow(ctx context.Context, sess *models.GameSession) {
	sess.Phase = models.PhaseActionLockout
	sess.PhaseEndsAt = s.now().UTC()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		s.retryPhase(sess.ID, err, "enter action lockout")
		return
	}
	if err := s.store.LockActions(ctx, sess.ID, sess.Turn); err != nil {
		s.retryPhase(sess.ID, err, "lock actions")
		return
	}

	actions, err := s.store.GetActions(ctx, sess.ID, sess.Turn)
	if err != nil {
		s.retryPhase(sess.ID, err, "classify actions")
		return
	}
	visible, silent := 0, 0
	for _, a := range actions {
		if engine.Specs[a.Action].Visible {
			visible++
		} else {
			silent++
		}
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"turn":       sess.Turn,
		"visible":    visible,
		"silent":     silent,
	}).Info("action window closed")

	s.openReactionWindow(ctx, sess)
}

func (s *Service) openReactionWindow(ctx context.Context, sess *models.GameSession) {
	sess.Phase = models.PhaseReaction
	sess.PhaseEndsAt = s.now().UTC().Add(sess.Durations.Reaction)
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		s.retryPhase(sess.ID, err, "open reaction window")
		return
	}
	s.clearRetries(sess.ID)
	s.armPhaseTimer(sess)
	s.publishPhase(sess)
}

// closeReactionWindow freezes the reaction ledger, then either waits for
// missing card choices or resolves immediately.
func (s *Service) closeReactionWindow(ctx context.Context, sess *models.GameSession) {
	sess.Phase = models.PhaseReactionLockout
	sess.PhaseEndsAt = s.now().UTC()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		s.retryPhase(sess.ID, err, "enter reaction lockout")
		return
	}
	if err := s.store.LockReactions(ctx, sess.ID, sess.Turn); err != nil {
		s.retryPhase(sess.ID, err, "lock reactions")
		return
	}
	s.afterReactionLockout(ctx, sess)
}

// afterReactionLockout opens the choices window when resolution still
// needs card decisions, otherwise resolves the turn.
func (s *Service) afterReactionLockout(ctx context.Context, sess *models.GameSession) {
	missing, err := s.missingChoices(ctx, sess)
	if err != nil {
		s.retryPhase(sess.ID, err, "determine required choices")
		return
	}
	if len(missing) > 0 {
		sess.Phase = models.PhaseAwaitingChoices
		sess.PhaseEndsAt = s.now().UTC().Add(sess.Durations.Choices)
		if err := s.store.UpdateSession(ctx, sess); err != nil {
			s.retryPhase(sess.ID, err, "enter choices window")
			return
		}
		s.clearRetries(sess.ID)
		s.armPhaseTimer(sess)
		s.publishPhase(sess)
		s.log.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"turn":       sess.Turn,
			"missing":    len(missing),
		}).Info("waiting for card choices")
		return
	}
	s.resolveSession(ctx, sess)
}

type choiceKey struct {
	seat uint8
	kind engine.ChoiceKind
}

// missingChoices lists the (seat, kind) decisions resolution will need
// that have not been submitted: reveal targets of coup/assassinate and
// keepers for exchange actors.
func (s *Service) missingChoices(ctx context.Context, sess *models.GameSession) ([]choiceKey, error) {
	actions, err := s.store.GetActions(ctx, sess.ID, sess.Turn)
	if err != nil {
		return nil, err
	}
	players, err := s.store.GetPlayers(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	alive := make(map[uint8]bool, len(players))
	for _, p := range players {
		alive[p.Seat] = p.Alive
	}

	needed := map[choiceKey]bool{}
	for _, a := range actions {
		switch a.Action {
		case engine.Coup, engine.Assassinate:
			if alive[a.TargetSeat] {
				needed[choiceKey{seat: a.TargetSeat, kind: engine.ChoiceInfluenceLoss}] = true
			}
		case engine.Exchange:
			if alive[a.Seat] {
				needed[choiceKey{seat: a.Seat, kind: engine.ChoiceExchangeKeep}] = true
			}
		}
	}
	if len(needed) == 0 {
		return nil, nil
	}

	choices, err := s.store.GetChoices(ctx, sess.ID, sess.Turn)
	if err != nil {
		return nil, err
	}
	for _, c := range choices {
		delete(needed, choiceKey{seat: c.Seat, kind: c.Kind})
	}
	out := make([]choiceKey, 0, len(needed))
	for k := range needed {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].seat != out[j].seat {
			return out[i].seat < out[j].seat
		}
		return out[i].kind < out[j].kind
	})
	return out, nil
}

// resolveLocked reloads the session and resolves if it is still in a
// lockout. Caller holds the session mutex.
func (s *Service) resolveLocked(ctx context.Context, id uuid.UUID) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		s.retryPhase(id, err, "load session for resolution")
		return
	}
	if sess.Phase != models.PhaseReactionLockout && sess.Phase != models.PhaseAwaitingChoices {
		return
	}
	s.resolveSession(ctx, sess)
}

// resolveSession runs the turn through the rules core and persists
// result, players and session advance in one transaction. Safe to call
// again after a crash: a second run hits ErrAlreadyResolved and only
// re-arms the timer.
func (s *Service) resolveSession(ctx context.Context, sess *models.GameSession) {
	players, err := s.store.GetPlayers(ctx, sess.ID)
	if err != nil {
		s.retryPhase(sess.ID, err, "load players for resolution")
		return
	}
	actions, err := s.store.GetActions(ctx, sess.ID, sess.Turn)
	if err != nil {
		s.retryPhase(sess.ID, err, "load actions for resolution")
		return
	}
	reactions, err := s.store.GetReactions(ctx, sess.ID, sess.Turn)
	if err != nil {
		s.retryPhase(sess.ID, err, "load reactions for resolution")
		return
	}
	choiceRows, err := s.store.GetChoices(ctx, sess.ID, sess.Turn)
	if err != nil {
		s.retryPhase(sess.ID, err, "load choices for resolution")
		return
	}

	st := buildEngineState(sess, players)
	intents := make([]engine.Intent, 0, len(actions))
	for i, a := range actions {
		intents = append(intents, engine.Intent{
			Actor:    a.Seat,
			Action:   a.Action,
			Target:   a.TargetSeat,
			Upgraded: a.Upgraded,
			Order:    uint32(i),
		})
	}
	engReactions := make([]engine.Reaction, 0, len(reactions))
	for _, r := range reactions {
		engReactions = append(engReactions, engine.Reaction{
			Reactor:  r.ReactorSeat,
			Kind:     r.Kind,
			Claimant: r.ClaimantSeat,
			Action:   r.Action,
			Role:     r.Role,
			At:       r.SubmittedAt.UnixMilli(),
		})
	}
	choices := engine.Choices{
		InfluenceLoss: map[uint8]engine.CardType{},
		ExchangeKeep:  map[uint8][]engine.CardType{},
		AssassinPick:  map[uint8]engine.CardType{},
	}
	for _, c := range choiceRows {
		if len(c.Cards) == 0 {
			continue
		}
		switch c.Kind {
		case engine.ChoiceInfluenceLoss:
			choices.InfluenceLoss[c.Seat] = c.Cards[0]
		case engine.ChoiceExchangeKeep:
			choices.ExchangeKeep[c.Seat] = c.Cards
		case engine.ChoiceAssassinPick:
			choices.AssassinPick[c.Seat] = c.Cards[0]
		}
	}

	result := st.ResolveTurn(intents, engReactions, choices)

	if got := st.CardCount(); got != engine.DeckSize {
		// Conservation is a hard invariant; resolution never proceeds
		// from a corrupt deck.
		s.log.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"turn":       sess.Turn,
			"cards":      got,
		}).WithError(ErrDeckUnderflow).Error("card conservation violated, cancelling session")
		sess.Phase = models.PhaseCancelled
		if err := s.store.UpdateSession(ctx, sess); err != nil {
			s.retryPhase(sess.ID, err, "cancel corrupt session")
			return
		}
		s.sched.CancelSession(sess.ID)
		return
	}

	for _, p := range players {
		writePlayerFromEngine(p, &st.Players[p.Seat])
	}
	writeSessionFromEngine(sess, &st)
	resolvedTurn := sess.Turn
	sess.Turn = resolvedTurn + 1
	sess.Phase = models.PhaseBroadcast
	sess.PhaseEndsAt = s.now().UTC().Add(sess.Durations.Broadcast)

	write := &database.ResolutionWrite{
		Session: sess,
		Players: players,
		Result: &models.TurnResultRow{
			SessionID: sess.ID,
			Turn:      resolvedTurn,
			Result:    result,
			CreatedAt: s.now().UTC(),
		},
	}
	switch err := s.store.SaveResolution(ctx, write); {
	case err == nil:
	case errors.Is(err, database.ErrAlreadyResolved):
		// A previous run committed before we crashed. Re-read the
		// advanced session and fall through to re-arm its timer.
		fresh, ferr := s.store.GetSession(ctx, sess.ID)
		if ferr != nil {
			s.retryPhase(sess.ID, ferr, "reload resolved session")
			return
		}
		sess = fresh
	default:
		s.retryPhase(sess.ID, err, "persist resolution")
		return
	}

	s.clearRetries(sess.ID)
	s.armPhaseTimer(sess)
	s.cast.PublishEvent(sess.ID, "turn_resolved", map[string]any{
		"turn":       resolvedTurn,
		"results":    len(result.Results),
		"eliminated": result.Eliminated,
	})
	s.publishPhase(sess)
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"turn":       resolvedTurn,
		"actions":    len(result.Results),
		"eliminated": len(result.Eliminated),
	}).Info("turn resolved")
}

// afterBroadcast either opens the next action window or, when a win
// condition holds, enters the ENDING grace window with winners set.
func (s *Service) afterBroadcast(ctx context.Context, sess *models.GameSession) {
	players, err := s.store.GetPlayers(ctx, sess.ID)
	if err != nil {
		s.retryPhase(sess.ID, err, "load players after broadcast")
		return
	}
	aliveCount := 0
	for _, p := range players {
		if p.Alive {
			aliveCount++
		}
	}
	turnLimitHit := sess.TurnLimit > 0 && sess.Turn > sess.TurnLimit

	if aliveCount <= 1 || turnLimitHit {
		sess.Phase = models.PhaseEnding
		sess.PhaseEndsAt = s.now().UTC().Add(sess.Durations.Ending)
		sess.Winners = calculateWinners(players)
		if err := s.store.UpdateSession(ctx, sess); err != nil {
			s.retryPhase(sess.ID, err, "enter ending")
			return
		}
		s.clearRetries(sess.ID)
		s.armPhaseTimer(sess)
		s.cast.PublishEvent(sess.ID, "game_ending", map[string]any{"winners": sess.Winners})
		s.publishPhase(sess)
		return
	}

	sess.Phase = models.PhaseAction
	sess.PhaseEndsAt = s.now().UTC().Add(sess.Durations.Action)
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		s.retryPhase(sess.ID, err, "open next action window")
		return
	}
	s.clearRetries(sess.ID)
	s.armPhaseTimer(sess)
	s.publishPhase(sess)
}

// completeSession finalizes winners and stops the session's timers.
func (s *Service) completeSession(ctx context.Context, sess *models.GameSession) {
	if len(sess.Winners) == 0 {
		players, err := s.store.GetPlayers(ctx, sess.ID)
		if err != nil {
			s.retryPhase(sess.ID, err, "load players for completion")
			return
		}
		sess.Winners = calculateWinners(players)
	}
	sess.Phase = models.PhaseCompleted
	sess.PhaseEndsAt = s.now().UTC()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		s.retryPhase(sess.ID, err, "complete session")
		return
	}
	s.clearRetries(sess.ID)
	s.sched.CancelSession(sess.ID)
	s.cast.PublishEvent(sess.ID, "session_completed", map[string]any{"winners": sess.Winners})
	s.log.WithFields(logrus.Fields{"session_id": sess.ID, "winners": len(sess.Winners)}).
		Info("session completed")
}

// calculateWinners ranks living players by remaining cards, then coins.
// Everyone tied at the top wins; an empty roster yields no winners.
func calculateWinners(players []*models.Player) []uuid.UUID {
	var best []uuid.UUID
	bestCards, bestCoins := -1, -1
	for _, p := range players {
		if !p.Alive {
			continue
		}
		cards := len(p.Hand)
		switch {
		case cards > bestCards || (cards == bestCards && p.Coins > bestCoins):
			best = []uuid.UUID{p.ID}
			bestCards, bestCoins = cards, p.Coins
		case cards == bestCards && p.Coins == bestCoins:
			best = append(best, p.ID)
		}
	}
	return best
}
