// Package game orchestrates sessions: the phase state machine, ledger
// writes, turn resolution and restart recovery. All mutation of one
// session is serialized behind a per-session mutex; sessions never block
// each other.
package game

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"slowcoup/engine"
	"slowcoup/internal/cache"
	"slowcoup/internal/database"
	"slowcoup/internal/models"
	"slowcoup/internal/scheduler"
)

// Options tunes a Service. Zero windows fall back to the defaults the
// original rulebook uses.
type Options struct {
	Durations      models.PhaseDurations
	DigestInterval time.Duration
	TurnLimit      uint32
}

func (o *Options) fillDefaults() {
	if o.Durations.Action == 0 {
		o.Durations.Action = 50 * time.Minute
	}
	if o.Durations.Reaction == 0 {
		o.Durations.Reaction = 20 * time.Minute
	}
	if o.Durations.Choices == 0 {
		o.Durations.Choices = 10 * time.Minute
	}
	if o.Durations.Broadcast == 0 {
		o.Durations.Broadcast = time.Minute
	}
	if o.Durations.Ending == 0 {
		o.Durations.Ending = 5 * time.Minute
	}
	if o.DigestInterval == 0 {
		o.DigestInterval = 5 * time.Minute
	}
}

// Service drives every session owned by this process.
type Service struct {
	store database.Store
	sched scheduler.Scheduler
	cast  cache.Broadcaster
	log   *logrus.Logger
	opts  Options

	locks    sync.Map // uuid.UUID -> *sync.Mutex
	retries  sync.Map // uuid.UUID -> int, consecutive failed resolutions
	now      func() time.Time
	seedFunc func(uuid.UUID) uint64
}

// New wires a Service. The scheduler and broadcaster are owned by the
// caller (the composition root) and shut down there.
func New(store database.Store, sched scheduler.Scheduler, cast cache.Broadcaster, log *logrus.Logger, opts Options) *Service {
	opts.fillDefaults()
	return &Service{
		store:    store,
		sched:    sched,
		cast:     cast,
		log:      log,
		opts:     opts,
		now:      time.Now,
		seedFunc: defaultSeed,
	}
}

func defaultSeed(id uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(id[:8]) ^ uint64(time.Now().UnixNano())
}

// lock returns the session's mutex, creating it on first use.
func (s *Service) lock(id uuid.UUID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ---------------------------------------------------------------------------
// session lifecycle
// ---------------------------------------------------------------------------

// CreateSession opens a WAITING session with the host seated at 0.
func (s *Service) CreateSession(ctx context.Context, hostID uuid.UUID, hostName string) (*models.GameSession, error) {
	now := s.now().UTC()
	sess := &models.GameSession{
		ID:          uuid.New(),
		HostID:      hostID,
		Phase:       models.PhaseWaiting,
		Turn:        0,
		TurnLimit:   s.opts.TurnLimit,
		PhaseEndsAt: now,
		Durations:   s.opts.Durations,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	host := &models.Player{
		ID:          hostID,
		SessionID:   sess.ID,
		Seat:        0,
		DisplayName: hostName,
		Alive:       true,
		JoinedAt:    now,
	}
	if err := s.store.CreateSession(ctx, sess, host); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.WithFields(logrus.Fields{"session_id": sess.ID, "host": hostName}).Info("session created")
	return sess, nil
}

// JoinSession seats a player in a WAITING session.
func (s *Service) JoinSession(ctx context.Context, sessionID, playerID uuid.UUID, name string) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != models.PhaseWaiting {
		return validationf(CodePhaseMismatch, "cannot join in phase %s", sess.Phase)
	}
	players, err := s.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(players) >= engine.MaxPlayers {
		return validationf(CodeSessionFull, "session holds at most %d players", engine.MaxPlayers)
	}
	for _, p := range players {
		if p.ID == playerID {
			return nil // already seated
		}
	}
	p := &models.Player{
		ID:          playerID,
		SessionID:   sessionID,
		Seat:        uint8(len(players)),
		DisplayName: name,
		Alive:       true,
		JoinedAt:    s.now().UTC(),
	}
	if err := s.store.AddPlayer(ctx, p); err != nil {
		return err
	}
	s.cast.PublishEvent(sessionID, "player_joined", map[string]any{"seat": p.Seat, "displayName": name})
	return nil
}

// LeaveSession unseats a player. Only WAITING sessions can be left; a
// live game holds its roster until completion.
func (s *Service) LeaveSession(ctx context.Context, sessionID, playerID uuid.UUID) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != models.PhaseWaiting {
		return validationf(CodePhaseMismatch, "cannot leave in phase %s", sess.Phase)
	}
	if err := s.store.RemovePlayer(ctx, sessionID, playerID); err != nil {
		return err
	}
	players, err := s.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return err
	}
	// Compact the seat order so roster tie-breaks stay gapless.
	for i, p := range players {
		p.Seat = uint8(i)
	}
	if err := s.store.UpdatePlayers(ctx, players); err != nil {
		return err
	}
	s.cast.PublishEvent(sessionID, "player_left", map[string]any{"playerId": playerID})
	return nil
}

// StartSession deals the deck and opens turn 1's action window.
func (s *Service) StartSession(ctx context.Context, sessionID, callerID uuid.UUID) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != models.PhaseWaiting {
		return validationf(CodePhaseMismatch, "cannot start in phase %s", sess.Phase)
	}
	if sess.HostID != callerID {
		return validationf(CodeNotHost, "only the host starts the session")
	}
	players, err := s.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(players) < 2 {
		return validationf(CodeTooFewPlayers, "need at least 2 players, have %d", len(players))
	}
	return s.dealAndOpen(ctx, sess, players)
}

// dealAndOpen initializes the rules core, persists the deal and enters
// ACTION_PHASE. Shared by StartSession and rematches.
func (s *Service) dealAndOpen(ctx context.Context, sess *models.GameSession, players []*models.Player) error {
	st := engine.NewGame(uint8(len(players)), s.seedFunc(sess.ID))
	st.Deal()

	for _, p := range players {
		writePlayerFromEngine(p, &st.Players[p.Seat])
	}
	writeSessionFromEngine(sess, &st)
	sess.Turn = 1
	sess.Phase = models.PhaseAction
	sess.PhaseEndsAt = s.now().UTC().Add(sess.Durations.Action)
	sess.Winners = nil

	if err := s.store.UpdatePlayers(ctx, players); err != nil {
		return err
	}
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	s.armPhaseTimer(sess)
	s.armDigestJob(sess.ID)
	s.publishPhase(sess)
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"players":    len(players),
		"turn":       sess.Turn,
	}).Info("session started")
	return nil
}

// CancelSession moves any non-terminal session to CANCELLED and drops
// its timers.
func (s *Service) CancelSession(ctx context.Context, sessionID uuid.UUID) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase.Terminal() {
		return validationf(CodePhaseMismatch, "session already in %s", sess.Phase)
	}
	sess.Phase = models.PhaseCancelled
	sess.PhaseEndsAt = s.now().UTC()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	s.sched.CancelSession(sessionID)
	s.cast.PublishEvent(sessionID, "session_cancelled", nil)
	s.log.WithField("session_id", sessionID).Info("session cancelled")
	return nil
}

// RequestRematch restarts an ENDING session with a fresh deal. Bounded
// by models.MaxRematches.
func (s *Service) RequestRematch(ctx context.Context, sessionID, callerID uuid.UUID) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != models.PhaseEnding {
		return validationf(CodePhaseMismatch, "rematch only during %s", models.PhaseEnding)
	}
	if sess.RematchCount >= models.MaxRematches {
		return validationf(CodeRematchLimit, "rematch limit of %d reached", models.MaxRematches)
	}
	players, err := s.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return err
	}
	seated := false
	for _, p := range players {
		if p.ID == callerID {
			seated = true
		}
	}
	if !seated {
		return validationf(CodeNotInSession, "player not seated in session")
	}
	sess.RematchCount++
	if err := s.dealAndOpen(ctx, sess, players); err != nil {
		return err
	}
	s.cast.PublishEvent(sessionID, "rematch_started", map[string]any{"rematch": sess.RematchCount})
	return nil
}

// ---------------------------------------------------------------------------
// timers and broadcasting
// ---------------------------------------------------------------------------

func (s *Service) armPhaseTimer(sess *models.GameSession) {
	id := sess.ID
	s.sched.ScheduleOnce(scheduler.KindPhase, id, sess.PhaseEndsAt, func() {
		s.OnPhaseExpired(context.Background(), id)
	})
}

func (s *Service) armDigestJob(id uuid.UUID) {
	s.sched.ScheduleEvery(scheduler.KindBroadcast, id, s.opts.DigestInterval, func() {
		s.publishDigest(context.Background(), id)
	})
}

func (s *Service) publishPhase(sess *models.GameSession) {
	s.cast.PublishEvent(sess.ID, "phase_changed", map[string]any{
		"phase":       sess.Phase,
		"turn":        sess.Turn,
		"phaseEndsAt": sess.PhaseEndsAt,
	})
}

// publishDigest pushes the recurring public summary. Runs off the
// session lock on a read-only snapshot.
func (s *Service) publishDigest(ctx context.Context, id uuid.UUID) {
	view, err := s.GetSessionState(ctx, id, uuid.Nil)
	if err != nil {
		s.log.WithError(err).WithField("session_id", id).Warn("digest snapshot failed")
		return
	}
	s.cast.PublishDigest(id, view)
}
