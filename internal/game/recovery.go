package game

import (
	"context"

	"github.com/sirupsen/logrus"
)

// RecoverSessions re-arms timers for every active session after a
// restart. Deadlines already in the past fire immediately, so a session
// that slept through several phases catches up one transition at a
// time through the normal state machine.
func (s *Service) RecoverSessions(ctx context.Context) error {
	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		return err
	}
	recovered := 0
	for _, sess := range sessions {
		if !sess.Active() {
			continue
		}
		s.armPhaseTimer(sess)
		s.armDigestJob(sess.ID)
		recovered++
		s.log.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"phase":      sess.Phase,
			"deadline":   sess.PhaseEndsAt,
		}).Info("session recovered")
	}
	s.log.WithField("sessions", recovered).Info("recovery complete")
	return nil
}
