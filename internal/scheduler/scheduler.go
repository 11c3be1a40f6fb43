// Package scheduler provides in-process one-shot and recurring timers
// keyed by (kind, session). Durability lives in the session store: on
// restart the game service re-arms every timer from persisted phase
// deadlines, so jobs here never need to survive the process.
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind names a timer family. One job per (kind, session) at a time.
type Kind string

const (
	KindPhase     Kind = "phase_transition"
	KindBroadcast Kind = "chat_broadcast"
)

// Scheduler is the timer substrate consumed by the game service.
// Scheduling an already-armed key replaces the pending job.
type Scheduler interface {
	ScheduleOnce(kind Kind, sessionID uuid.UUID, at time.Time, fn func())
	ScheduleEvery(kind Kind, sessionID uuid.UUID, every time.Duration, fn func())
	Cancel(kind Kind, sessionID uuid.UUID)
	CancelSession(sessionID uuid.UUID)
	Stop()
}

type jobKey struct {
	kind    Kind
	session uuid.UUID
}

type job struct {
	timer *time.Timer
	done  chan struct{}
}

// Timers implements Scheduler on time.AfterFunc and time.Ticker.
type Timers struct {
	mu      sync.Mutex
	jobs    map[jobKey]*job
	stopped bool
	log     *logrus.Logger
}

// New returns a ready Timers scheduler.
func New(log *logrus.Logger) *Timers {
	return &Timers{jobs: make(map[jobKey]*job), log: log}
}

func (t *Timers) run(key jobKey, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.WithFields(logrus.Fields{
				"kind":       string(key.kind),
				"session_id": key.session,
				"panic":      r,
			}).Error("scheduled job panicked")
		}
	}()
	fn()
}

// ScheduleOnce arms a single-shot job for the wall-clock time. A past
// deadline fires immediately.
func (t *Timers) ScheduleOnce(kind Kind, sessionID uuid.UUID, at time.Time, fn func()) {
	key := jobKey{kind: kind, session: sessionID}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.cancelLocked(key)

	j := &job{}
	j.timer = time.AfterFunc(time.Until(at), func() {
		t.mu.Lock()
		if t.jobs[key] == j {
			delete(t.jobs, key)
		}
		t.mu.Unlock()
		t.run(key, fn)
	})
	t.jobs[key] = j
}

// ScheduleEvery arms a recurring job with the given interval.
func (t *Timers) ScheduleEvery(kind Kind, sessionID uuid.UUID, every time.Duration, fn func()) {
	key := jobKey{kind: kind, session: sessionID}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.cancelLocked(key)

	j := &job{done: make(chan struct{})}
	t.jobs[key] = j
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-j.done:
				return
			case <-ticker.C:
				t.run(key, fn)
			}
		}
	}()
}

func (t *Timers) cancelLocked(key jobKey) {
	j, ok := t.jobs[key]
	if !ok {
		return
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	if j.done != nil {
		close(j.done)
	}
	delete(t.jobs, key)
}

// Cancel drops the pending job for the key, if any.
func (t *Timers) Cancel(kind Kind, sessionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(jobKey{kind: kind, session: sessionID})
}

// CancelSession drops every pending job for the session.
func (t *Timers) CancelSession(sessionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.jobs {
		if key.session == sessionID {
			t.cancelLocked(key)
		}
	}
}

// Stop cancels everything and rejects further scheduling.
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for key := range t.jobs {
		t.cancelLocked(key)
	}
}
