package scheduler

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestScheduleOnceFires(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()

	var fired atomic.Int32
	s.ScheduleOnce(KindPhase, uuid.New(), time.Now().Add(10*time.Millisecond), func() {
		fired.Add(1)
	})

	require.Eventually(t, func() bool { return fired.Load() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "one-shot must fire exactly once")
}

func TestScheduleOncePastDeadlineFiresImmediately(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()

	var fired atomic.Int32
	s.ScheduleOnce(KindPhase, uuid.New(), time.Now().Add(-time.Hour), func() {
		fired.Add(1)
	})
	require.Eventually(t, func() bool { return fired.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestScheduleOnceReplaces(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()
	id := uuid.New()

	var first, second atomic.Int32
	s.ScheduleOnce(KindPhase, id, time.Now().Add(20*time.Millisecond), func() { first.Add(1) })
	s.ScheduleOnce(KindPhase, id, time.Now().Add(40*time.Millisecond), func() { second.Add(1) })

	require.Eventually(t, func() bool { return second.Load() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Zero(t, first.Load(), "replaced job must never fire")
}

func TestDifferentKindsDoNotReplace(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()
	id := uuid.New()

	var phase, digest atomic.Int32
	s.ScheduleOnce(KindPhase, id, time.Now().Add(10*time.Millisecond), func() { phase.Add(1) })
	s.ScheduleOnce(KindBroadcast, id, time.Now().Add(10*time.Millisecond), func() { digest.Add(1) })

	require.Eventually(t, func() bool { return phase.Load() == 1 && digest.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestCancelStopsJob(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()
	id := uuid.New()

	var fired atomic.Int32
	s.ScheduleOnce(KindPhase, id, time.Now().Add(30*time.Millisecond), func() { fired.Add(1) })
	s.Cancel(KindPhase, id)

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestScheduleEveryTicksAndCancels(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()
	id := uuid.New()

	var ticks atomic.Int32
	s.ScheduleEvery(KindBroadcast, id, 10*time.Millisecond, func() { ticks.Add(1) })

	require.Eventually(t, func() bool { return ticks.Load() >= 3 },
		time.Second, 5*time.Millisecond)
	s.Cancel(KindBroadcast, id)
	at := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), at+1, "ticker must stop after cancel")
}

func TestCancelSessionDropsAllKinds(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()
	id := uuid.New()

	var fired atomic.Int32
	s.ScheduleOnce(KindPhase, id, time.Now().Add(30*time.Millisecond), func() { fired.Add(1) })
	s.ScheduleEvery(KindBroadcast, id, 10*time.Millisecond, func() { fired.Add(1) })
	s.CancelSession(id)

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestStopRejectsNewJobs(t *testing.T) {
	s := New(testLogger())
	s.Stop()

	var fired atomic.Int32
	s.ScheduleOnce(KindPhase, uuid.New(), time.Now(), func() { fired.Add(1) })
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestPanickingJobIsRecovered(t *testing.T) {
	s := New(testLogger())
	defer s.Stop()
	id := uuid.New()

	s.ScheduleOnce(KindPhase, id, time.Now(), func() { panic("boom") })

	var fired atomic.Int32
	s.ScheduleOnce(KindBroadcast, id, time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })
	require.Eventually(t, func() bool { return fired.Load() == 1 },
		time.Second, 5*time.Millisecond)
}
