package sessionhub

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timerRecorder struct {
	ticks    chan int
	warnings chan string
	expiries chan string
}

func newTimerRecorder() *timerRecorder {
	return &timerRecorder{
		ticks:    make(chan int, 64),
		warnings: make(chan string, 8),
		expiries: make(chan string, 8),
	}
}

func (r *timerRecorder) onTick(_ string, remaining int) { r.ticks <- remaining }

func (r *timerRecorder) onWarning(_ string, _ int, level string) { r.warnings <- level }

func (r *timerRecorder) onExpire(sessionID string) { r.expiries <- sessionID }

func startRecordedTimer(clock *clockwork.FakeClock, seconds int) (*RoundTimer, *timerRecorder) {
	rec := newTimerRecorder()
	timer := newRoundTimer("s1", clock.Now().Add(time.Duration(seconds)*time.Second), seconds, clock,
		rec.onTick, rec.onWarning, rec.onExpire)
	timer.Start()
	// Wait for the timer goroutine to create its ticker so the first
	// clock.Advance cannot happen before the ticker is registered.
	clock.BlockUntil(1)
	return timer, rec
}

// tickOnce advances the fake clock one interval and waits for the tick
// callback, so the next advance cannot outrun the timer goroutine.
func tickOnce(t *testing.T, clock *clockwork.FakeClock, rec *timerRecorder) int {
	t.Helper()
	clock.Advance(time.Second)
	select {
	case rem := <-rec.ticks:
		return rem
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return 0
	}
}

func recvString(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		return ""
	}
}

func TestRoundTimer_TicksCountDown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer, rec := startRecordedTimer(clock, 60)
	defer timer.Stop()

	assert.Equal(t, 59, tickOnce(t, clock, rec))
	assert.Equal(t, 58, tickOnce(t, clock, rec))
	assert.Equal(t, 57, tickOnce(t, clock, rec))
	assert.Equal(t, 57, timer.Remaining())
}

func TestRoundTimer_WarningsFireOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer, rec := startRecordedTimer(clock, 32)
	defer timer.Stop()

	// rem 31, 30 (low), 29 ... 11, 10 (critical), 9
	for i := 0; i < 23; i++ {
		tickOnce(t, clock, rec)
	}

	assert.Equal(t, "low", recvString(t, rec.warnings))
	assert.Equal(t, "critical", recvString(t, rec.warnings))
	select {
	case level := <-rec.warnings:
		t.Fatalf("unexpected extra warning %q", level)
	default:
	}
}

func TestRoundTimer_CriticalImpliesLow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer, rec := startRecordedTimer(clock, 6)
	defer timer.Stop()

	// A countdown that starts inside the critical window goes straight to
	// critical without a separate low warning.
	tickOnce(t, clock, rec)
	tickOnce(t, clock, rec)

	assert.Equal(t, "critical", recvString(t, rec.warnings))
	select {
	case level := <-rec.warnings:
		t.Fatalf("unexpected extra warning %q", level)
	default:
	}
}

func TestRoundTimer_ExpiresOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, rec := startRecordedTimer(clock, 3)

	tickOnce(t, clock, rec) // rem 2
	tickOnce(t, clock, rec) // rem 1
	clock.Advance(time.Second)

	assert.Equal(t, "s1", recvString(t, rec.expiries))
	select {
	case <-rec.expiries:
		t.Fatal("expiry fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoundTimer_StopPreventsExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer, rec := startRecordedTimer(clock, 2)

	timer.Stop()
	timer.Stop() // idempotent
	clock.Advance(5 * time.Second)

	select {
	case <-rec.expiries:
		t.Fatal("expiry fired after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoundTimer_ExtendRearmsWarnings(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer, rec := startRecordedTimer(clock, 13)
	defer timer.Stop()

	// rem 12 fires the low warning.
	tickOnce(t, clock, rec)
	require.Equal(t, "low", recvString(t, rec.warnings))

	end := timer.Extend(30 * time.Second)
	assert.Equal(t, 42, timer.Remaining())
	assert.Equal(t, end, timer.EndTime())

	// Walk back under the low threshold: rem 41..30, warning fires again.
	for i := 0; i < 12; i++ {
		tickOnce(t, clock, rec)
	}
	assert.Equal(t, "low", recvString(t, rec.warnings))
}

func TestRoundTimer_RemainingNeverNegative(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := newRoundTimer("s1", clock.Now().Add(time.Second), 1, clock, nil, nil, nil)
	clock.Advance(10 * time.Second)
	assert.Equal(t, 0, timer.Remaining())
}
