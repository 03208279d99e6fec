package sessionhub

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"swipedine/backend/internal/config"
	"swipedine/backend/internal/models"
)

// RoundTimer is the single cancellable countdown handle for one session's
// round. The coordinator that starts a round owns its timer and tears it
// down on every transition out of voting; instances that learn about the
// timer over the bus run a follower timer that only feeds their local
// broadcast.
type RoundTimer struct {
	sessionID string
	clock     clockwork.Clock

	mu            sync.Mutex
	endTime       time.Time
	duration      int
	firedLow      bool
	firedCritical bool

	onTick    func(sessionID string, remaining int)
	onWarning func(sessionID string, remaining int, level string)
	onExpire  func(sessionID string)

	done     chan struct{}
	stopOnce sync.Once
}

func newRoundTimer(
	sessionID string,
	endTime time.Time,
	durationSeconds int,
	clock clockwork.Clock,
	onTick func(string, int),
	onWarning func(string, int, string),
	onExpire func(string),
) *RoundTimer {
	return &RoundTimer{
		sessionID: sessionID,
		clock:     clock,
		endTime:   endTime,
		duration:  durationSeconds,
		onTick:    onTick,
		onWarning: onWarning,
		onExpire:  onExpire,
		done:      make(chan struct{}),
	}
}

// Start launches the countdown goroutine.
func (t *RoundTimer) Start() {
	go t.run()
}

// Stop cancels the countdown. Safe to call more than once. An expiry that
// raced Stop may still invoke the callback; callers that care must check
// the timer is still the one they registered.
func (t *RoundTimer) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// Remaining is the whole seconds left, never negative.
func (t *RoundTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

func (t *RoundTimer) remainingLocked() int {
	rem := int(t.endTime.Sub(t.clock.Now()).Seconds())
	if rem < 0 {
		return 0
	}
	return rem
}

// EndTime returns the current deadline.
func (t *RoundTimer) EndTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endTime
}

// Extend pushes the deadline forward and re-arms any warning whose
// threshold the new remaining time sits above again.
func (t *RoundTimer) Extend(additional time.Duration) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endTime = t.endTime.Add(additional)
	rem := t.remainingLocked()
	if rem > config.WarnRemainingLow {
		t.firedLow = false
	}
	if rem > config.WarnRemainingCritical {
		t.firedCritical = false
	}
	return t.endTime
}

func (t *RoundTimer) run() {
	ticker := t.clock.NewTicker(config.TimerTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.Chan():
			rem, low, critical, expired := t.step()
			if expired {
				if t.onExpire != nil {
					t.onExpire(t.sessionID)
				}
				return
			}
			if t.onTick != nil {
				t.onTick(t.sessionID, rem)
			}
			if low && t.onWarning != nil {
				t.onWarning(t.sessionID, rem, models.WarningLevelLow)
			}
			if critical && t.onWarning != nil {
				t.onWarning(t.sessionID, rem, models.WarningLevelCritical)
			}
		}
	}
}

// step advances the warning state machine for one tick and reports which
// notifications are due.
func (t *RoundTimer) step() (rem int, low, critical, expired bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rem = t.remainingLocked()
	if rem <= 0 {
		expired = true
		return
	}
	if rem <= config.WarnRemainingCritical && !t.firedCritical {
		t.firedCritical = true
		// The low warning is implied once critical is reached.
		t.firedLow = true
		critical = true
		return
	}
	if rem <= config.WarnRemainingLow && !t.firedLow {
		t.firedLow = true
		low = true
	}
	return
}
