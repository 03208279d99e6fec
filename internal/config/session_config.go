package config

import "time"

const (
	// Session defaults, applied when a session is created.
	DefaultMaxRounds       = 10
	DefaultSecondsPerRound = 30
	DefaultEnergyLevel     = "normal"

	// Starting a session needs at least this many joined members.
	MinParticipants = 2

	// Round timer.
	TimerTickInterval     = time.Second
	WarnRemainingLow      = 30
	WarnRemainingCritical = 10

	// Shared-store snapshot lifetime; refreshed on every write so abandoned
	// sessions self-expire.
	SnapshotTTL = 30 * time.Minute

	// Shared pub/sub channel for cross-instance fan-out.
	BusChannel = "swipedine:events"

	// Channel buffers.
	ClientSendBuffer = 256
	NotifyBuffer     = 128

	// Bounded retries against the durable store before surfacing an
	// internal error.
	StoreRetries = 2
)
