package models

import "time"

// Inbound event types (client -> gateway).
const (
	EventJoinSession  = "join_session"
	EventLeaveSession = "leave_session"
	EventStartSession = "start_session"
	EventSwipeVote    = "swipe_vote"
	EventSkipItem     = "skip_item"
	EventExtendTimer  = "extend_timer"
	EventNextRound    = "next_round"
	EventEndSession   = "end_session"
	EventHeartbeat    = "heartbeat"
)

// Outbound event types (gateway -> client).
const (
	EventSessionState   = "session_state"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventVoteTally      = "vote_tally"
	EventRoundComplete  = "round_complete"
	EventNewItem        = "new_item"
	EventTimerTick      = "timer_tick"
	EventTimerWarning   = "timer_warning"
	EventTimerExpired   = "timer_expired"
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventHostChanged    = "host_changed"
	EventError          = "error"
)

// ClientEvent is the single inbound envelope; which fields matter depends
// on Type.
type ClientEvent struct {
	Type              string    `json:"type"`
	SessionID         string    `json:"sessionId,omitempty"`
	GroupID           string    `json:"groupId,omitempty"`
	ItemID            string    `json:"itemId,omitempty"`
	VoteValue         VoteValue `json:"voteValue,omitempty"`
	ItemSnapshot      *Item     `json:"itemSnapshot,omitempty"`
	Item              *Item     `json:"item,omitempty"`
	AdditionalSeconds int       `json:"additionalSeconds,omitempty"`
	TimeLimitSeconds  int       `json:"timeLimitSeconds,omitempty"`
}

// ServerEvent is the outbound envelope written to client connections and
// relayed across instances over the shared bus.
type ServerEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

type UserJoinedPayload struct {
	User       SessionUser `json:"user"`
	TotalUsers int         `json:"totalUsers"`
}

type UserLeftPayload struct {
	UserID     string `json:"userId"`
	TotalUsers int    `json:"totalUsers"`
}

type VoteTallyPayload struct {
	UserID        string    `json:"userId"`
	VoteValue     VoteValue `json:"voteValue"`
	TotalVotes    int       `json:"totalVotes"`
	RequiredVotes int       `json:"requiredVotes"`
}

type RoundCompletePayload struct {
	Round     int           `json:"round"`
	Matches   []MatchResult `json:"matches"`
	NextRound *int          `json:"nextRound,omitempty"`
}

type NewItemPayload struct {
	Item  Item `json:"item"`
	Round int  `json:"round"`
}

type TimerTickPayload struct {
	Remaining int `json:"remaining"`
}

// TimerWarningPayload severities.
const (
	WarningLevelLow      = "low"
	WarningLevelCritical = "critical"
)

type TimerWarningPayload struct {
	Remaining int    `json:"remaining"`
	Level     string `json:"level"`
}

type SessionStartedPayload struct {
	StartTime time.Time `json:"startTime"`
}

type SessionEndedPayload struct {
	EndTime      time.Time     `json:"endTime"`
	FinalMatches []MatchResult `json:"finalMatches"`
}

type HostChangedPayload struct {
	NewHostID string `json:"newHostId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// Bus message kinds for the cross-instance channel.
const (
	BusKindEvent     = "event"
	BusKindTimerSync = "timer_sync"
)

// BusMessage is the envelope published on the shared pub/sub channel so
// every instance can rebroadcast to its locally connected clients. Origin
// carries the publishing instance id; an instance never re-handles its
// own messages.
type BusMessage struct {
	Kind      string       `json:"kind"`
	Origin    string       `json:"origin"`
	SessionID string       `json:"sessionId"`
	Event     *ServerEvent `json:"event,omitempty"`
	Timer     *TimerSync   `json:"timer,omitempty"`
}

// TimerSync announces a started or extended round timer. Receiving
// instances run their own local countdown from EndTime and never
// re-publish.
type TimerSync struct {
	SessionID       string    `json:"sessionId"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int       `json:"durationSeconds"`
}
