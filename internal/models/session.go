package models

import (
	"sort"
	"time"
)

// SessionStatus is the lifecycle state of a group dining session.
// Transitions: pending -> active -> voting -> completed, with cancelled
// reachable from any non-terminal state. Only voting is re-entered
// (once per round).
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusActive    SessionStatus = "active"
	StatusVoting    SessionStatus = "voting"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// SessionSettings is fixed for the lifetime of a session.
type SessionSettings struct {
	MaxRounds       int    `json:"maxRounds"`
	SecondsPerRound int    `json:"secondsPerRound"`
	EnergyLevel     string `json:"energyLevel"`
	RequireAllVotes bool   `json:"requireAllVotes"`
}

// SessionUser is one member of a session. Exactly one member has
// IsHost=true while the session is non-empty.
type SessionUser struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
	// SocketID is the transient connection binding; rebound on reconnect
	// and never serialized to clients.
	SocketID string `json:"-"`
}

// TimerState describes the single countdown attached to a session while
// a round is open for voting.
type TimerState struct {
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int       `json:"durationSeconds"`
	IsActive        bool      `json:"isActive"`
}

// Session is the in-memory authority for one group decision. It is owned
// by the coordinator instance that holds it and mirrored to the shared
// store as a SessionSnapshot.
type Session struct {
	ID           string
	GroupID      string
	Status       SessionStatus
	CurrentRound int
	Settings     SessionSettings
	Users        map[string]*SessionUser
	// VotedUserIDs is the set of users who cast at least one vote in the
	// current round; reset on every round change.
	VotedUserIDs map[string]bool
	// RoundVotes is the fast-path duplicate check: userID -> itemID -> seen,
	// for the current round only. The durable store's unique constraint is
	// the final arbiter across instances.
	RoundVotes  map[string]map[string]bool
	CurrentItem *Item
	Timer       *TimerState
	CreatedAt   time.Time
}

// NewSession returns a pending session with no members.
func NewSession(id, groupID string, settings SessionSettings, now time.Time) *Session {
	return &Session{
		ID:           id,
		GroupID:      groupID,
		Status:       StatusPending,
		CurrentRound: 1,
		Settings:     settings,
		Users:        make(map[string]*SessionUser),
		VotedUserIDs: make(map[string]bool),
		RoundVotes:   make(map[string]map[string]bool),
		CreatedAt:    now,
	}
}

// RequiredVotes is the quorum for the current round: every member when
// RequireAllVotes is set, otherwise a majority (ceil of half).
func (s *Session) RequiredVotes() int {
	n := len(s.Users)
	if s.Settings.RequireAllVotes {
		return n
	}
	return (n + 1) / 2
}

// Host returns the current host, or nil for an empty session.
func (s *Session) Host() *SessionUser {
	for _, u := range s.Users {
		if u.IsHost {
			return u
		}
	}
	return nil
}

// ResetRound clears all per-round vote tracking and the item under vote.
func (s *Session) ResetRound() {
	s.VotedUserIDs = make(map[string]bool)
	s.RoundVotes = make(map[string]map[string]bool)
	s.CurrentItem = nil
}

// Snapshot builds the externally visible projection of the session.
// TimeRemaining is derived from the timer end and is never negative.
func (s *Session) Snapshot(now time.Time) *SessionSnapshot {
	snap := &SessionSnapshot{
		SessionID:    s.ID,
		GroupID:      s.GroupID,
		Status:       s.Status,
		CurrentRound: s.CurrentRound,
		Settings:     s.Settings,
		CurrentItem:  s.CurrentItem,
		UpdatedAt:    now,
	}
	for _, u := range s.Users {
		snap.Users = append(snap.Users, *u)
	}
	sortUsersByJoin(snap.Users)
	for id := range s.VotedUserIDs {
		snap.VotedUserIDs = append(snap.VotedUserIDs, id)
	}
	if s.Timer != nil && s.Timer.IsActive {
		end := s.Timer.EndTime
		snap.TimerEndTime = &end
		if rem := int(end.Sub(now).Seconds()); rem > 0 {
			snap.TimeRemaining = rem
		}
	}
	return snap
}

// SessionSnapshot is the shared-store mirror of a Session, always written
// as a full overwrite with a TTL refresh.
type SessionSnapshot struct {
	SessionID     string          `json:"sessionId"`
	GroupID       string          `json:"groupId"`
	Status        SessionStatus   `json:"status"`
	CurrentRound  int             `json:"currentRound"`
	Settings      SessionSettings `json:"settings"`
	Users         []SessionUser   `json:"users"`
	VotedUserIDs  []string        `json:"votedUserIds"`
	CurrentItem   *Item           `json:"currentItem,omitempty"`
	TimerEndTime  *time.Time      `json:"timerEndTime,omitempty"`
	TimeRemaining int             `json:"timeRemaining"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func sortUsersByJoin(users []SessionUser) {
	sort.Slice(users, func(i, j int) bool {
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})
}
