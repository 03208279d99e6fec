package sessionhub

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"swipedine/backend/internal/config"
	"swipedine/backend/internal/models"
	"swipedine/backend/internal/storage"
)

// Notification is the typed message the coordinator hands to the gateway
// for delivery: an explicit bounded queue instead of observer callbacks,
// so delivery and backpressure stay visible.
type Notification struct {
	SessionID string
	Event     *models.ServerEvent
	// TimerSync, when set, announces a started or extended round timer on
	// the shared bus so other instances can run a follower countdown.
	TimerSync *models.TimerSync
	// LocalOnly notifications are delivered to this instance's connections
	// and never published on the bus (each instance runs its own ticker).
	LocalOnly bool
}

// VoteResult is what an accepted vote produced: the resulting snapshot,
// whether the round's quorum was reached by this vote, and any matches
// found when it was.
type VoteResult struct {
	Snapshot        *models.SessionSnapshot
	IsRoundComplete bool
	Matches         []models.MatchResult
}

// Coordinator is the per-instance authority for session membership, round
// progression, and timer lifecycle. A single mutex serializes every
// operation, so each inbound event is processed to completion before the
// next one; cross-instance races are settled by the durable store's unique
// vote constraint.
type Coordinator struct {
	mu             sync.Mutex
	sessions       map[string]*models.Session
	userSession    map[string]string
	timers         map[string]*RoundTimer
	followerTimers map[string]*RoundTimer

	storage  storage.Storage
	engine   *MatchEngine
	clock    clockwork.Clock
	notifyCh chan Notification
	defaults models.SessionSettings
}

// NewCoordinator builds a coordinator with the production clock.
func NewCoordinator(s storage.Storage) *Coordinator {
	return NewCoordinatorWithClock(s, clockwork.NewRealClock())
}

// NewCoordinatorWithClock allows injecting a fake clock in tests.
func NewCoordinatorWithClock(s storage.Storage, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		sessions:       make(map[string]*models.Session),
		userSession:    make(map[string]string),
		timers:         make(map[string]*RoundTimer),
		followerTimers: make(map[string]*RoundTimer),
		storage:        s,
		engine:         NewMatchEngine(s),
		clock:          clock,
		notifyCh:       make(chan Notification, config.NotifyBuffer),
		defaults: models.SessionSettings{
			MaxRounds:       config.DefaultMaxRounds,
			SecondsPerRound: config.DefaultSecondsPerRound,
			EnergyLevel:     config.DefaultEnergyLevel,
			RequireAllVotes: true,
		},
	}
}

// SetDefaultSettings overrides the settings applied to newly created
// sessions. Existing sessions keep the settings they were created with.
func (c *Coordinator) SetDefaultSettings(settings models.SessionSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults = settings
}

// Notifications is the queue the gateway consumes.
func (c *Coordinator) Notifications() <-chan Notification {
	return c.notifyCh
}

// JoinOrCreate adds a user to a session, creating it when it does not
// exist anywhere yet. Rejoining is idempotent: the membership entry stays
// unique and only the connection binding is refreshed. A user bound to a
// different session is rejected.
func (c *Coordinator) JoinOrCreate(sessionID, userID, username, groupID, socketID string) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bound, ok := c.userSession[userID]; ok && bound != sessionID {
		return nil, ErrUserAlreadyInSession
	}

	sess, err := c.getSessionLocked(sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	if sess == nil {
		sess = models.NewSession(sessionID, groupID, c.defaults, c.clock.Now())
		c.sessions[sessionID] = sess
		log.Info().Str("session_id", sessionID).Str("group_id", groupID).Msg("session created")
	}

	if u, ok := sess.Users[userID]; ok {
		if socketID != "" {
			u.SocketID = socketID
		}
		if username != "" {
			u.Username = username
		}
	} else {
		if sess.Status.Terminal() {
			return nil, ErrInvalidState
		}
		sess.Users[userID] = &models.SessionUser{
			UserID:   userID,
			Username: username,
			IsHost:   len(sess.Users) == 0,
			JoinedAt: c.clock.Now(),
			SocketID: socketID,
		}
		c.emit(Notification{
			SessionID: sessionID,
			Event: c.event(sessionID, models.EventUserJoined, models.UserJoinedPayload{
				User:       *sess.Users[userID],
				TotalUsers: len(sess.Users),
			}),
		})
	}
	c.userSession[userID] = sessionID

	snap := c.saveSnapshotLocked(sess)
	c.emitState(sess, snap)
	return snap, nil
}

// RebindConnection refreshes the transient connection handle without
// touching membership.
func (c *Coordinator) RebindConnection(userID, socketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID, ok := c.userSession[userID]
	if !ok {
		return
	}
	if sess, ok := c.sessions[sessionID]; ok {
		if u, ok := sess.Users[userID]; ok {
			u.SocketID = socketID
		}
	}
}

// Leave removes the user's membership. The host role transfers to the
// earliest-joined remaining member; the last departure tears the session
// down everywhere. Returns the resulting snapshot, or nil when the session
// no longer exists.
func (c *Coordinator) Leave(userID string) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessionID, ok := c.userSession[userID]
	if !ok {
		return nil, nil
	}
	delete(c.userSession, userID)

	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	leaving, ok := sess.Users[userID]
	if !ok {
		return nil, nil
	}
	delete(sess.Users, userID)
	delete(sess.VotedUserIDs, userID)

	if len(sess.Users) == 0 {
		c.teardownLocked(sess)
		c.emit(Notification{
			SessionID: sessionID,
			Event: c.event(sessionID, models.EventUserLeft, models.UserLeftPayload{
				UserID: userID, TotalUsers: 0,
			}),
		})
		return nil, nil
	}

	if leaving.IsHost {
		next := earliestJoined(sess.Users)
		next.IsHost = true
		c.emit(Notification{
			SessionID: sessionID,
			Event: c.event(sessionID, models.EventHostChanged, models.HostChangedPayload{
				NewHostID: next.UserID,
			}),
		})
		log.Info().Str("session_id", sessionID).Str("new_host", next.UserID).Msg("host reassigned")
	}

	c.emit(Notification{
		SessionID: sessionID,
		Event: c.event(sessionID, models.EventUserLeft, models.UserLeftPayload{
			UserID: userID, TotalUsers: len(sess.Users),
		}),
	})
	snap := c.saveSnapshotLocked(sess)
	c.emitState(sess, snap)
	return snap, nil
}

// Start moves pending -> active. Host-only, and at least two members must
// have joined.
func (c *Coordinator) Start(sessionID, callerID string) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.requireHostLocked(sess, callerID); err != nil {
		return nil, err
	}
	if sess.Status != models.StatusPending {
		return nil, ErrInvalidState
	}
	if len(sess.Users) < config.MinParticipants {
		return nil, ErrInsufficientParticipants
	}

	sess.Status = models.StatusActive
	now := c.clock.Now()
	c.emit(Notification{
		SessionID: sessionID,
		Event:     c.event(sessionID, models.EventSessionStarted, models.SessionStartedPayload{StartTime: now}),
	})
	snap := c.saveSnapshotLocked(sess)
	c.emitState(sess, snap)
	return snap, nil
}

// PresentItem opens a voting round for the given item and starts the round
// timer, replacing any previous one. Valid from active, or from voting
// once the prior round has been cleared.
func (c *Coordinator) PresentItem(sessionID string, item models.Item, timeLimitSeconds int) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, ErrInvalidPayload
	}
	switch {
	case sess.Status == models.StatusActive:
	case sess.Status == models.StatusVoting && sess.CurrentItem == nil:
	default:
		return nil, ErrInvalidState
	}

	sess.Status = models.StatusVoting
	sess.ResetRound()
	sess.CurrentItem = &item

	duration := timeLimitSeconds
	if duration <= 0 {
		duration = sess.Settings.SecondsPerRound
	}
	sync := c.startTimerLocked(sess, duration)

	c.emit(Notification{
		SessionID: sessionID,
		Event: c.event(sessionID, models.EventNewItem, models.NewItemPayload{
			Item: item, Round: sess.CurrentRound,
		}),
	})
	c.emit(Notification{SessionID: sessionID, TimerSync: sync})
	snap := c.saveSnapshotLocked(sess)
	c.emitState(sess, snap)
	return snap, nil
}

// SubmitVote records one swipe, evaluates round completion, and applies
// the resulting transition. Duplicate votes for the same item and round
// are rejected without a new durable row; the unique constraint settles
// races between instances.
func (c *Coordinator) SubmitVote(vote *models.Vote) (*VoteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getSessionLocked(vote.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.StatusVoting && sess.Status != models.StatusActive {
		return nil, ErrInvalidState
	}
	if _, ok := sess.Users[vote.UserID]; !ok {
		return nil, ErrPermissionDenied
	}
	if !vote.VoteValue.Valid() || vote.ItemID == "" {
		return nil, ErrInvalidPayload
	}

	if seen := sess.RoundVotes[vote.UserID]; seen != nil && seen[vote.ItemID] {
		return nil, ErrDuplicateVote
	}
	if sess.RoundVotes[vote.UserID] == nil && sess.VotedUserIDs[vote.UserID] {
		// A replica hydrated from a snapshot knows who voted this round but
		// not for which items; check the durable rows before the insert.
		voted, err := c.engine.HasUserVoted(sess.ID, vote.UserID, vote.ItemID, sess.CurrentRound)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("duplicate check failed; unique constraint remains the arbiter")
		} else if voted {
			c.markVotedLocked(sess, vote.UserID, vote.ItemID)
			return nil, ErrDuplicateVote
		}
	}

	vote.RoundNumber = sess.CurrentRound
	vote.VotedAt = c.clock.Now()
	if err := c.storage.InsertVote(vote); err != nil {
		if errors.Is(err, storage.ErrDuplicateVote) {
			c.markVotedLocked(sess, vote.UserID, vote.ItemID)
			return nil, ErrDuplicateVote
		}
		log.Error().Err(err).Str("session_id", vote.SessionID).Msg("vote insert failed")
		return nil, ErrInternal
	}
	c.markVotedLocked(sess, vote.UserID, vote.ItemID)

	c.emit(Notification{
		SessionID: sess.ID,
		Event: c.event(sess.ID, models.EventVoteTally, models.VoteTallyPayload{
			UserID:        vote.UserID,
			VoteValue:     vote.VoteValue,
			TotalVotes:    len(sess.VotedUserIDs),
			RequiredVotes: sess.RequiredVotes(),
		}),
	})

	result := &VoteResult{}
	if len(sess.VotedUserIDs) >= sess.RequiredVotes() {
		matches, err := c.engine.CalculateMatches(sess.ID, sess.CurrentRound, len(sess.Users), sess.Settings.RequireAllVotes, c.clock.Now())
		if err != nil {
			// The vote is durable; leave the round open and let the next
			// accepted vote or the timer re-evaluate.
			log.Error().Err(err).Str("session_id", sess.ID).Msg("match evaluation failed")
			result.Snapshot = c.saveSnapshotLocked(sess)
			return result, nil
		}
		result.IsRoundComplete = true
		result.Matches = matches
		c.finishRoundLocked(sess, matches)
	}
	result.Snapshot = c.saveSnapshotLocked(sess)
	c.emitState(sess, result.Snapshot)
	return result, nil
}

// NextRound is the host's manual advance: the current round is closed out
// with the same match-or-advance logic a completed quorum uses.
func (c *Coordinator) NextRound(sessionID, callerID string) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.requireHostLocked(sess, callerID); err != nil {
		return nil, err
	}
	if sess.Status != models.StatusVoting {
		return nil, ErrInvalidState
	}

	matches, err := c.engine.CalculateMatches(sess.ID, sess.CurrentRound, len(sess.Users), sess.Settings.RequireAllVotes, c.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Msg("match evaluation failed")
		return nil, ErrInternal
	}
	c.finishRoundLocked(sess, matches)
	snap := c.saveSnapshotLocked(sess)
	c.emitState(sess, snap)
	return snap, nil
}

// ExtendTimer pushes the running round timer's deadline forward and
// re-publishes the sync so every instance's countdown follows.
func (c *Coordinator) ExtendTimer(sessionID, callerID string, additionalSeconds int) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.requireHostLocked(sess, callerID); err != nil {
		return nil, err
	}
	timer, ok := c.timers[sessionID]
	if !ok || sess.Status != models.StatusVoting || additionalSeconds <= 0 {
		return nil, ErrInvalidState
	}

	end := timer.Extend(time.Duration(additionalSeconds) * time.Second)
	sess.Timer.EndTime = end
	sess.Timer.DurationSeconds += additionalSeconds

	c.emit(Notification{SessionID: sessionID, TimerSync: &models.TimerSync{
		SessionID:       sessionID,
		EndTime:         end,
		DurationSeconds: sess.Timer.DurationSeconds,
	}})
	snap := c.saveSnapshotLocked(sess)
	c.emitState(sess, snap)
	return snap, nil
}

// EndSession cancels a non-terminal session. Host-only; the cancellation
// is broadcast immediately and no further transitions are possible.
func (c *Coordinator) EndSession(sessionID, callerID string) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.requireHostLocked(sess, callerID); err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, ErrInvalidState
	}

	sess.Status = models.StatusCancelled
	c.stopTimersLocked(sessionID)
	sess.Timer = nil

	c.emit(Notification{
		SessionID: sessionID,
		Event: c.event(sessionID, models.EventSessionEnded, models.SessionEndedPayload{
			EndTime: c.clock.Now(),
		}),
	})
	snap := c.saveSnapshotLocked(sess)
	c.emitState(sess, snap)
	return snap, nil
}

// GetSnapshot serves reads for any instance: the live session when this
// instance holds it, the shared-store mirror otherwise.
func (c *Coordinator) GetSnapshot(sessionID string) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	if sess, ok := c.sessions[sessionID]; ok {
		snap := sess.Snapshot(c.clock.Now())
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	snap, err := c.storage.GetSnapshot(sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("snapshot read failed")
		return nil, ErrInternal
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}
	return snap, nil
}

// GetMatches recomputes the current round's matches from the vote store.
func (c *Coordinator) GetMatches(sessionID string) ([]models.MatchResult, error) {
	snap, err := c.GetSnapshot(sessionID)
	if err != nil {
		return nil, err
	}
	matches, err := c.engine.CalculateMatches(sessionID, snap.CurrentRound, len(snap.Users), snap.Settings.RequireAllVotes, c.clock.Now())
	if err != nil {
		return nil, ErrInternal
	}
	return matches, nil
}

// GetProgress reports who has voted in the current round and per-item
// tallies.
func (c *Coordinator) GetProgress(sessionID string) (*models.VotingProgress, error) {
	snap, err := c.GetSnapshot(sessionID)
	if err != nil {
		return nil, err
	}
	progress, err := c.engine.VotingProgress(sessionID, snap.CurrentRound, snap.Users)
	if err != nil {
		return nil, ErrInternal
	}
	return progress, nil
}

// SyncTimer handles a timer announcement from another instance: it starts
// a local follower countdown so this instance's clients see consistent
// ticks. A sync whose deadline already passed starts nothing; expiry
// handling belongs to the owner.
func (c *Coordinator) SyncTimer(sync models.TimerSync) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, owned := c.timers[sync.SessionID]; owned {
		return
	}
	remaining := sync.EndTime.Sub(c.clock.Now())
	if remaining <= 0 {
		return
	}
	if prev, ok := c.followerTimers[sync.SessionID]; ok {
		prev.Stop()
	}
	follower := newRoundTimer(
		sync.SessionID, sync.EndTime, sync.DurationSeconds, c.clock,
		c.timerTick, c.timerWarning,
		func(sessionID string) {
			c.mu.Lock()
			delete(c.followerTimers, sessionID)
			c.mu.Unlock()
		},
	)
	c.followerTimers[sync.SessionID] = follower
	follower.Start()

	if sess, ok := c.sessions[sync.SessionID]; ok {
		sess.Timer = &models.TimerState{
			EndTime:         sync.EndTime,
			DurationSeconds: sync.DurationSeconds,
			IsActive:        true,
		}
	}
}

// --- internals ---

// getSessionLocked returns the live session, hydrating a local replica
// from the shared store when another instance created it.
func (c *Coordinator) getSessionLocked(sessionID string) (*models.Session, error) {
	if sess, ok := c.sessions[sessionID]; ok {
		return sess, nil
	}
	snap, err := c.storage.GetSnapshot(sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("snapshot read failed")
		return nil, ErrInternal
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}
	sess := sessionFromSnapshot(snap)
	c.sessions[sessionID] = sess
	for _, u := range sess.Users {
		c.userSession[u.UserID] = sessionID
	}
	return sess, nil
}

func sessionFromSnapshot(snap *models.SessionSnapshot) *models.Session {
	sess := models.NewSession(snap.SessionID, snap.GroupID, snap.Settings, snap.UpdatedAt)
	sess.Status = snap.Status
	sess.CurrentRound = snap.CurrentRound
	sess.CurrentItem = snap.CurrentItem
	for i := range snap.Users {
		u := snap.Users[i]
		sess.Users[u.UserID] = &u
	}
	for _, id := range snap.VotedUserIDs {
		sess.VotedUserIDs[id] = true
	}
	if snap.TimerEndTime != nil {
		sess.Timer = &models.TimerState{
			EndTime:         *snap.TimerEndTime,
			DurationSeconds: snap.Settings.SecondsPerRound,
			IsActive:        true,
		}
	}
	return sess
}

func (c *Coordinator) requireHostLocked(sess *models.Session, callerID string) error {
	u, ok := sess.Users[callerID]
	if !ok || !u.IsHost {
		return ErrPermissionDenied
	}
	return nil
}

func (c *Coordinator) markVotedLocked(sess *models.Session, userID, itemID string) {
	sess.VotedUserIDs[userID] = true
	if sess.RoundVotes[userID] == nil {
		sess.RoundVotes[userID] = make(map[string]bool)
	}
	sess.RoundVotes[userID][itemID] = true
}

// finishRoundLocked applies the round-completion transition: a match (or
// exhausted rounds) completes the session, otherwise the round counter
// advances with cleared vote state and no timer until the next item.
func (c *Coordinator) finishRoundLocked(sess *models.Session, matches []models.MatchResult) {
	c.stopTimersLocked(sess.ID)
	sess.Timer = nil

	finished := sess.CurrentRound
	if len(matches) > 0 || sess.CurrentRound >= sess.Settings.MaxRounds {
		sess.Status = models.StatusCompleted
		c.emit(Notification{
			SessionID: sess.ID,
			Event: c.event(sess.ID, models.EventRoundComplete, models.RoundCompletePayload{
				Round: finished, Matches: matches,
			}),
		})
		c.emit(Notification{
			SessionID: sess.ID,
			Event: c.event(sess.ID, models.EventSessionEnded, models.SessionEndedPayload{
				EndTime: c.clock.Now(), FinalMatches: matches,
			}),
		})
		log.Info().Str("session_id", sess.ID).Int("round", finished).Int("matches", len(matches)).Msg("session completed")
		return
	}

	next := sess.CurrentRound + 1
	sess.CurrentRound = next
	sess.ResetRound()
	c.emit(Notification{
		SessionID: sess.ID,
		Event: c.event(sess.ID, models.EventRoundComplete, models.RoundCompletePayload{
			Round: finished, Matches: matches, NextRound: &next,
		}),
	})
}

func (c *Coordinator) startTimerLocked(sess *models.Session, durationSeconds int) *models.TimerSync {
	c.stopTimersLocked(sess.ID)
	end := c.clock.Now().Add(time.Duration(durationSeconds) * time.Second)
	var timer *RoundTimer
	timer = newRoundTimer(sess.ID, end, durationSeconds, c.clock,
		c.timerTick, c.timerWarning,
		func(sessionID string) { c.handleTimerExpired(sessionID, timer) })
	c.timers[sess.ID] = timer
	sess.Timer = &models.TimerState{
		EndTime:         end,
		DurationSeconds: durationSeconds,
		IsActive:        true,
	}
	timer.Start()
	return &models.TimerSync{
		SessionID:       sess.ID,
		EndTime:         end,
		DurationSeconds: durationSeconds,
	}
}

func (c *Coordinator) stopTimersLocked(sessionID string) {
	if t, ok := c.timers[sessionID]; ok {
		t.Stop()
		delete(c.timers, sessionID)
	}
	if t, ok := c.followerTimers[sessionID]; ok {
		t.Stop()
		delete(c.followerTimers, sessionID)
	}
}

func (c *Coordinator) teardownLocked(sess *models.Session) {
	c.stopTimersLocked(sess.ID)
	delete(c.sessions, sess.ID)
	if err := c.storage.DeleteSnapshot(sess.ID); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("snapshot delete failed")
	}
	log.Info().Str("session_id", sess.ID).Msg("session torn down")
}

// timerTick and timerWarning run on timer goroutines; they only enqueue
// local notifications and take no locks.
func (c *Coordinator) timerTick(sessionID string, remaining int) {
	c.emit(Notification{
		SessionID: sessionID,
		LocalOnly: true,
		Event:     c.event(sessionID, models.EventTimerTick, models.TimerTickPayload{Remaining: remaining}),
	})
}

func (c *Coordinator) timerWarning(sessionID string, remaining int, level string) {
	c.emit(Notification{
		SessionID: sessionID,
		LocalOnly: true,
		Event: c.event(sessionID, models.EventTimerWarning, models.TimerWarningPayload{
			Remaining: remaining, Level: level,
		}),
	})
}

// handleTimerExpired fires on the owning instance only: the round is
// closed out with the same match-or-advance logic as a completed quorum.
// The callback may have waited on the lock while a quorum vote or manual
// advance already closed its round; only the still-registered timer may
// act, otherwise a stale expiry would close out the fresh round too.
func (c *Coordinator) handleTimerExpired(sessionID string, fired *RoundTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timers[sessionID] != fired {
		return
	}
	delete(c.timers, sessionID)

	sess, ok := c.sessions[sessionID]
	if !ok || sess.Status != models.StatusVoting {
		return
	}
	c.emit(Notification{
		SessionID: sessionID,
		Event:     c.event(sessionID, models.EventTimerExpired, struct{}{}),
	})

	matches, err := c.engine.CalculateMatches(sess.ID, sess.CurrentRound, len(sess.Users), sess.Settings.RequireAllVotes, c.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Msg("match evaluation failed on expiry")
		matches = nil
	}
	c.finishRoundLocked(sess, matches)
	snap := c.saveSnapshotLocked(sess)
	c.emitState(sess, snap)
}

// saveSnapshotLocked mirrors the session to the shared store. A store
// failure degrades to local-only state; the TTL on the previous snapshot
// keeps stale mirrors from outliving abandonment.
func (c *Coordinator) saveSnapshotLocked(sess *models.Session) *models.SessionSnapshot {
	snap := sess.Snapshot(c.clock.Now())
	if err := c.storage.SaveSnapshot(snap); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("snapshot write failed; continuing local-only")
	}
	return snap
}

func (c *Coordinator) emitState(sess *models.Session, snap *models.SessionSnapshot) {
	c.emit(Notification{
		SessionID: sess.ID,
		Event:     c.event(sess.ID, models.EventSessionState, snap),
	})
}

func (c *Coordinator) event(sessionID, eventType string, payload any) *models.ServerEvent {
	return &models.ServerEvent{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		SentAt:    c.clock.Now(),
	}
}

// emit enqueues without blocking; a full queue drops the notification and
// logs, which keeps a slow consumer from stalling the state machine.
func (c *Coordinator) emit(n Notification) {
	select {
	case c.notifyCh <- n:
	default:
		log.Warn().Str("session_id", n.SessionID).Msg("notification queue full, dropping")
	}
}

func earliestJoined(users map[string]*models.SessionUser) *models.SessionUser {
	var earliest *models.SessionUser
	for _, u := range users {
		if earliest == nil || u.JoinedAt.Before(earliest.JoinedAt) ||
			(u.JoinedAt.Equal(earliest.JoinedAt) && u.UserID < earliest.UserID) {
			earliest = u
		}
	}
	return earliest
}
