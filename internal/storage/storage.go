package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"swipedine/backend/internal/config"
	"swipedine/backend/internal/models"
)

// ErrDuplicateVote is returned by InsertVote when the composite unique
// constraint on (session, user, item, round) rejects the row. The caller
// treats it as an idempotent no-op, not a fault.
var ErrDuplicateVote = errors.New("duplicate vote")

// Storage is the collaborator surface the coordinator and gateway depend
// on: durable vote rows in Postgres, plus the shared ephemeral state store
// (TTL'd session snapshots and the pub/sub bus) in Redis.
type Storage interface {
	InsertVote(vote *models.Vote) error
	ListVotesForRound(sessionID string, round int) ([]models.Vote, error)
	HasUserVoted(sessionID, userID, itemID string, round int) (bool, error)

	SaveSnapshot(snap *models.SessionSnapshot) error
	GetSnapshot(sessionID string) (*models.SessionSnapshot, error)
	DeleteSnapshot(sessionID string) error

	PublishBus(msg models.BusMessage) error
}

// Service implements Storage over GORM + go-redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context

	SnapshotTTL time.Duration
}

// NewStorageService wires the two stores together.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:          db,
		Redis:       rdb,
		Ctx:         context.Background(),
		SnapshotTTL: config.SnapshotTTL,
	}
}

// InsertVote stores one swipe. Duplicate rows surface as ErrDuplicateVote;
// any other failure is retried a bounded number of times before being
// returned.
func (s *Service) InsertVote(vote *models.Vote) error {
	var err error
	for attempt := 0; attempt <= config.StoreRetries; attempt++ {
		err = s.DB.Create(vote).Error
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateVote
		}
		log.Warn().Err(err).
			Str("session_id", vote.SessionID).
			Str("user_id", vote.UserID).
			Int("attempt", attempt+1).
			Msg("vote insert failed, retrying")
	}
	return fmt.Errorf("insert vote: %w", err)
}

func (s *Service) ListVotesForRound(sessionID string, round int) ([]models.Vote, error) {
	var votes []models.Vote
	err := s.DB.
		Where("session_id = ? AND round_number = ?", sessionID, round).
		Order("voted_at asc, id asc").
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// HasUserVoted is the cheap existence probe used to block duplicate
// submissions before hitting the insert path.
func (s *Service) HasUserVoted(sessionID, userID, itemID string, round int) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Vote{}).
		Where("session_id = ? AND user_id = ? AND item_id = ? AND round_number = ?",
			sessionID, userID, itemID, round).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PurgeVotesBefore deletes vote rows older than cutoff. Retention is
// driven by the maintenance CLI, never by request handling.
func (s *Service) PurgeVotesBefore(cutoff time.Time) (int64, error) {
	res := s.DB.Where("voted_at < ?", cutoff).Delete(&models.Vote{})
	return res.RowsAffected, res.Error
}

func snapshotKey(sessionID string) string {
	return "session:" + sessionID
}

// SaveSnapshot fully overwrites the shared mirror of a session and
// refreshes its TTL.
func (s *Service) SaveSnapshot(snap *models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.Redis.Set(s.Ctx, snapshotKey(snap.SessionID), data, s.SnapshotTTL).Err()
}

// GetSnapshot returns the shared mirror, or (nil, nil) when the key is
// missing or expired.
func (s *Service) GetSnapshot(sessionID string) (*models.SessionSnapshot, error) {
	data, err := s.Redis.Get(s.Ctx, snapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap models.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Service) DeleteSnapshot(sessionID string) error {
	return s.Redis.Del(s.Ctx, snapshotKey(sessionID)).Err()
}

// PublishBus fans a message out to every instance subscribed to the shared
// channel.
func (s *Service) PublishBus(msg models.BusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, config.BusChannel, data).Err()
}

// SubscribeBus opens the shared channel subscription for this instance.
func (s *Service) SubscribeBus() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, config.BusChannel)
}
