package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// VoteValue is what a swipe means. Skips count toward round completion
// but never toward a match.
type VoteValue string

const (
	VoteLike    VoteValue = "like"
	VoteDislike VoteValue = "dislike"
	VoteSkip    VoteValue = "skip"
)

// Valid reports whether v is one of the three accepted values.
func (v VoteValue) Valid() bool {
	return v == VoteLike || v == VoteDislike || v == VoteSkip
}

// Vote is the durable record of one swipe. Rows are insert-only; the
// composite unique index is the cross-instance arbiter that makes a repeat
// vote for the same (session, user, item, round) impossible to store twice.
type Vote struct {
	ID          uint      `gorm:"primaryKey"`
	SessionID   string    `gorm:"type:text;not null;uniqueIndex:idx_vote_once,priority:1;index:idx_session_round,priority:1"`
	UserID      string    `gorm:"type:text;not null;uniqueIndex:idx_vote_once,priority:2"`
	ItemID      string    `gorm:"type:text;not null;uniqueIndex:idx_vote_once,priority:3"`
	RoundNumber int       `gorm:"not null;uniqueIndex:idx_vote_once,priority:4;index:idx_session_round,priority:2"`
	ItemType    ItemType  `gorm:"type:text;not null"`
	VoteValue   VoteValue `gorm:"type:text;not null"`
	// ItemSnapshot is the denormalized item as it looked at vote time.
	ItemSnapshot string         `gorm:"type:text"`
	ItemTags     pq.StringArray `gorm:"type:text[]"`
	VotedAt      time.Time      `gorm:"not null"`
}

// SetItemSnapshot stores the item JSON alongside the vote.
func (v *Vote) SetItemSnapshot(item *Item) error {
	if item == nil {
		return nil
	}
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	v.ItemSnapshot = string(data)
	v.ItemTags = item.Tags
	return nil
}

// Item reconstructs the snapshotted item. Falls back to the bare ids when
// no snapshot was recorded.
func (v *Vote) Item() Item {
	var item Item
	if v.ItemSnapshot != "" {
		if err := json.Unmarshal([]byte(v.ItemSnapshot), &item); err == nil && item.ID != "" {
			return item
		}
	}
	return Item{ID: v.ItemID, Type: v.ItemType}
}

// MatchResult is derived from the vote set of one round: an item that
// collected enough distinct likes to satisfy the quorum. Not persisted as
// its own row; recomputable from Votes.
type MatchResult struct {
	SessionID      string    `json:"sessionId"`
	Round          int       `json:"round"`
	Item           Item      `json:"item"`
	MatchedUserIDs []string  `json:"matchedUserIds"`
	Timestamp      time.Time `json:"timestamp"`
}

// VotingProgress is the read model behind UI nudging: who still has to
// vote this round, and how each item is doing.
type VotingProgress struct {
	SessionID  string      `json:"sessionId"`
	Round      int         `json:"round"`
	TotalUsers int         `json:"totalUsers"`
	VotedUsers int         `json:"votedUsers"`
	NonVoters  []string    `json:"nonVoters"`
	Items      []ItemTally `json:"items"`
}

// ItemTally counts votes by value for one item in one round.
type ItemTally struct {
	ItemID   string `json:"itemId"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	Skips    int    `json:"skips"`
}
