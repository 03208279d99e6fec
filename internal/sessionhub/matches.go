package sessionhub

import (
	"time"

	"swipedine/backend/internal/models"
	"swipedine/backend/internal/storage"
)

// MatchEngine is the pure computation over a round's vote set. It holds no
// session state of its own; every call loads the votes it needs from the
// durable store.
type MatchEngine struct {
	Storage storage.Storage
}

func NewMatchEngine(s storage.Storage) *MatchEngine {
	return &MatchEngine{Storage: s}
}

// CalculateMatches groups the round's votes by item and returns every item
// whose distinct likers satisfy the quorum: all members when requireAll is
// set, otherwise ceil(totalUsers/2). Results keep item discovery order
// (first vote seen for the item); ranking is a presentation concern.
func (e *MatchEngine) CalculateMatches(sessionID string, round, totalUsers int, requireAll bool, now time.Time) ([]models.MatchResult, error) {
	votes, err := e.Storage.ListVotesForRound(sessionID, round)
	if err != nil {
		return nil, err
	}
	if totalUsers == 0 {
		return nil, nil
	}

	required := totalUsers
	if !requireAll {
		required = (totalUsers + 1) / 2
	}

	type itemVotes struct {
		item   models.Item
		likers map[string]bool
		order  []string
	}
	byItem := make(map[string]*itemVotes)
	var itemOrder []string

	for _, v := range votes {
		iv, ok := byItem[v.ItemID]
		if !ok {
			iv = &itemVotes{item: v.Item(), likers: make(map[string]bool)}
			byItem[v.ItemID] = iv
			itemOrder = append(itemOrder, v.ItemID)
		}
		if v.VoteValue == models.VoteLike && !iv.likers[v.UserID] {
			iv.likers[v.UserID] = true
			iv.order = append(iv.order, v.UserID)
		}
	}

	var matches []models.MatchResult
	for _, itemID := range itemOrder {
		iv := byItem[itemID]
		if len(iv.likers) >= required {
			matches = append(matches, models.MatchResult{
				SessionID:      sessionID,
				Round:          round,
				Item:           iv.item,
				MatchedUserIDs: append([]string(nil), iv.order...),
				Timestamp:      now,
			})
		}
	}
	return matches, nil
}

// VotingProgress reports who has voted this round, who has not, and the
// per-item like/dislike/skip tally. Skips count toward participation but
// never toward a match.
func (e *MatchEngine) VotingProgress(sessionID string, round int, members []models.SessionUser) (*models.VotingProgress, error) {
	votes, err := e.Storage.ListVotesForRound(sessionID, round)
	if err != nil {
		return nil, err
	}

	voted := make(map[string]bool)
	tallies := make(map[string]*models.ItemTally)
	var itemOrder []string

	for _, v := range votes {
		voted[v.UserID] = true
		t, ok := tallies[v.ItemID]
		if !ok {
			t = &models.ItemTally{ItemID: v.ItemID}
			tallies[v.ItemID] = t
			itemOrder = append(itemOrder, v.ItemID)
		}
		switch v.VoteValue {
		case models.VoteLike:
			t.Likes++
		case models.VoteDislike:
			t.Dislikes++
		case models.VoteSkip:
			t.Skips++
		}
	}

	progress := &models.VotingProgress{
		SessionID:  sessionID,
		Round:      round,
		TotalUsers: len(members),
		VotedUsers: len(voted),
	}
	for _, m := range members {
		if !voted[m.UserID] {
			progress.NonVoters = append(progress.NonVoters, m.UserID)
		}
	}
	for _, itemID := range itemOrder {
		progress.Items = append(progress.Items, *tallies[itemID])
	}
	return progress, nil
}

// HasUserVoted is a pass-through existence check used before the full
// insert path.
func (e *MatchEngine) HasUserVoted(sessionID, userID, itemID string, round int) (bool, error) {
	return e.Storage.HasUserVoted(sessionID, userID, itemID, round)
}
