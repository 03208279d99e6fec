package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"swipedine/backend/internal/models"
	"swipedine/backend/internal/sessionhub"
)

// REST polling fallback for clients without a live websocket. The routes
// mirror the hub's inbound events onto the same coordinator operations.

func statusFor(err error) int {
	var ce *sessionhub.CoordError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	switch ce {
	case sessionhub.ErrSessionNotFound:
		return http.StatusNotFound
	case sessionhub.ErrPermissionDenied:
		return http.StatusForbidden
	case sessionhub.ErrAuthenticationFailed:
		return http.StatusUnauthorized
	case sessionhub.ErrDuplicateVote, sessionhub.ErrInvalidState:
		return http.StatusConflict
	case sessionhub.ErrInsufficientParticipants, sessionhub.ErrUserAlreadyInSession, sessionhub.ErrInvalidPayload:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error": err.Error(),
		"code":  sessionhub.CodeOf(err),
	})
}

type joinRequest struct {
	GroupID string `json:"groupId"`
}

// JoinSession is the polling-path createOrJoinSession.
func (h *Handler) JoinSession(c *gin.Context) {
	userID, username, ok := h.identityFromRequest(c)
	if !ok {
		respondError(c, sessionhub.ErrAuthenticationFailed)
		return
	}
	var req joinRequest
	_ = c.ShouldBindJSON(&req)

	snap, err := h.Coordinator.JoinOrCreate(c.Param("id"), userID, username, req.GroupID, "")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type voteRequest struct {
	ItemID       string           `json:"itemId" binding:"required"`
	VoteValue    models.VoteValue `json:"voteValue" binding:"required"`
	ItemSnapshot *models.Item     `json:"itemSnapshot"`
}

// SubmitVote is the polling-path vote submission.
func (h *Handler) SubmitVote(c *gin.Context) {
	userID, _, ok := h.identityFromRequest(c)
	if !ok {
		respondError(c, sessionhub.ErrAuthenticationFailed)
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, sessionhub.ErrInvalidPayload)
		return
	}

	vote := &models.Vote{
		SessionID: c.Param("id"),
		UserID:    userID,
		ItemID:    req.ItemID,
		VoteValue: req.VoteValue,
	}
	if req.ItemSnapshot != nil {
		if err := req.ItemSnapshot.Validate(); err != nil {
			respondError(c, sessionhub.ErrInvalidPayload)
			return
		}
		vote.ItemType = req.ItemSnapshot.Type
		if err := vote.SetItemSnapshot(req.ItemSnapshot); err != nil {
			respondError(c, sessionhub.ErrInvalidPayload)
			return
		}
	}

	result, err := h.Coordinator.SubmitVote(vote)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":         result.Snapshot,
		"isRoundComplete": result.IsRoundComplete,
		"matches":         result.Matches,
	})
}

type presentItemRequest struct {
	Item             models.Item `json:"item" binding:"required"`
	TimeLimitSeconds int         `json:"timeLimitSeconds"`
}

// PresentItem opens a voting round with the given item; called by the
// outer API layer once it has fetched a suggestion.
func (h *Handler) PresentItem(c *gin.Context) {
	if _, _, ok := h.identityFromRequest(c); !ok {
		respondError(c, sessionhub.ErrAuthenticationFailed)
		return
	}
	var req presentItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, sessionhub.ErrInvalidPayload)
		return
	}
	snap, err := h.Coordinator.PresentItem(c.Param("id"), req.Item, req.TimeLimitSeconds)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetSessionState is the read-only snapshot projection.
func (h *Handler) GetSessionState(c *gin.Context) {
	if _, _, ok := h.identityFromRequest(c); !ok {
		respondError(c, sessionhub.ErrAuthenticationFailed)
		return
	}
	snap, err := h.Coordinator.GetSnapshot(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetSessionMatches recomputes the current round's matches.
func (h *Handler) GetSessionMatches(c *gin.Context) {
	if _, _, ok := h.identityFromRequest(c); !ok {
		respondError(c, sessionhub.ErrAuthenticationFailed)
		return
	}
	matches, err := h.Coordinator.GetMatches(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// GetVotingProgress reports who still has to vote this round.
func (h *Handler) GetVotingProgress(c *gin.Context) {
	if _, _, ok := h.identityFromRequest(c); !ok {
		respondError(c, sessionhub.ErrAuthenticationFailed)
		return
	}
	progress, err := h.Coordinator.GetProgress(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
