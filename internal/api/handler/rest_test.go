package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swipedine/backend/internal/api/handler"
	"swipedine/backend/internal/config"
	"swipedine/backend/internal/models"
	"swipedine/backend/internal/sessionhub"
)

// stubStorage is an in-memory no-op vote store for handler tests; the
// coordinator paths exercised here never need durable reads.
type stubStorage struct{}

func (stubStorage) InsertVote(*models.Vote) error { return nil }
func (stubStorage) ListVotesForRound(string, int) ([]models.Vote, error) { return nil, nil }
func (stubStorage) HasUserVoted(string, string, string, int) (bool, error) { return false, nil }
func (stubStorage) SaveSnapshot(*models.SessionSnapshot) error { return nil }
func (stubStorage) GetSnapshot(string) (*models.SessionSnapshot, error) { return nil, nil }
func (stubStorage) DeleteSnapshot(string) error { return nil }
func (stubStorage) PublishBus(models.BusMessage) error { return nil }

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: string(testSecret)}
	coord := sessionhub.NewCoordinator(stubStorage{})
	hub := sessionhub.NewHub(coord, stubStorage{}, "test")
	h := handler.NewHandler(hub, coord, cfg)

	router := gin.New()
	router.POST("/sessions/:id/join", h.JoinSession)
	router.POST("/sessions/:id/votes", h.SubmitVote)
	router.GET("/sessions/:id", h.GetSessionState)
	return router
}

func bearerRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	token, err := handler.GenerateToken("u1", "alice", testSecret)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestJoinSession_RequiresAuth(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/join", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AUTHENTICATION_FAILED", resp["code"])
}

func TestJoinThenReadState(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(t, http.MethodPost, "/sessions/s1/join", map[string]string{"groupId": "g1"}))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(t, http.MethodGet, "/sessions/s1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var snap models.SessionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, models.StatusPending, snap.Status)
	require.Len(t, snap.Users, 1)
	assert.True(t, snap.Users[0].IsHost)
}

func TestGetSessionState_UnknownSession(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(t, http.MethodGet, "/sessions/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitVote_ConflictOnWrongState(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(t, http.MethodPost, "/sessions/s1/join", map[string]string{"groupId": "g1"}))
	require.Equal(t, http.StatusOK, w.Code)

	// Voting before the session starts is rejected with a stable code.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(t, http.MethodPost, "/sessions/s1/votes", map[string]any{
		"itemId":    "R1",
		"voteValue": "like",
	}))

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_STATE", resp["code"])
}
