package sessionhub_test

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"swipedine/backend/internal/models"
)

// MockStorage is a testify mock of the storage.Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) InsertVote(vote *models.Vote) error {
	args := m.Called(vote)
	return args.Error(0)
}

func (m *MockStorage) ListVotesForRound(sessionID string, round int) ([]models.Vote, error) {
	args := m.Called(sessionID, round)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vote), args.Error(1)
}

func (m *MockStorage) HasUserVoted(sessionID, userID, itemID string, round int) (bool, error) {
	args := m.Called(sessionID, userID, itemID, round)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) SaveSnapshot(snap *models.SessionSnapshot) error {
	args := m.Called(snap)
	return args.Error(0)
}

func (m *MockStorage) GetSnapshot(sessionID string) (*models.SessionSnapshot, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionSnapshot), args.Error(1)
}

func (m *MockStorage) DeleteSnapshot(sessionID string) error {
	args := m.Called(sessionID)
	return args.Error(0)
}

func (m *MockStorage) PublishBus(msg models.BusMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

// newQuietStorage returns a mock with the write-through plumbing stubbed
// out, so tests only declare expectations for the calls they care about.
func newQuietStorage() *MockStorage {
	s := new(MockStorage)
	s.On("SaveSnapshot", mock.Anything).Return(nil)
	s.On("DeleteSnapshot", mock.Anything).Return(nil)
	s.On("PublishBus", mock.Anything).Return(nil)
	s.On("GetSnapshot", mock.Anything).Return(nil, nil)
	s.On("HasUserVoted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	return s
}

// MockClient is a test double for the sessionhub.Client interface.
type MockClient struct {
	userID    string
	username  string
	socketID  string
	sessionID string

	send      chan models.ServerEvent
	closeOnce sync.Once
}

func newMockClient(userID, username string) *MockClient {
	return &MockClient{
		userID:   userID,
		username: username,
		socketID: "sock-" + userID,
		send:     make(chan models.ServerEvent, 64),
	}
}

func (c *MockClient) GetUserID() string      { return c.userID }
func (c *MockClient) GetUsername() string    { return c.username }
func (c *MockClient) GetSocketID() string    { return c.socketID }
func (c *MockClient) GetSessionID() string   { return c.sessionID }
func (c *MockClient) SetSessionID(id string) { c.sessionID = id }

func (c *MockClient) GetSendChannel() chan<- models.ServerEvent { return c.send }

func (c *MockClient) Run() {}

func (c *MockClient) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}
