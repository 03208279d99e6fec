package sessionhub

import "swipedine/backend/internal/models"

// Client is one authenticated connection. It abstracts the underlying
// transport so the hub can manage websocket connections (and test doubles)
// uniformly.
type Client interface {
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string
	// GetUsername returns the display name bound at connect time.
	GetUsername() string
	// GetSocketID identifies this particular connection; a user who
	// reconnects gets a new socket id bound to the same membership.
	GetSocketID() string

	// GetSessionID returns the session broadcast group the connection is
	// subscribed to, or "" before joining.
	GetSessionID() string
	// SetSessionID subscribes the connection to a session's broadcast
	// group. Called by the hub after a successful join.
	SetSessionID(string)

	// GetSendChannel is where the hub delivers outbound events for this
	// connection.
	GetSendChannel() chan<- models.ServerEvent

	// Run starts the connection's read and write pumps.
	Run()
	// Close shuts the connection's send path down.
	Close()
}
