package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"swipedine/backend/internal/config"
	"swipedine/backend/internal/models"
	"swipedine/backend/internal/sessionhub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is delegated to the deployment's proxy layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates the connection and hands it to the hub. A
// missing or invalid credential refuses the connection before the
// upgrade.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID, username, ok := h.identityFromRequest(c)
	if !ok {
		// Browsers cannot set headers on websocket dials, so the token may
		// arrive as a query parameter instead.
		if token := c.Query("token"); token != "" {
			var err error
			userID, username, err = ValidateToken(token, []byte(h.Config.JWTSecret))
			ok = err == nil
		}
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": sessionhub.ErrAuthenticationFailed.Message,
			"code":  sessionhub.ErrAuthenticationFailed.Code,
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
		return
	}

	client := &sessionhub.WebSocketClient{
		UserID:   userID,
		Username: username,
		SocketID: uuid.New().String(),
		Conn:     conn,
		Hub:      h.Hub,
		Send:     make(chan models.ServerEvent, config.ClientSendBuffer),
	}

	h.Hub.RegisterCh <- client
	client.Run()
}
