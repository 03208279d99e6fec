package handler

import (
	"swipedine/backend/internal/config"
	"swipedine/backend/internal/sessionhub"
)

// Handler carries the gateway dependencies into the gin routes.
type Handler struct {
	Hub         *sessionhub.Hub
	Coordinator *sessionhub.Coordinator
	Config      *config.Config
}

func NewHandler(hub *sessionhub.Hub, coord *sessionhub.Coordinator, cfg *config.Config) *Handler {
	return &Handler{Hub: hub, Coordinator: coord, Config: cfg}
}
