package sessionhub

import (
	"time"

	"github.com/rs/zerolog/log"

	"swipedine/backend/internal/models"
	"swipedine/backend/internal/storage"
)

// InboundEvent pairs a decoded client event with the connection it arrived
// on.
type InboundEvent struct {
	Client Client
	Event  models.ClientEvent
}

// Hub is the network-facing side of the coordinator: it owns the set of
// locally connected clients, routes their events to coordinator
// operations, and relays coordinator notifications to every member of a
// session's broadcast group — locally and, via the shared bus, on every
// other instance.
type Hub struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	InboundCh    chan InboundEvent

	Coordinator *Coordinator
	Storage     storage.Storage

	// BusCh carries decoded bus messages from the subscription listener
	// into the dispatch loop.
	BusCh chan models.BusMessage

	instanceID string
}

// NewHub wires the hub to its coordinator and the shared store.
func NewHub(coord *Coordinator, s storage.Storage, instanceID string) *Hub {
	return &Hub{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		InboundCh:    make(chan InboundEvent),
		Coordinator:  coord,
		Storage:      s,
		BusCh:        make(chan models.BusMessage, 64),
		instanceID:   instanceID,
	}
}

// Run is the hub's single dispatch loop; every branch runs to completion
// before the next event is handled.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.RegisterCh:
			h.register(client)

		case client := <-h.UnregisterCh:
			h.unregister(client)

		case in := <-h.InboundCh:
			h.route(in.Client, in.Event)

		case n := <-h.Coordinator.Notifications():
			h.deliver(n)

		case msg := <-h.BusCh:
			h.handleBusMessage(msg)
		}
	}
}

func (h *Hub) register(client Client) {
	userID := client.GetUserID()
	if prev, ok := h.Clients[userID]; ok && prev != client {
		// Reconnect: the fresh connection supersedes the old binding.
		prev.Close()
	}
	h.Clients[userID] = client
	h.Coordinator.RebindConnection(userID, client.GetSocketID())
	log.Info().Str("user_id", userID).Str("socket_id", client.GetSocketID()).Msg("client registered")
}

func (h *Hub) unregister(client Client) {
	userID := client.GetUserID()
	current, ok := h.Clients[userID]
	if !ok || current != client {
		// A newer connection already replaced this one; nothing to tear down.
		return
	}
	delete(h.Clients, userID)
	client.Close()
	if _, err := h.Coordinator.Leave(userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("leave on disconnect failed")
	}
	log.Info().Str("user_id", userID).Msg("client unregistered")
}

// route maps one inbound event to its coordinator operation. Errors go
// back to the originating connection only, as a structured error event
// with a stable code; the session is never left partially mutated.
func (h *Hub) route(client Client, ev models.ClientEvent) {
	userID := client.GetUserID()

	var err error
	switch ev.Type {
	case models.EventJoinSession:
		if _, err = h.Coordinator.JoinOrCreate(ev.SessionID, userID, client.GetUsername(), ev.GroupID, client.GetSocketID()); err == nil {
			client.SetSessionID(ev.SessionID)
		}

	case models.EventLeaveSession:
		if _, err = h.Coordinator.Leave(userID); err == nil {
			client.SetSessionID("")
		}

	case models.EventStartSession:
		_, err = h.Coordinator.Start(ev.SessionID, userID)

	case models.EventSwipeVote:
		err = h.submitVote(userID, ev, ev.VoteValue)

	case models.EventSkipItem:
		err = h.submitVote(userID, ev, models.VoteSkip)

	case models.EventExtendTimer:
		_, err = h.Coordinator.ExtendTimer(ev.SessionID, userID, ev.AdditionalSeconds)

	case models.EventNextRound:
		_, err = h.Coordinator.NextRound(ev.SessionID, userID)

	case models.EventEndSession:
		_, err = h.Coordinator.EndSession(ev.SessionID, userID)

	case models.EventHeartbeat:
		// Liveness is handled by the websocket ping/pong deadlines; the
		// event itself needs no coordinator call.

	default:
		log.Warn().Str("type", ev.Type).Str("user_id", userID).Msg("unknown client event type")
		err = ErrInvalidPayload
	}

	if err != nil {
		h.sendError(client, err)
	}
}

func (h *Hub) submitVote(userID string, ev models.ClientEvent, value models.VoteValue) error {
	itemID := ev.ItemID
	if itemID == "" && ev.ItemSnapshot != nil {
		itemID = ev.ItemSnapshot.ID
	}
	vote := &models.Vote{
		SessionID: ev.SessionID,
		UserID:    userID,
		ItemID:    itemID,
		VoteValue: value,
	}
	if ev.ItemSnapshot != nil {
		if err := ev.ItemSnapshot.Validate(); err != nil {
			return ErrInvalidPayload
		}
		vote.ItemType = ev.ItemSnapshot.Type
		if err := vote.SetItemSnapshot(ev.ItemSnapshot); err != nil {
			return ErrInvalidPayload
		}
	}
	_, err := h.Coordinator.SubmitVote(vote)
	return err
}

// deliver fans a coordinator notification out to local members and, unless
// it is instance-local, onto the shared bus.
func (h *Hub) deliver(n Notification) {
	if n.Event != nil {
		h.broadcastLocal(n.SessionID, *n.Event)
	}
	if n.LocalOnly {
		return
	}

	msg := models.BusMessage{
		Origin:    h.instanceID,
		SessionID: n.SessionID,
	}
	switch {
	case n.TimerSync != nil:
		msg.Kind = models.BusKindTimerSync
		msg.Timer = n.TimerSync
	case n.Event != nil:
		msg.Kind = models.BusKindEvent
		msg.Event = n.Event
	default:
		return
	}
	if err := h.Storage.PublishBus(msg); err != nil {
		// Degrade to local-only broadcast; clients on other instances miss
		// this update until connectivity returns.
		log.Warn().Err(err).Str("session_id", n.SessionID).Msg("bus publish failed")
	}
}

func (h *Hub) handleBusMessage(msg models.BusMessage) {
	if msg.Origin == h.instanceID {
		return
	}
	switch msg.Kind {
	case models.BusKindEvent:
		if msg.Event != nil {
			h.broadcastLocal(msg.SessionID, *msg.Event)
		}
	case models.BusKindTimerSync:
		if msg.Timer != nil {
			h.Coordinator.SyncTimer(*msg.Timer)
		}
	default:
		log.Warn().Str("kind", msg.Kind).Msg("unknown bus message kind")
	}
}

func (h *Hub) broadcastLocal(sessionID string, event models.ServerEvent) {
	for _, client := range h.Clients {
		if client.GetSessionID() != sessionID {
			continue
		}
		h.send(client, event)
	}
}

func (h *Hub) sendError(client Client, err error) {
	h.send(client, models.ServerEvent{
		Type:   models.EventError,
		SentAt: time.Now(),
		Payload: models.ErrorPayload{
			Message: err.Error(),
			Code:    CodeOf(err),
		},
	})
}

// send never blocks the dispatch loop; a client that cannot drain its
// buffer is disconnected.
func (h *Hub) send(client Client, event models.ServerEvent) {
	select {
	case client.GetSendChannel() <- event:
	default:
		log.Warn().Str("user_id", client.GetUserID()).Msg("send buffer full, dropping client")
		delete(h.Clients, client.GetUserID())
		client.Close()
	}
}
