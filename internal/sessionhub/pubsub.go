package sessionhub

import (
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"swipedine/backend/internal/models"
)

// BusSubscriber is the piece of the shared store the listener needs; the
// concrete storage.Service satisfies it.
type BusSubscriber interface {
	SubscribeBus() *redis.PubSub
}

// StartBusListener subscribes this instance to the shared channel and
// feeds decoded messages into the hub's dispatch loop. Messages published
// by this instance are filtered there by origin.
func (h *Hub) StartBusListener(sub BusSubscriber) {
	go func() {
		pubsub := sub.SubscribeBus()
		defer pubsub.Close()

		log.Info().Str("instance", h.instanceID).Msg("bus listener started")
		for msg := range pubsub.Channel() {
			var busMsg models.BusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &busMsg); err != nil {
				log.Warn().Err(err).Msg("dropping malformed bus message")
				continue
			}
			h.BusCh <- busMsg
		}
		log.Warn().Str("instance", h.instanceID).Msg("bus subscription closed; instance is local-only")
	}()
}
