package notify

import (
	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/bus"
	"github.com/akarpov/murmur-server/internal/store"
)

// Dispatcher turns committed writes into routed bus events. Callers invoke
// it only after the store write succeeded; a failed write must publish
// nothing. Publish failures for an individual subscriber (overflow) stay
// local to that subscriber, so dispatch itself never returns an error.
type Dispatcher struct {
	bus *bus.Bus
	log *zerolog.Logger
}

// NewDispatcher creates a dispatcher publishing on the given bus.
func NewDispatcher(b *bus.Bus, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{bus: b, log: logger}
}

// MessageCreated publishes a message-delivery event addressed to the
// message's recipient.
func (d *Dispatcher) MessageCreated(msg *store.Message) {
	d.bus.Publish(bus.Event{
		Topic:     bus.TopicMessage,
		Recipient: msg.RecipientID,
		Payload:   msg,
	})
	d.log.Debug().
		Int64("message_id", msg.ID).
		Int64("recipient_id", msg.RecipientID).
		Msg("message event published")
}

// PresenceChanged publishes a presence event delivered to every active
// presence subscription.
func (d *Dispatcher) PresenceChanged(user *store.User) {
	d.bus.Publish(bus.Event{
		Topic:   bus.TopicPresence,
		Payload: user,
	})
	d.log.Debug().
		Int64("user_id", user.ID).
		Bool("online", user.IsOnline).
		Msg("presence event published")
}
