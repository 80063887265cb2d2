package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"

	OutboundTypeEvent        = "event"
	OutboundTypeError        = "error"
	OutboundTypeSubscribed   = "subscribed"
	OutboundTypeUnsubscribed = "unsubscribed"

	EventMessageAdded   = "message_added"
	EventPresenceChange = "presence"
)

// SubscribeData names the topic to subscribe to or cancel.
type SubscribeData struct {
	Topic string `json:"topic"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Topic string `json:"topic,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePush is the payload of a message_added event.
type MessagePush struct {
	ID          int64  `json:"id"`
	SenderID    int64  `json:"sender_id"`
	RecipientID int64  `json:"recipient_id"`
	Body        string `json:"body"`
	IsRead      bool   `json:"is_read"`
	CreatedAt   int64  `json:"created_at"`
}

// PresencePush is the payload of a presence event.
type PresencePush struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`
	LastSeen int64  `json:"last_seen"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
