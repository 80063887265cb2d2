package http

import (
	"github.com/akarpov/murmur-server/internal/bus"
	"github.com/akarpov/murmur-server/internal/proto"
	"github.com/akarpov/murmur-server/internal/store"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsOnline bool   `json:"is_online"`
	LastSeen int64  `json:"last_seen"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID          int64  `json:"id"`
	SenderID    int64  `json:"sender_id"`
	RecipientID int64  `json:"recipient_id"`
	Body        string `json:"body"`
	IsRead      bool   `json:"is_read"`
	ReadAt      *int64 `json:"read_at"`
	CreatedAt   int64  `json:"created_at"`
}

func userToResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen.Unix(),
	}
}

func messageToResponse(m *store.Message) MessageResponse {
	resp := MessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Body:        m.Body,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt.Unix(),
	}
	if m.ReadAt != nil {
		ts := m.ReadAt.Unix()
		resp.ReadAt = &ts
	}
	return resp
}

// outboundFromEvent maps a bus event to its wire representation. Unknown
// payloads map to nil and are skipped by the write loop.
func outboundFromEvent(ev bus.Event) *proto.Outbound {
	switch payload := ev.Payload.(type) {
	case *store.Message:
		return &proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageAdded,
			Data: proto.MessagePush{
				ID:          payload.ID,
				SenderID:    payload.SenderID,
				RecipientID: payload.RecipientID,
				Body:        payload.Body,
				IsRead:      payload.IsRead,
				CreatedAt:   payload.CreatedAt.Unix(),
			},
		}
	case *store.User:
		return &proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceChange,
			Data: proto.PresencePush{
				UserID:   payload.ID,
				Username: payload.Username,
				IsOnline: payload.IsOnline,
				LastSeen: payload.LastSeen.Unix(),
			},
		}
	default:
		return nil
	}
}
