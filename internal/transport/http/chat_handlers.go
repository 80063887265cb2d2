package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/notify"
	"github.com/akarpov/murmur-server/internal/store"
)

// ChatHandlers provides HTTP handlers for conversation operations.
type ChatHandlers struct {
	store    store.Store
	notifier *notify.Dispatcher
	log      *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(st store.Store, notifier *notify.Dispatcher, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		store:    st,
		notifier: notifier,
		log:      logger,
	}
}

// SendMessageRequest represents the send-message request body.
type SendMessageRequest struct {
	RecipientID int64  `json:"recipient_id" binding:"required"`
	Body        string `json:"body" binding:"required"`
}

// SendMessage persists a message and then, only after the commit
// succeeded, dispatches the delivery event.
// POST /api/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if _, err := h.store.GetUserByID(c.Request.Context(), req.RecipientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "recipient not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to check recipient")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	msg, err := h.store.CreateMessage(c.Request.Context(), user.ID, req.RecipientID, req.Body)
	if err != nil {
		h.log.Error().Err(err).Int64("sender_id", user.ID).Msg("failed to create message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.notifier.MessageCreated(msg)
	c.JSON(http.StatusCreated, messageToResponse(msg))
}

// ListChats returns the conversation with another user, oldest first.
// GET /api/chats?with=<user id>
func (h *ChatHandlers) ListChats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	otherID, err := strconv.ParseInt(c.Query("with"), 10, 64)
	if err != nil || otherID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid 'with' parameter"})
		return
	}

	msgs, err := h.store.ListMessagesBetween(c.Request.Context(), user.ID, otherID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, messageToResponse(m))
	}
	c.JSON(http.StatusOK, response)
}

// MarkRead flips a message's read flag. Idempotent.
// POST /api/messages/:id/read
func (h *ChatHandlers) MarkRead(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	msg, err := h.store.MarkMessageRead(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Int64("message_id", id).Msg("failed to mark message read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messageToResponse(msg))
}
