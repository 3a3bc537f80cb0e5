package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/core"
)

// MessageHandlers provides the request-response message surface: history,
// send, and read acknowledgement. Sends share the channel's publish path so
// request-response and real-time traffic observe the same ordering.
type MessageHandlers struct {
	channel *core.Channel
	log     *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(channel *core.Channel, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{channel: channel, log: logger}
}

// SendMessageRequest represents the send request body.
type SendMessageRequest struct {
	Room    string `json:"room" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// List returns messages visible to the caller, oldest first.
// GET /api/messages?since_id=N
func (h *MessageHandlers) List(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: core.ErrCodeUnauthorized})
		return
	}

	var sinceID int64
	if raw := c.Query("since_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid since_id"})
			return
		}
		sinceID = parsed
	}

	msgs, err := h.channel.History(c.Request.Context(), identity, sinceID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", identity.UserID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messagesToProto(msgs))
}

// Send publishes a message to a room.
// POST /api/messages
func (h *MessageHandlers) Send(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: core.ErrCodeUnauthorized})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	persisted, err := h.channel.Publish(c.Request.Context(), identity, nil, req.Room, req.Content)
	if err != nil {
		h.writeChannelError(c, err)
		return
	}

	c.JSON(http.StatusCreated, messageToProto(persisted))
}

// MarkRead acknowledges a message as read.
// PATCH /api/messages/:id/read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: core.ErrCodeUnauthorized})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	updated, err := h.channel.MarkRead(c.Request.Context(), identity, id)
	if err != nil {
		h.writeChannelError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageToProto(updated))
}

func (h *MessageHandlers) writeChannelError(c *gin.Context, err error) {
	var coreErr *core.CoreError
	if !errors.As(err, &coreErr) {
		h.log.Error().Err(err).Msg("channel operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch coreErr.Code {
	case core.ErrCodeForbidden, core.ErrCodeNotJoined:
		status = http.StatusForbidden
	case core.ErrCodeNotFound:
		status = http.StatusNotFound
	case core.ErrCodeBadRequest:
		status = http.StatusBadRequest
	case core.ErrCodePersistFailed:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ErrorResponse{Error: coreErr.Message, Code: coreErr.Code})
}
