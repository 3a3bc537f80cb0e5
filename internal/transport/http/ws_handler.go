package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/proto"
)

// WSHandler upgrades authenticated HTTP connections and bridges them to the
// real-time channel. By the time it runs, the auth middleware has already
// verified the credential, so the connection enters in the authenticated
// state; an unauthenticated attempt never reaches the upgrade.
type WSHandler struct {
	channel     *core.Channel
	eventBuffer int
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(channel *core.Channel, eventBuffer int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{channel: channel, eventBuffer: eventBuffer, log: logger}
}

// Serve handles one websocket connection for its whole lifetime.
func (h *WSHandler) Serve(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: core.ErrCodeUnauthorized})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(identity, h.eventBuffer)
	// Any exit path, graceful or abnormal, leaves the room registry.
	defer h.channel.Disconnect(client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if err := h.handleInbound(ctx, client, inbound); err != nil {
			var coreErr *core.CoreError
			if errors.As(err, &coreErr) {
				// Domain errors go back to this client only; the
				// connection stays up.
				client.Send(core.Event{Kind: core.EventError, Error: coreErr})
				continue
			}
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("inbound handling failed")
			client.Send(core.Event{Kind: core.EventError, Error: &core.CoreError{
				Code:    core.ErrCodeBadRequest,
				Message: "invalid request",
			}})
		}
	}
}

func (h *WSHandler) handleInbound(ctx context.Context, client *core.Client, inbound proto.Inbound) error {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return err
		}
		return h.channel.Join(ctx, client, join.Room)

	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return err
		}
		_, err := h.channel.Publish(ctx, client.Identity, client, msg.Room, msg.Text)
		return err

	case proto.InboundTypeRead:
		var read proto.ReadData
		if err := json.Unmarshal(inbound.Data, &read); err != nil {
			return err
		}
		updated, err := h.channel.MarkRead(ctx, client.Identity, read.MessageID)
		if err != nil {
			return err
		}
		client.Send(core.Event{Kind: core.EventMessageRead, Room: updated.RoomID, Message: *updated})
		return nil

	case proto.InboundTypeHistory:
		var hist proto.HistoryData
		if err := json.Unmarshal(inbound.Data, &hist); err != nil {
			return err
		}
		msgs, err := h.channel.History(ctx, client.Identity, hist.SinceID)
		if err != nil {
			return err
		}
		client.Send(core.Event{Kind: core.EventHistory, Room: client.Identity.RoomID, Messages: msgs})
		return nil

	default:
		return &core.CoreError{Code: core.ErrCodeBadRequest, Message: "unknown message type"}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events():
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
