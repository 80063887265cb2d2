package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/bus"
	"github.com/akarpov/murmur-server/internal/core"
	"github.com/akarpov/murmur-server/internal/identity"
	"github.com/akarpov/murmur-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	manager  *core.Manager
	resolver *identity.Resolver
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(manager *core.Manager, resolver *identity.Resolver, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{manager: manager, resolver: resolver, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	// Handshake-mode authentication: a bad or missing token does not
	// reject the connection, it just opens anonymous. Operations that
	// need an identity fail later with unauthorized.
	cred := identity.CredentialFromHandshake(r.URL.Query())
	user, err := h.resolver.Resolve(ctx, cred)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws handshake auth failed, continuing anonymous")
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	session := h.manager.Open(user)
	defer h.manager.Close(session)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The connection supports one concurrent writer, so direct replies
	// from the read loop are funneled through the write loop.
	replies := make(chan *proto.Outbound, 8)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, replies)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session, replies)
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
			h.log.Warn().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, replies chan<- *proto.Outbound) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		outbound := h.handleInbound(session, inbound)
		if outbound != nil {
			select {
			case replies <- outbound:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// handleInbound applies one client request to the session and returns the
// direct reply, if any.
func (h *WSHandler) handleInbound(session *core.Session, inbound proto.Inbound) *proto.Outbound {
	var data proto.SubscribeData
	if len(inbound.Data) > 0 {
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return &proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed data"},
			}
		}
	}

	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		if err := session.Subscribe(bus.Topic(data.Topic)); err != nil {
			ce := core.WireError(err)
			return &proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: ce.Code, Msg: ce.Message},
			}
		}
		return &proto.Outbound{Type: proto.OutboundTypeSubscribed, Topic: data.Topic}

	case proto.InboundTypeUnsubscribe:
		session.Unsubscribe(bus.Topic(data.Topic))
		return &proto.Outbound{Type: proto.OutboundTypeUnsubscribed, Topic: data.Topic}

	default:
		return &proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"},
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, replies <-chan *proto.Outbound) error {
	for {
		select {
		case reply := <-replies:
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				return err
			}
		case event, ok := <-session.Outbound():
			if !ok {
				return nil
			}
			outbound := outboundFromEvent(event)
			if outbound == nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, outbound); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
