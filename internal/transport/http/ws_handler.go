package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireplan-server/internal/core"
	"github.com/vovakirdan/wireplan-server/internal/proto"
)

// errReleased ends a connection the hub has let go of, e.g. after logout.
var errReleased = errors.New("released by hub")

// Hub is the part of core.Hub the transport depends on.
type Hub interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
	Rooms(ctx context.Context) ([]core.RoomView, error)
}

// WSOptions tune each WebSocket connection.
type WSOptions struct {
	MaxMessageBytes    int64
	RateLimitPerMinute int
	EventBuffer        int
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  Hub
	opts WSOptions
	log  zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub Hub, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	h := &WSHandler{hub: hub, opts: opts, log: zerolog.Nop()}
	if logger != nil {
		h.log = logger.With().Str("module", "transport.ws").Logger()
	}
	return h
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewClient(core.ConnID(uuid.NewString()), h.opts.EventBuffer)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	h.log.Debug().Str("conn", string(client.ID)).Str("remote", r.RemoteAddr).Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	if errors.Is(err, errReleased) {
		// Close before cancelling: a cancelled read tears the socket down without a close frame.
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
		cancel()
		<-errCh
		return
	}
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
	case websocket.CloseStatus(err) != -1:
		h.log.Debug().Str("conn", string(client.ID)).Int("status", int(websocket.CloseStatus(err))).Msg("ws closed by peer")
		return
	default:
		status = websocket.StatusInternalError
		reason = err.Error()
		h.log.Warn().Err(err).Str("conn", string(client.ID)).Msg("ws connection closed with error")
	}

	_ = conn.Close(status, truncateReason(reason))
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.RateLimitPerMinute)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			if err := h.writeError(ctx, conn, core.ErrCodeRateLimited, "too many messages"); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if typ != websocket.MessageText || json.Unmarshal(data, &inbound) != nil {
			if err := h.writeError(ctx, conn, core.ErrCodeInvalidMessage, "malformed message"); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			if err := wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}); err != nil {
				return err
			}
			continue
		}

		// A released client drops late commands; the write loop ends the connection.
		select {
		case client.Commands <- cmd:
		case <-client.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := h.writeEvent(ctx, conn, client, event); err != nil {
				return err
			}
		case <-client.Done():
			// Flush what the hub queued before letting go, e.g. logged_out.
			for {
				select {
				case event := <-client.Events:
					if err := h.writeEvent(ctx, conn, client, event); err != nil {
						return err
					}
				default:
					return errReleased
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeEvent(ctx context.Context, conn *websocket.Conn, client *core.Client, event *core.Event) error {
	if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
		h.log.Error().Err(err).Str("conn", string(client.ID)).Msg("write ws event")
		return err
	}
	return nil
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	})
}

// truncateReason keeps a close reason within the 123 bytes a close frame allows.
func truncateReason(reason string) string {
	if len(reason) > 120 {
		return reason[:120]
	}
	return reason
}
