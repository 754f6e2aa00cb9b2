package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrHubStopped is returned by calls made after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

type envelope struct {
	client *Client
	cmd    *Command
	// disconnect is the last envelope a client's forwarder emits.
	disconnect bool
}

// Hub serializes every command through one goroutine and fans events out to clients.
// It implements Dispatcher for its Coordinator.
type Hub struct {
	coord        *Coordinator
	log          zerolog.Logger
	reapInterval time.Duration

	register chan *Client
	inbound  chan envelope
	queries  chan func(*Coordinator)
	stopped  chan struct{}

	clients map[ConnID]*Client
	groups  map[RoomID]map[ConnID]struct{}
}

// NewHub creates a hub and the coordinator it drives. reapInterval of zero disables reaping.
func NewHub(opts Options, reapInterval time.Duration) *Hub {
	h := &Hub{
		log:          zerolog.Nop(),
		reapInterval: reapInterval,
		register:     make(chan *Client),
		inbound:      make(chan envelope, 64),
		queries:      make(chan func(*Coordinator)),
		stopped:      make(chan struct{}),
		clients:      make(map[ConnID]*Client),
		groups:       make(map[RoomID]map[ConnID]struct{}),
	}
	if opts.Logger != nil {
		h.log = opts.Logger.With().Str("module", "core.hub").Logger()
	}
	h.coord = NewCoordinator(h, opts)
	return h
}

// Run processes commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	var reap <-chan time.Time
	if h.reapInterval > 0 {
		ticker := time.NewTicker(h.reapInterval)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				c.close()
			}
			return
		case c := <-h.register:
			h.clients[c.ID] = c
			go h.forward(ctx, c)
		case env := <-h.inbound:
			h.dispatch(env)
		case q := <-h.queries:
			q(h.coord)
		case now := <-reap:
			if n := h.coord.ReapDetached(now); n > 0 {
				h.log.Info().Int("reaped", n).Msg("idle sessions reaped")
			}
		}
	}
}

// RegisterClient makes a connection known to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
		c.close()
	}
}

// UnregisterClient reports that a connection went away and waits until the hub has let go of it.
// Commands the connection sent earlier are processed first. c must have been passed to RegisterClient.
func (h *Hub) UnregisterClient(c *Client) {
	c.markGone()
	select {
	case <-c.done:
	case <-h.stopped:
	}
}

// Query runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) Query(ctx context.Context, fn func(*Coordinator)) error {
	done := make(chan struct{})
	q := func(c *Coordinator) {
		fn(c)
		close(done)
	}
	select {
	case h.queries <- q:
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rooms snapshots the lobby.
func (h *Hub) Rooms(ctx context.Context) ([]RoomView, error) {
	var rooms []RoomView
	err := h.Query(ctx, func(c *Coordinator) {
		rooms = c.Lobby()
	})
	return rooms, err
}

// forward moves one client's commands into the shared inbound queue, preserving their order.
// Once the connection is gone it flushes what is left and ends with a disconnect envelope.
func (h *Hub) forward(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if !h.enqueue(ctx, envelope{client: c, cmd: cmd}) {
				return
			}
		case <-c.gone:
			for {
				select {
				case cmd := <-c.Commands:
					if !h.enqueue(ctx, envelope{client: c, cmd: cmd}) {
						return
					}
				default:
					h.enqueue(ctx, envelope{client: c, disconnect: true})
					return
				}
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// enqueue reports false once the client or the hub is finished.
func (h *Hub) enqueue(ctx context.Context, env envelope) bool {
	if env.cmd == nil && !env.disconnect {
		return true
	}
	select {
	case h.inbound <- env:
		return true
	case <-env.client.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) dispatch(env envelope) {
	if h.clients[env.client.ID] != env.client {
		return
	}
	if env.disconnect {
		h.drop(env.client)
		return
	}
	if err := h.coord.Handle(env.client.ID, env.cmd); err != nil {
		ce := AsCoreError(err)
		h.log.Debug().Str("conn", string(env.client.ID)).Str("code", ce.Code).Msg(ce.Message)
		h.Send(env.client.ID, &Event{Kind: EventError, Scope: ScopeDirect, Error: ce})
	}
}

func (h *Hub) drop(c *Client) {
	h.coord.Disconnect(c.ID)
	h.forget(c.ID)
}

func (h *Hub) forget(conn ConnID) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	for room, members := range h.groups {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.groups, room)
		}
	}
	delete(h.clients, conn)
	c.close()
}

// Send implements Dispatcher.
func (h *Hub) Send(conn ConnID, ev *Event) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	if !c.deliver(ev) {
		h.log.Warn().Str("conn", string(conn)).Str("event", ev.Kind.String()).Msg("slow consumer, event dropped")
	}
}

// Publish implements Dispatcher.
func (h *Hub) Publish(room RoomID, ev *Event) {
	for conn := range h.groups[room] {
		h.Send(conn, ev)
	}
}

// Broadcast implements Dispatcher.
func (h *Hub) Broadcast(ev *Event) {
	for conn := range h.clients {
		h.Send(conn, ev)
	}
}

// Attach implements Dispatcher.
func (h *Hub) Attach(conn ConnID, room RoomID) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	members, ok := h.groups[room]
	if !ok {
		members = make(map[ConnID]struct{})
		h.groups[room] = members
	}
	members[conn] = struct{}{}
}

// Detach implements Dispatcher.
func (h *Hub) Detach(conn ConnID, room RoomID) {
	members, ok := h.groups[room]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(h.groups, room)
	}
}

// Close implements Dispatcher.
func (h *Hub) Close(conn ConnID) {
	h.forget(conn)
}
