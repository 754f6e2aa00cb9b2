package core

import "sync"

// DefaultEventBuffer is the per-client event queue length used when none is configured.
const DefaultEventBuffer = 32

// Client is one physical connection as seen by the core layer.
type Client struct {
	ID       ConnID
	Commands chan *Command
	Events   chan *Event

	done      chan struct{}
	closeOnce sync.Once
	gone      chan struct{}
	goneOnce  sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id ConnID, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, buffer),
		done:     make(chan struct{}),
		gone:     make(chan struct{}),
	}
}

// Done is closed once the hub has let go of the client. Events already queued stay readable.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// markGone records that the connection will send no more commands.
func (c *Client) markGone() {
	c.goneOnce.Do(func() { close(c.gone) })
}

// deliver queues ev without blocking. Returns false if the client is too slow.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
