package core

import (
	"sync"

	"github.com/google/uuid"
)

// Client is a live connection as seen by the core layer: the subscriber
// handle used for registry membership and event delivery.
type Client struct {
	ID       string
	Identity Identity

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a subscriber handle for an authenticated connection.
func NewClient(identity Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

// Events is the stream the transport's write loop drains.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection has closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send delivers an event to the client without blocking. Returns false when
// the client is closed or its buffer is full (slow consumer, event dropped).
func (c *Client) Send(event Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

// Close marks the connection closed. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
