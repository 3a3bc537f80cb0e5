package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/store"
)

// Channel is the real-time publish path: it authorizes senders, persists
// every message before fan-out, and relays persisted messages to the room's
// current subscribers.
type Channel struct {
	registry *Registry
	store    store.MessageStore

	// echoSender controls whether the publisher's own connection receives
	// the fan-out copy.
	echoSender bool
	log        *zerolog.Logger

	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// NewChannel builds a channel over the given registry and message store.
func NewChannel(registry *Registry, st store.MessageStore, echoSender bool, logger *zerolog.Logger) *Channel {
	return &Channel{
		registry:   registry,
		store:      st,
		echoSender: echoSender,
		log:        logger,
		roomLocks:  make(map[string]*sync.Mutex),
	}
}

// Registry exposes the room registry for connection lifecycle management.
func (ch *Channel) Registry() *Registry {
	return ch.registry
}

// HasSubscribers reports whether any connection is joined to the room.
func (ch *Channel) HasSubscribers(roomID string) bool {
	return ch.registry.HasSubscribers(roomID)
}

// Join subscribes the client to a room after an authorization check: a
// tenant may join only its own room, a landlord any room it administers.
// Other subscribers are notified; the prior room, if any, is left implicitly.
func (ch *Channel) Join(ctx context.Context, c *Client, roomID string) error {
	if roomID == "" {
		return ErrBadRequest
	}
	if !c.Identity.CanAddress(roomID) {
		return ErrForbidden
	}

	left := ch.registry.Join(roomID, c)
	if left != "" {
		ch.notifyPresence(EventUserLeft, left, c)
	}
	ch.notifyPresence(EventUserJoined, roomID, c)

	// Deliver room history to the newly joined client.
	history, err := ch.store.ListRoomMessages(ctx, roomID, 0)
	if err != nil {
		ch.log.Warn().Err(err).Str("room", roomID).Msg("failed to load room history")
		return nil
	}
	c.Send(Event{Kind: EventHistory, Room: roomID, Messages: history})
	return nil
}

// Disconnect removes the client from its room and closes the handle.
// Safe to call on any state, including repeatedly.
func (ch *Channel) Disconnect(c *Client) {
	if left := ch.registry.Leave(c); left != "" {
		ch.notifyPresence(EventUserLeft, left, c)
	}
	c.Close()
}

// Publish persists a chat message and fans it out to the room's subscribers.
// sender is the authenticated identity; from is the sender's connection when
// publishing over the real-time transport, nil for request-response sends.
func (ch *Channel) Publish(ctx context.Context, sender Identity, from *Client, roomID, body string) (*store.Message, error) {
	return ch.publish(ctx, sender, from, roomID, body, EventRoomMessage, nil)
}

// PublishReminder pushes a rent reminder through the same persist-then-fanout
// path, attaching the reminder context to the delivered event.
func (ch *Channel) PublishReminder(ctx context.Context, sender Identity, roomID, body string, reminder *Reminder) (*store.Message, error) {
	return ch.publish(ctx, sender, nil, roomID, body, EventReminder, reminder)
}

func (ch *Channel) publish(ctx context.Context, sender Identity, from *Client, roomID, body string, kind EventKind, reminder *Reminder) (*store.Message, error) {
	if roomID == "" || body == "" {
		return nil, ErrBadRequest
	}

	joined := from != nil && ch.registry.RoomOf(from) == roomID
	if !joined && !sender.CanAddress(roomID) {
		if sender.Role == store.RoleTenant && sender.RoomID != "" {
			return nil, ErrForbidden
		}
		return nil, ErrNotJoined
	}

	// Append and fan-out are serialized per room: the order appends commit
	// is the order every subscriber and reader observes. Two rooms may
	// progress concurrently.
	lock := ch.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	persisted, err := ch.store.AppendMessage(ctx, &store.Message{
		RoomID:    roomID,
		SenderID:  sender.UserID,
		Sender:    sender.Email,
		Body:      body,
		CreatedAt: time.Now(),
	})
	if err != nil {
		ch.log.Error().Err(err).Str("room", roomID).Msg("message append failed, aborting publish")
		return nil, persistError(err)
	}

	event := Event{Kind: kind, Room: roomID, User: sender.Email, Message: *persisted, Reminder: reminder}
	for _, sub := range ch.registry.Subscribers(roomID) {
		if !ch.echoSender && sub == from {
			continue
		}
		if !sub.Send(event) {
			ch.log.Debug().Str("room", roomID).Str("client_id", sub.ID).Msg("dropped event for slow subscriber")
		}
	}

	return persisted, nil
}

// History returns persisted messages visible to the identity, ordered by
// creation time ascending, starting after sinceID.
func (ch *Channel) History(ctx context.Context, identity Identity, sinceID int64) ([]*store.Message, error) {
	if identity.Role == store.RoleLandlord {
		msgs, err := ch.store.ListMessages(ctx, sinceID)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		return msgs, nil
	}

	if identity.RoomID == "" {
		return []*store.Message{}, nil
	}
	msgs, err := ch.store.ListRoomMessages(ctx, identity.RoomID, sinceID)
	if err != nil {
		return nil, fmt.Errorf("list room messages: %w", err)
	}
	return msgs, nil
}

// MarkRead flips a message's read flag (one-way) after checking the caller
// may see the message at all.
func (ch *Channel) MarkRead(ctx context.Context, identity Identity, messageID int64) (*store.Message, error) {
	msg, err := ch.store.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	if identity.Role != store.RoleLandlord && msg.RoomID != identity.RoomID {
		return nil, ErrForbidden
	}

	updated, err := ch.store.MarkMessageRead(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return updated, nil
}

func (ch *Channel) notifyPresence(kind EventKind, roomID string, c *Client) {
	event := Event{Kind: kind, Room: roomID, User: c.Identity.Email}
	for _, sub := range ch.registry.Subscribers(roomID) {
		if sub == c {
			continue
		}
		sub.Send(event)
	}
}

func (ch *Channel) roomLock(roomID string) *sync.Mutex {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	lock, ok := ch.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		ch.roomLocks[roomID] = lock
	}
	return lock
}
