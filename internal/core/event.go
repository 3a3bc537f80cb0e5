package core

import (
	"time"

	"github.com/rentwire/rentwire-server/internal/store"
)

// EventKind is a notification the core emits to subscribers.
type EventKind int

const (
	// EventRoomMessage notifies subscribers about a chat message in a room.
	EventRoomMessage EventKind = iota
	// EventReminder notifies subscribers about a rent reminder in a room.
	EventReminder
	// EventUserJoined notifies subscribers about a user joining a room.
	EventUserJoined
	// EventUserLeft notifies subscribers about a user leaving a room.
	EventUserLeft
	// EventHistory delivers message history to a client upon joining a room.
	EventHistory
	// EventMessageRead confirms a read acknowledgement.
	EventMessageRead
	// EventError notifies a client about a domain error.
	EventError
)

// Event is sent to subscribers to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	User     string
	Message  store.Message
	Messages []*store.Message // for EventHistory
	Reminder *Reminder        // non-nil for EventReminder
	Error    *CoreError
}

// Reminder carries the due-amount context of a rent reminder. It is
// ephemeral: built by the scheduler, pushed through the publish path, and
// not retained beyond the persisted message it rides on.
type Reminder struct {
	TenantID         int64
	TenantName       string
	Property         string
	LastPaymentAt    *time.Time // nil when the tenant has never paid
	LastPaymentValue float64
	DaysOverdue      int
	GeneratedAt      time.Time
}
