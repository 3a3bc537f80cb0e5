package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin    = "join"
	InboundTypeMsg     = "msg"
	InboundTypeRead    = "read"
	InboundTypeHistory = "history"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// JoinData requests to join a specific room.
type JoinData struct {
	Room string `json:"room"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// ReadData acknowledges a message as read.
type ReadData struct {
	MessageID int64 `json:"message_id"`
}

// HistoryData requests message history after the given id.
type HistoryData struct {
	SinceID int64 `json:"since_id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a persisted message delivered to room subscribers.
type EventMessage struct {
	ID     int64  `json:"id"`
	Room   string `json:"room"`
	From   string `json:"from"`
	FromID int64  `json:"from_id"`
	Text   string `json:"text"`
	Read   bool   `json:"read"`
	TS     int64  `json:"ts"`
}

// EventReminder is a rent reminder delivered to room subscribers.
type EventReminder struct {
	Message       EventMessage `json:"message"`
	TenantID      int64        `json:"tenant_id"`
	TenantName    string       `json:"tenant_name"`
	Property      string       `json:"property"`
	DaysOverdue   int          `json:"days_overdue"`
	LastPaymentTS int64        `json:"last_payment_ts,omitempty"`
	LastPayment   float64      `json:"last_payment,omitempty"`
}

// EventPresence notifies that a user joined or left a room.
type EventPresence struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// EventHistory delivers ordered room history.
type EventHistory struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
