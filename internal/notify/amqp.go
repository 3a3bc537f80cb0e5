package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/store"
)

// EventPayload is the broker envelope for notification events.
type EventPayload struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// ReminderEvent is the broker representation of a rent reminder.
type ReminderEvent struct {
	TenantID    int64     `json:"tenant_id"`
	TenantName  string    `json:"tenant_name"`
	TenantEmail string    `json:"tenant_email"`
	Property    string    `json:"property"`
	DaysOverdue int       `json:"days_overdue"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AMQPSink publishes offline reminder events to a RabbitMQ topic exchange.
type AMQPSink struct {
	conn     *amqp.Connection
	exchange string
}

// NewAMQPSink dials the broker and declares the notification exchange.
func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer channel.Close()

	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPSink{conn: conn, exchange: exchange}, nil
}

// Notify publishes the reminder to the exchange under a per-tenant routing key.
func (s *AMQPSink) Notify(ctx context.Context, tenant *store.Tenant, reminder *core.Reminder) error {
	data, err := json.Marshal(ReminderEvent{
		TenantID:    tenant.ID,
		TenantName:  tenant.Name,
		TenantEmail: tenant.Email,
		Property:    tenant.Property,
		DaysOverdue: reminder.DaysOverdue,
		GeneratedAt: reminder.GeneratedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}

	payload, err := json.Marshal(EventPayload{EventType: "rent.reminder", Data: data})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	channel, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer channel.Close()

	routingKey := "reminder." + tenant.RoomID()
	if err := channel.PublishWithContext(ctx,
		s.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        payload,
		},
	); err != nil {
		return fmt.Errorf("publish reminder: %w", err)
	}

	return nil
}

// Close closes the broker connection.
func (s *AMQPSink) Close() error {
	return s.conn.Close()
}
