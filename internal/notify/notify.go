package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/store"
)

// Sink receives reminder events for tenants with no live subscriber, so
// they can reach the tenant out of band (push, email gateway, etc).
type Sink interface {
	Notify(ctx context.Context, tenant *store.Tenant, reminder *core.Reminder) error
}

// LogSink records offline reminders in the server log. Used when no
// message broker is configured.
type LogSink struct {
	log *zerolog.Logger
}

// NewLogSink builds a sink that only logs.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{log: logger}
}

// Notify logs the reminder.
func (s *LogSink) Notify(_ context.Context, tenant *store.Tenant, reminder *core.Reminder) error {
	s.log.Info().
		Int64("tenant_id", tenant.ID).
		Str("tenant", tenant.Name).
		Str("property", tenant.Property).
		Int("days_overdue", reminder.DaysOverdue).
		Msg("rent reminder for offline tenant")
	return nil
}
