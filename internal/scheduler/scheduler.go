package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/config"
	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/notify"
	"github.com/rentwire/rentwire-server/internal/store"
)

// systemIdentity is the sender of scheduler-generated reminders. It carries
// the landlord role so it may address any tenant room.
var systemIdentity = core.Identity{
	UserID: 0,
	Email:  "system",
	Role:   store.RoleLandlord,
}

// Scheduler runs the recurring rent-reminder sweep. A sweep scans financial
// state for overdue tenants and pushes reminder events through the channel's
// normal publish path, falling back to the notification sink when the
// tenant's room has no live subscriber.
type Scheduler struct {
	source  store.FinancialSource
	channel *core.Channel
	sink    notify.Sink
	cfg     config.Reminder
	log     *zerolog.Logger

	// running is the single-flight guard: checked-and-set at sweep start,
	// cleared at sweep end. An overlapping tick is skipped, not queued.
	running atomic.Bool

	now func() time.Time
}

// New builds a scheduler. sink may not be nil; use notify.NewLogSink when no
// broker is configured.
func New(source store.FinancialSource, channel *core.Channel, sink notify.Sink, cfg config.Reminder, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		source:  source,
		channel: channel,
		sink:    sink,
		cfg:     cfg,
		log:     logger,
		now:     time.Now,
	}
}

// Run blocks, sweeping at the configured wall-clock offset and then every
// interval, until the context is cancelled. Sweep failures are logged and
// retried on the next tick, never in a tight loop.
func (s *Scheduler) Run(ctx context.Context) {
	first := s.untilFirstRun()
	s.log.Info().Dur("in", first).Dur("interval", s.cfg.Interval).Msg("reminder scheduler started")

	timer := time.NewTimer(first)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil {
			s.log.Error().Err(err).Msg("reminder sweep failed, retrying next tick")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ErrSweepInFlight is not an error condition: an overlapping trigger is
// skipped by contract. It is exposed so callers can tell a skip from a run.
var ErrSweepInFlight = fmt.Errorf("sweep already in flight")

// Sweep performs one reminder pass. Only one sweep executes at a time; a
// concurrent call returns ErrSweepInFlight without doing any work.
func (s *Scheduler) Sweep(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("reminder sweep still running, skipping tick")
		return ErrSweepInFlight
	}
	defer s.running.Store(false)

	tenants, err := s.source.ListActiveTenants(ctx, store.LeaseStatus(s.cfg.LeaseStatus))
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}

	var sent int
	for _, tenant := range tenants {
		reminded, err := s.sweepTenant(ctx, tenant)
		if err != nil {
			// One tenant failing must not abort the rest of the sweep.
			s.log.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("tenant reminder failed")
			continue
		}
		if reminded {
			sent++
		}
	}

	s.log.Info().Int("tenants", len(tenants)).Int("reminders", sent).Msg("reminder sweep complete")
	return nil
}

func (s *Scheduler) sweepTenant(ctx context.Context, tenant *store.Tenant) (bool, error) {
	last, err := s.source.LastPaymentFor(ctx, tenant.ID)
	if err != nil {
		return false, fmt.Errorf("last payment: %w", err)
	}

	now := s.now()
	reminder := &core.Reminder{
		TenantID:    tenant.ID,
		TenantName:  tenant.Name,
		Property:    tenant.Property,
		GeneratedAt: now,
	}
	if last != nil {
		if now.Sub(last.Date) <= s.cfg.GracePeriod {
			return false, nil
		}
		paidAt := last.Date
		reminder.LastPaymentAt = &paidAt
		reminder.LastPaymentValue = last.Amount
		reminder.DaysOverdue = int(now.Sub(last.Date.Add(s.cfg.GracePeriod)).Hours() / 24)
	}

	roomID := tenant.RoomID()
	body := fmt.Sprintf("Rent due for %s at %s", tenant.Name, tenant.Property)
	if _, err := s.channel.PublishReminder(ctx, systemIdentity, roomID, body, reminder); err != nil {
		return false, fmt.Errorf("publish reminder: %w", err)
	}

	if !s.channel.HasSubscribers(roomID) {
		if err := s.sink.Notify(ctx, tenant, reminder); err != nil {
			s.log.Warn().Err(err).Int64("tenant_id", tenant.ID).Msg("offline reminder notification failed")
		}
	}

	return true, nil
}

// untilFirstRun computes the delay to the next configured wall-clock offset.
// Falls back to one full interval when the offset is unparseable.
func (s *Scheduler) untilFirstRun() time.Duration {
	at, err := time.Parse("15:04", s.cfg.At)
	if err != nil {
		s.log.Warn().Str("at", s.cfg.At).Msg("invalid reminder offset, deferring one interval")
		return s.cfg.Interval
	}

	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
