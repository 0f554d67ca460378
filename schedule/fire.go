package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Emitter receives the synthetic Scheduled condition for a due schedule.
type Emitter interface {
	EmitScheduled(ctx context.Context, sched *Schedule, fireTime time.Time) error
}

// Firer handles cron ticks: it is invoked by the installed cron entries via
// `run:bot:cron <interval>` and emits one Scheduled condition per due
// schedule.
type Firer struct {
	store   Store
	emitter Emitter
	logger  *slog.Logger
	parser  cron.Parser
}

// NewFirer creates a firer.
func NewFirer(store Store, emitter Emitter, logger *slog.Logger) *Firer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Firer{
		store:   store,
		emitter: emitter,
		logger:  logger,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// FireDue emits Scheduled for every active schedule whose current UTC cron
// equals interval and whose last run is at least one cron period old, then
// advances last_ran_at. Cron entries may double-fire around edits; the
// last_ran_at guard keeps each interval to a single emit.
func (f *Firer) FireDue(ctx context.Context, interval string) error {
	schedules, err := f.store.ListActiveSchedules(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, s := range schedules {
		if s.UTCCron != interval {
			continue
		}
		if !f.due(s, now) {
			continue
		}

		if err := f.emitter.EmitScheduled(ctx, s, now); err != nil {
			f.logger.ErrorContext(ctx, "emit scheduled condition failed",
				"schedule_id", s.ID, "bot_id", s.BotID, "error", err)
			continue
		}

		if err := f.store.SetLastRanAt(ctx, s.ID, now); err != nil {
			f.logger.ErrorContext(ctx, "update last_ran_at failed",
				"schedule_id", s.ID, "error", err)
		}
	}
	return nil
}

// due reports whether the schedule's last run is older than one cron
// period, with a minute of tolerance for cron start jitter.
func (f *Firer) due(s *Schedule, now time.Time) bool {
	if s.LastRanAt == nil {
		return true
	}

	period := f.period(s.UTCCron, now)
	if period <= 0 {
		return true
	}
	return now.Sub(*s.LastRanAt) >= period-time.Minute
}

// period returns the distance between the schedule's next two fires.
func (f *Firer) period(spec string, now time.Time) time.Duration {
	if spec == "@reboot" {
		return 0
	}
	parsed, err := f.parser.Parse(spec)
	if err != nil {
		return 0
	}
	first := parsed.Next(now)
	second := parsed.Next(first)
	return second.Sub(first)
}
