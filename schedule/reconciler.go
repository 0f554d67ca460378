package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
)

// LogAppender records schedule configuration failures on the owning bot's
// log so the UI can explain why a schedule never fires.
type LogAppender interface {
	AppendLog(ctx context.Context, botID id.ID, logType bot.LogType, message string)
}

// Reconciler keeps the installed cron entries aligned with the active
// schedule set. Reconcile is idempotent: running it twice leaves the
// backend identical.
type Reconciler struct {
	store   Store
	backend CronBackend
	logs    LogAppender
	command string
	logger  *slog.Logger
	parser  cron.Parser
}

// NewReconciler creates a reconciler. command is the executable prefix for
// installed entries; the fire spec is appended, e.g.
// `langboard run:bot:cron "<spec>"`.
func NewReconciler(store Store, backend CronBackend, logs LogAppender, command string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:   store,
		backend: backend,
		logs:    logs,
		command: command,
		logger:  logger,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Reconcile aligns installed entries with the active schedule set:
//  1. Read all active schedules and normalise their crons to UTC.
//  2. Drop installed entries whose tag is not in the active set.
//  3. Install entries for schedules not yet present or whose spec changed.
//
// Schedules with unparseable crons or unknown zones are skipped with one
// Error log entry on the bot; reconcile itself does not fail for them.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	schedules, err := r.store.ListActiveSchedules(ctx)
	if err != nil {
		return fmt.Errorf("schedule: list active schedules: %w", err)
	}

	now := time.Now().UTC()
	desired := make([]Entry, 0, len(schedules))
	for _, s := range schedules {
		spec, normErr := r.normalize(s, now)
		if normErr != nil {
			r.logger.WarnContext(ctx, "skipping schedule with bad configuration",
				"schedule_id", s.ID, "cron", s.Cron, "timezone", s.Timezone, "error", normErr)
			if r.logs != nil {
				r.logs.AppendLog(ctx, s.BotID, bot.LogError,
					fmt.Sprintf("schedule %s not installed: %v", s.ID, normErr))
			}
			continue
		}

		if spec != s.UTCCron {
			s.UTCCron = spec
			if updateErr := r.store.UpdateSchedule(ctx, s); updateErr != nil {
				r.logger.ErrorContext(ctx, "persist normalised cron failed",
					"schedule_id", s.ID, "error", updateErr)
			}
		}

		desired = append(desired, Entry{
			Spec:       spec,
			Command:    fmt.Sprintf("%s run:bot:cron %q", r.command, spec),
			ScheduleID: s.ID,
		})
	}

	sort.Slice(desired, func(i, j int) bool {
		return desired[i].ScheduleID.String() < desired[j].ScheduleID.String()
	})

	if err := r.backend.Apply(desired); err != nil {
		return fmt.Errorf("schedule: apply cron entries: %w", err)
	}

	r.logger.DebugContext(ctx, "reconciled cron entries",
		"active", len(schedules), "installed", len(desired))
	return nil
}

// normalize validates the user cron and rewrites it to UTC for the
// schedule's zone offset at the given instant.
func (r *Reconciler) normalize(s *Schedule, at time.Time) (string, error) {
	spec, err := NormalizeAt(s.Cron, s.Timezone, at)
	if err != nil {
		return "", err
	}
	if spec != "@reboot" {
		if _, parseErr := r.parser.Parse(spec); parseErr != nil {
			return "", fmt.Errorf("normalised cron %q invalid: %w", spec, parseErr)
		}
	}
	return spec, nil
}
