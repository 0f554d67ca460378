// Package schedule runs periodic bots: it normalises per-bot cron strings
// to UTC, reconciles installed OS cron entries against the active schedule
// set, and fires Scheduled conditions when entries come due.
package schedule

import (
	"context"
	"time"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
)

// Schedule binds a bot to a cron interval and a time zone. The engine
// stores the UTC-normalised cron alongside the user-supplied one.
type Schedule struct {
	entity.Entity

	// ID is the unique TypeID for this schedule.
	ID id.ID `json:"id"`

	// BotID is the bot fired on each tick.
	BotID id.ID `json:"bot_id"`

	// ProjectID is the owning project.
	ProjectID id.ID `json:"project_id"`

	// Cron is the user-supplied cron interval string, in the schedule's
	// time zone.
	Cron string `json:"cron"`

	// Timezone is an IANA zone name ("America/New_York") or a fixed UTC
	// offset ("+05:30", "-04:00", "UTC").
	Timezone string `json:"timezone"`

	// UTCCron is Cron normalised to UTC at the last reconcile. Deterministic
	// with respect to (Cron, zone offset).
	UTCCron string `json:"utc_cron"`

	// LastRanAt is when the runner last fired this schedule.
	LastRanAt *time.Time `json:"last_ran_at,omitempty"`

	// Enabled indicates whether the schedule participates in reconcile.
	Enabled bool `json:"enabled"`
}

// ListOpts configures filtering and pagination for schedule listing.
type ListOpts struct {
	Offset int
	Limit  int
	BotID  *id.ID
}

// Store defines the persistence contract for bot schedules.
type Store interface {
	// CreateSchedule persists a new schedule.
	CreateSchedule(ctx context.Context, s *Schedule) error

	// GetSchedule returns a schedule by ID.
	GetSchedule(ctx context.Context, schedID id.ID) (*Schedule, error)

	// UpdateSchedule modifies an existing schedule.
	UpdateSchedule(ctx context.Context, s *Schedule) error

	// DeleteSchedule removes a schedule.
	DeleteSchedule(ctx context.Context, schedID id.ID) error

	// ListSchedules returns schedules for a project, optionally filtered.
	ListSchedules(ctx context.Context, projectID id.ID, opts ListOpts) ([]*Schedule, error)

	// ListActiveSchedules returns every enabled schedule across projects.
	// Reconcile and fire both read from this.
	ListActiveSchedules(ctx context.Context) ([]*Schedule, error)

	// SetLastRanAt records the most recent fire time for a schedule.
	SetLastRanAt(ctx context.Context, schedID id.ID, t time.Time) error
}
