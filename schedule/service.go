package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
)

// Service provides schedule management. Every mutation reconciles the cron
// backend so the installed entries always track the active set.
type Service struct {
	store      Store
	reconciler *Reconciler
	logger     *slog.Logger
	parser     cron.Parser
}

// NewService creates a new schedule service.
func NewService(store Store, reconciler *Reconciler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		reconciler: reconciler,
		logger:     logger,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Input carries the caller-supplied fields for creating or updating a
// schedule.
type Input struct {
	BotID     id.ID
	ProjectID id.ID
	Cron      string
	Timezone  string
}

// Create registers a schedule and installs its cron entry.
func (svc *Service) Create(ctx context.Context, in Input) (*Schedule, error) {
	if in.BotID.IsNil() {
		return nil, &ValidationError{Field: "bot_id", Message: "required"}
	}
	if in.ProjectID.IsNil() {
		return nil, &ValidationError{Field: "project_id", Message: "required"}
	}

	utcCron, err := svc.validate(in.Cron, in.Timezone)
	if err != nil {
		return nil, err
	}

	s := &Schedule{
		Entity:    entity.New(),
		ID:        id.NewScheduleID(),
		BotID:     in.BotID,
		ProjectID: in.ProjectID,
		Cron:      in.Cron,
		Timezone:  in.Timezone,
		UTCCron:   utcCron,
		Enabled:   true,
	}

	if err := svc.store.CreateSchedule(ctx, s); err != nil {
		return nil, err
	}

	svc.reconcile(ctx)
	return s, nil
}

// Get returns a schedule by ID.
func (svc *Service) Get(ctx context.Context, schedID id.ID) (*Schedule, error) {
	return svc.store.GetSchedule(ctx, schedID)
}

// Update modifies a schedule's cron, zone, or enabled state and
// re-reconciles.
func (svc *Service) Update(ctx context.Context, schedID id.ID, in Input, enabled *bool) (*Schedule, error) {
	s, err := svc.store.GetSchedule(ctx, schedID)
	if err != nil {
		return nil, err
	}

	if in.Cron != "" {
		s.Cron = in.Cron
	}
	if in.Timezone != "" {
		s.Timezone = in.Timezone
	}
	if enabled != nil {
		s.Enabled = *enabled
	}

	utcCron, err := svc.validate(s.Cron, s.Timezone)
	if err != nil {
		return nil, err
	}
	s.UTCCron = utcCron

	if err := svc.store.UpdateSchedule(ctx, s); err != nil {
		return nil, err
	}

	svc.reconcile(ctx)
	return s, nil
}

// Delete removes a schedule and its installed cron entry.
func (svc *Service) Delete(ctx context.Context, schedID id.ID) error {
	if err := svc.store.DeleteSchedule(ctx, schedID); err != nil {
		return err
	}
	svc.reconcile(ctx)
	return nil
}

// List returns schedules for a project.
func (svc *Service) List(ctx context.Context, projectID id.ID, opts ListOpts) ([]*Schedule, error) {
	return svc.store.ListSchedules(ctx, projectID, opts)
}

// validate checks the cron and zone and returns the current UTC-normalised
// spec.
func (svc *Service) validate(cronStr, tz string) (string, error) {
	utcCron, err := NormalizeAt(cronStr, tz, time.Now().UTC())
	if err != nil {
		return "", &ValidationError{Field: "cron", Message: err.Error()}
	}
	if utcCron != "@reboot" {
		if _, parseErr := svc.parser.Parse(utcCron); parseErr != nil {
			return "", &ValidationError{Field: "cron", Message: parseErr.Error()}
		}
	}
	return utcCron, nil
}

// reconcile runs the reconciler, logging rather than failing the mutation:
// the schedule row is already durable and the next reconcile will converge.
func (svc *Service) reconcile(ctx context.Context) {
	if svc.reconciler == nil {
		return
	}
	if err := svc.reconciler.Reconcile(ctx); err != nil {
		svc.logger.ErrorContext(ctx, "cron reconcile failed", "error", err)
	}
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "schedule validation: " + e.Field + ": " + e.Message
}
