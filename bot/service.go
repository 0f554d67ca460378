package bot

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
	"github.com/langboard/engine/notify"
)

// Service provides bot management operations.
type Service struct {
	store  Store
	bus    *notify.Bus
	logger *slog.Logger
}

// NewService creates a new bot service.
func NewService(store Store, bus *notify.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// Input carries the caller-supplied fields for creating or updating a bot.
type Input struct {
	ProjectID   id.ID
	Name        string
	Platform    Platform
	RunningType RunningType
	Prompt      string
	APIURL      string
	APIKey      string
	Value       string
	AllowAllIPs bool
	RateLimit   int
}

// Create registers a new bot after validating the platform/running-type
// combination and the AllowAllIPs safelist.
func (svc *Service) Create(ctx context.Context, in Input) (*Bot, error) {
	if in.ProjectID.IsNil() {
		return nil, &ValidationError{Field: "project_id", Message: "required"}
	}
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}
	if err := validateTransport(in); err != nil {
		return nil, err
	}

	b := &Bot{
		Entity:      entity.New(),
		ID:          id.NewBotID(),
		ProjectID:   in.ProjectID,
		Name:        in.Name,
		Platform:    in.Platform,
		RunningType: in.RunningType,
		Prompt:      in.Prompt,
		APIURL:      in.APIURL,
		APIKey:      in.APIKey,
		Value:       in.Value,
		AllowAllIPs: in.AllowAllIPs,
		Enabled:     true,
		RateLimit:   in.RateLimit,
	}

	if err := svc.store.CreateBot(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// Get returns a bot by ID.
func (svc *Service) Get(ctx context.Context, botID id.ID) (*Bot, error) {
	return svc.store.GetBot(ctx, botID)
}

// Update modifies an existing bot. Zero-valued fields are left unchanged,
// except AllowAllIPs and RateLimit which are always applied.
func (svc *Service) Update(ctx context.Context, botID id.ID, in Input) (*Bot, error) {
	b, err := svc.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		b.Name = in.Name
	}
	if in.Platform != "" {
		b.Platform = in.Platform
	}
	if in.RunningType != "" {
		b.RunningType = in.RunningType
	}
	if in.Prompt != "" {
		b.Prompt = in.Prompt
	}
	if in.APIURL != "" {
		b.APIURL = in.APIURL
	}
	if in.APIKey != "" {
		b.APIKey = in.APIKey
	}
	if in.Value != "" {
		b.Value = in.Value
	}
	b.AllowAllIPs = in.AllowAllIPs
	if in.RateLimit >= 0 {
		b.RateLimit = in.RateLimit
	}

	if err := validateTransport(Input{
		Platform:    b.Platform,
		RunningType: b.RunningType,
		APIURL:      b.APIURL,
		AllowAllIPs: b.AllowAllIPs,
	}); err != nil {
		return nil, err
	}

	if err := svc.store.UpdateBot(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// Delete removes a bot.
func (svc *Service) Delete(ctx context.Context, botID id.ID) error {
	return svc.store.DeleteBot(ctx, botID)
}

// List returns bots for a project.
func (svc *Service) List(ctx context.Context, projectID id.ID, opts ListOpts) ([]*Bot, error) {
	return svc.store.ListBots(ctx, projectID, opts)
}

// SetEnabled enables or disables a bot.
func (svc *Service) SetEnabled(ctx context.Context, botID id.ID, enabled bool) error {
	return svc.store.SetBotEnabled(ctx, botID, enabled)
}

// AppendLog appends a log entry for a bot and publishes a
// bot.log.updated notification. Append failures are logged, not
// propagated: a missing log line must never fail the surrounding task.
func (svc *Service) AppendLog(ctx context.Context, botID id.ID, logType LogType, message string) {
	entry := &Log{
		ID:       id.NewBotLogID(),
		BotID:    botID,
		Message:  message,
		Type:     logType,
		LoggedAt: time.Now().UTC(),
	}

	if err := svc.store.AppendLog(ctx, entry); err != nil {
		svc.logger.ErrorContext(ctx, "append bot log failed",
			"bot_id", botID, "log_type", logType, "error", err)
		return
	}

	if svc.bus != nil {
		svc.bus.Publish(notify.TopicBotLogUpdated, map[string]any{
			"bot_id":   botID.String(),
			"log_type": string(logType),
		})
	}
}

// Logs returns log entries for a bot, newest first.
func (svc *Service) Logs(ctx context.Context, botID id.ID, opts LogListOpts) ([]*Log, error) {
	return svc.store.ListLogs(ctx, botID, opts)
}

// validateTransport enforces the platform/running-type legality table,
// endpoint URL presence, and the AllowAllIPs safelist.
func validateTransport(in Input) error {
	if !ValidCombination(in.Platform, in.RunningType) {
		return &ValidationError{Field: "running_type",
			Message: "illegal for platform " + string(in.Platform)}
	}

	if in.RunningType == RunningEndpoint {
		if in.APIURL == "" {
			return &ValidationError{Field: "api_url", Message: "required for Endpoint bots"}
		}
		if _, err := url.ParseRequestURI(in.APIURL); err != nil {
			return &ValidationError{Field: "api_url", Message: "invalid URL"}
		}
	}

	if in.AllowAllIPs && !AllowAllIPsPermitted(in.Platform, in.RunningType) {
		return &ValidationError{Field: "allow_all_ips",
			Message: "not permitted for this platform and running type"}
	}

	return nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "bot validation: " + e.Field + ": " + e.Message
}
