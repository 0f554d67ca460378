package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
	"github.com/langboard/engine/schedule"
	"github.com/langboard/engine/scope"
	"github.com/langboard/engine/trigger"
	"github.com/langboard/engine/webhook"
)

// --- Bot models ---

type botModel struct {
	grove.BaseModel `grove:"table:langboard_bots"`

	ID          string    `grove:"id,pk"`
	ProjectID   string    `grove:"project_id"`
	Name        string    `grove:"name"`
	Platform    string    `grove:"platform"`
	RunningType string    `grove:"running_type"`
	Prompt      string    `grove:"prompt"`
	APIURL      string    `grove:"api_url"`
	APIKey      string    `grove:"api_key"`
	Value       string    `grove:"value"`
	AllowAllIPs bool      `grove:"allow_all_ips"`
	Enabled     bool      `grove:"enabled"`
	RateLimit   int       `grove:"rate_limit"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toBotModel(b *bot.Bot) *botModel {
	return &botModel{
		ID:          b.ID.String(),
		ProjectID:   b.ProjectID.String(),
		Name:        b.Name,
		Platform:    string(b.Platform),
		RunningType: string(b.RunningType),
		Prompt:      b.Prompt,
		APIURL:      b.APIURL,
		APIKey:      b.APIKey,
		Value:       b.Value,
		AllowAllIPs: b.AllowAllIPs,
		Enabled:     b.Enabled,
		RateLimit:   b.RateLimit,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func fromBotModel(m *botModel) (*bot.Bot, error) {
	botID, err := id.ParseBotID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse bot ID %q: %w", m.ID, err)
	}
	projectID, err := id.ParseAny(m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID %q: %w", m.ProjectID, err)
	}

	return &bot.Bot{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          botID,
		ProjectID:   projectID,
		Name:        m.Name,
		Platform:    bot.Platform(m.Platform),
		RunningType: bot.RunningType(m.RunningType),
		Prompt:      m.Prompt,
		APIURL:      m.APIURL,
		APIKey:      m.APIKey,
		Value:       m.Value,
		AllowAllIPs: m.AllowAllIPs,
		Enabled:     m.Enabled,
		RateLimit:   m.RateLimit,
	}, nil
}

type botLogModel struct {
	grove.BaseModel `grove:"table:langboard_bot_logs"`

	ID       string    `grove:"id,pk"`
	BotID    string    `grove:"bot_id"`
	Message  string    `grove:"message"`
	LogType  string    `grove:"log_type"`
	LoggedAt time.Time `grove:"logged_at"`
}

func toBotLogModel(l *bot.Log) *botLogModel {
	return &botLogModel{
		ID:       l.ID.String(),
		BotID:    l.BotID.String(),
		Message:  l.Message,
		LogType:  string(l.Type),
		LoggedAt: l.LoggedAt,
	}
}

func fromBotLogModel(m *botLogModel) (*bot.Log, error) {
	logID, err := id.ParseBotLogID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse bot log ID %q: %w", m.ID, err)
	}
	botID, err := id.ParseBotID(m.BotID)
	if err != nil {
		return nil, fmt.Errorf("parse bot ID %q: %w", m.BotID, err)
	}

	return &bot.Log{
		ID:       logID,
		BotID:    botID,
		Message:  m.Message,
		Type:     bot.LogType(m.LogType),
		LoggedAt: m.LoggedAt,
	}, nil
}

// --- Scope models ---

type scopeModel struct {
	grove.BaseModel `grove:"table:langboard_bot_scopes"`

	ID          string    `grove:"id,pk"`
	BotID       string    `grove:"bot_id"`
	SubjectKind string    `grove:"subject_kind"`
	SubjectID   string    `grove:"subject_id"`
	ProjectID   string    `grove:"project_id"`
	Conditions  string    `grove:"conditions"` // JSON array
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toScopeModel(sc *scope.Scope) *scopeModel {
	conds, _ := json.Marshal(sc.Conditions) //nolint:errcheck // static shape

	return &scopeModel{
		ID:          sc.ID.String(),
		BotID:       sc.BotID.String(),
		SubjectKind: string(sc.SubjectKind),
		SubjectID:   sc.SubjectID.String(),
		ProjectID:   sc.ProjectID.String(),
		Conditions:  string(conds),
		CreatedAt:   sc.CreatedAt,
		UpdatedAt:   sc.UpdatedAt,
	}
}

func fromScopeModel(m *scopeModel) (*scope.Scope, error) {
	scopeID, err := id.ParseScopeID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse scope ID %q: %w", m.ID, err)
	}
	botID, err := id.ParseBotID(m.BotID)
	if err != nil {
		return nil, fmt.Errorf("parse bot ID %q: %w", m.BotID, err)
	}
	subjectID, err := id.ParseAny(m.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("parse subject ID %q: %w", m.SubjectID, err)
	}
	projectID, err := id.ParseAny(m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID %q: %w", m.ProjectID, err)
	}

	var conds []trigger.Condition
	if m.Conditions != "" {
		if err := json.Unmarshal([]byte(m.Conditions), &conds); err != nil {
			return nil, fmt.Errorf("parse conditions for scope %q: %w", m.ID, err)
		}
	}

	return &scope.Scope{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          scopeID,
		BotID:       botID,
		SubjectKind: trigger.SubjectKind(m.SubjectKind),
		SubjectID:   subjectID,
		ProjectID:   projectID,
		Conditions:  conds,
	}, nil
}

// --- Schedule models ---

type scheduleModel struct {
	grove.BaseModel `grove:"table:langboard_bot_schedules"`

	ID        string     `grove:"id,pk"`
	BotID     string     `grove:"bot_id"`
	ProjectID string     `grove:"project_id"`
	Cron      string     `grove:"cron"`
	Timezone  string     `grove:"timezone"`
	UTCCron   string     `grove:"utc_cron"`
	LastRanAt *time.Time `grove:"last_ran_at"`
	Enabled   bool       `grove:"enabled"`
	CreatedAt time.Time  `grove:"created_at"`
	UpdatedAt time.Time  `grove:"updated_at"`
}

func toScheduleModel(sched *schedule.Schedule) *scheduleModel {
	return &scheduleModel{
		ID:        sched.ID.String(),
		BotID:     sched.BotID.String(),
		ProjectID: sched.ProjectID.String(),
		Cron:      sched.Cron,
		Timezone:  sched.Timezone,
		UTCCron:   sched.UTCCron,
		LastRanAt: sched.LastRanAt,
		Enabled:   sched.Enabled,
		CreatedAt: sched.CreatedAt,
		UpdatedAt: sched.UpdatedAt,
	}
}

func fromScheduleModel(m *scheduleModel) (*schedule.Schedule, error) {
	schedID, err := id.ParseScheduleID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse schedule ID %q: %w", m.ID, err)
	}
	botID, err := id.ParseBotID(m.BotID)
	if err != nil {
		return nil, fmt.Errorf("parse bot ID %q: %w", m.BotID, err)
	}
	projectID, err := id.ParseAny(m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID %q: %w", m.ProjectID, err)
	}

	return &schedule.Schedule{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        schedID,
		BotID:     botID,
		ProjectID: projectID,
		Cron:      m.Cron,
		Timezone:  m.Timezone,
		UTCCron:   m.UTCCron,
		LastRanAt: m.LastRanAt,
		Enabled:   m.Enabled,
	}, nil
}

// --- Webhook setting models ---

type webhookSettingModel struct {
	grove.BaseModel `grove:"table:langboard_webhook_settings"`

	ID             string     `grove:"id,pk"`
	URL            string     `grove:"url"`
	Secret         string     `grove:"secret"`
	LastUsedAt     *time.Time `grove:"last_used_at"`
	TotalUsedCount int        `grove:"total_used_count"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toWebhookSettingModel(w *webhook.Setting) *webhookSettingModel {
	return &webhookSettingModel{
		ID:             w.ID.String(),
		URL:            w.URL,
		Secret:         w.Secret,
		LastUsedAt:     w.LastUsedAt,
		TotalUsedCount: w.TotalUsedCount,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

func fromWebhookSettingModel(m *webhookSettingModel) (*webhook.Setting, error) {
	settingID, err := id.ParseWebhookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook setting ID %q: %w", m.ID, err)
	}

	return &webhook.Setting{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             settingID,
		URL:            m.URL,
		Secret:         m.Secret,
		LastUsedAt:     m.LastUsedAt,
		TotalUsedCount: m.TotalUsedCount,
	}, nil
}
