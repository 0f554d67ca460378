package bot

import (
	"context"

	"github.com/langboard/engine/id"
)

// Store defines the persistence contract for bots and their logs.
type Store interface {
	// CreateBot persists a new bot.
	CreateBot(ctx context.Context, b *Bot) error

	// GetBot returns a bot by ID.
	GetBot(ctx context.Context, botID id.ID) (*Bot, error)

	// UpdateBot modifies an existing bot.
	UpdateBot(ctx context.Context, b *Bot) error

	// DeleteBot removes a bot and cascades to its scopes, schedules, and logs.
	DeleteBot(ctx context.Context, botID id.ID) error

	// ListBots returns bots for a project, optionally filtered.
	ListBots(ctx context.Context, projectID id.ID, opts ListOpts) ([]*Bot, error)

	// SetBotEnabled enables or disables a bot without deleting it.
	SetBotEnabled(ctx context.Context, botID id.ID, enabled bool) error

	// AppendLog appends a log entry and evicts entries past the ring cap.
	AppendLog(ctx context.Context, entry *Log) error

	// ListLogs returns log entries for a bot, newest first.
	ListLogs(ctx context.Context, botID id.ID, opts LogListOpts) ([]*Log, error)
}
