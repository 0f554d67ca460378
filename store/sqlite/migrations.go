package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the engine store (SQLite).
var Migrations = migrate.NewGroup("langboard")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_langboard_bots",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS langboard_bots (
    id            TEXT PRIMARY KEY,
    project_id    TEXT NOT NULL DEFAULT '',
    name          TEXT NOT NULL DEFAULT '',
    platform      TEXT NOT NULL DEFAULT 'Default',
    running_type  TEXT NOT NULL DEFAULT 'Default',
    prompt        TEXT NOT NULL DEFAULT '',
    api_url       TEXT NOT NULL DEFAULT '',
    api_key       TEXT NOT NULL DEFAULT '',
    value         TEXT NOT NULL DEFAULT '',
    allow_all_ips INTEGER NOT NULL DEFAULT 0,
    enabled       INTEGER NOT NULL DEFAULT 1,
    rate_limit    INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_langboard_bots_project ON langboard_bots (project_id);
CREATE INDEX IF NOT EXISTS idx_langboard_bots_project_enabled ON langboard_bots (project_id, enabled);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS langboard_bots`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_langboard_bot_logs",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS langboard_bot_logs (
    id        TEXT PRIMARY KEY,
    bot_id    TEXT NOT NULL DEFAULT '',
    message   TEXT NOT NULL DEFAULT '',
    log_type  TEXT NOT NULL DEFAULT 'Info',
    logged_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_langboard_bot_logs_bot ON langboard_bot_logs (bot_id, logged_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS langboard_bot_logs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_langboard_bot_scopes",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS langboard_bot_scopes (
    id           TEXT PRIMARY KEY,
    bot_id       TEXT NOT NULL DEFAULT '',
    subject_kind TEXT NOT NULL DEFAULT '',
    subject_id   TEXT NOT NULL DEFAULT '',
    project_id   TEXT NOT NULL DEFAULT '',
    conditions   TEXT NOT NULL DEFAULT '[]',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_langboard_bot_scopes_subject ON langboard_bot_scopes (subject_kind, subject_id);
CREATE INDEX IF NOT EXISTS idx_langboard_bot_scopes_project ON langboard_bot_scopes (project_id);
CREATE INDEX IF NOT EXISTS idx_langboard_bot_scopes_bot ON langboard_bot_scopes (bot_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS langboard_bot_scopes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_langboard_bot_schedules",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS langboard_bot_schedules (
    id          TEXT PRIMARY KEY,
    bot_id      TEXT NOT NULL DEFAULT '',
    project_id  TEXT NOT NULL DEFAULT '',
    cron        TEXT NOT NULL DEFAULT '',
    timezone    TEXT NOT NULL DEFAULT 'UTC',
    utc_cron    TEXT NOT NULL DEFAULT '',
    last_ran_at TEXT,
    enabled     INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_langboard_bot_schedules_enabled ON langboard_bot_schedules (enabled);
CREATE INDEX IF NOT EXISTS idx_langboard_bot_schedules_bot ON langboard_bot_schedules (bot_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS langboard_bot_schedules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_langboard_webhook_settings",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS langboard_webhook_settings (
    id               TEXT PRIMARY KEY,
    url              TEXT NOT NULL DEFAULT '',
    secret           TEXT NOT NULL DEFAULT '',
    last_used_at     TEXT,
    total_used_count INTEGER NOT NULL DEFAULT 0,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS langboard_webhook_settings`)
				return err
			},
		},
	)
}
