// Package store defines the composite Store interface for all engine
// persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them so a single backend serves the whole engine.
package store

import (
	"context"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/schedule"
	"github.com/langboard/engine/scope"
	"github.com/langboard/engine/webhook"
)

// Store is the aggregate persistence interface.
type Store interface {
	bot.Store
	scope.Store
	schedule.Store
	webhook.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
