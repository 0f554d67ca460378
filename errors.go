package engine

import "errors"

// Sentinel errors returned by engine operations.
var (
	// ErrNoStore is returned when an Engine is created without a store.
	ErrNoStore = errors.New("langboard: store is required")

	// ErrBotNotFound is returned when a bot cannot be found.
	ErrBotNotFound = errors.New("langboard: bot not found")

	// ErrScopeNotFound is returned when a bot scope cannot be found.
	ErrScopeNotFound = errors.New("langboard: bot scope not found")

	// ErrScheduleNotFound is returned when a bot schedule cannot be found.
	ErrScheduleNotFound = errors.New("langboard: bot schedule not found")

	// ErrWebhookNotFound is returned when a webhook setting cannot be found.
	ErrWebhookNotFound = errors.New("langboard: webhook setting not found")

	// ErrUnknownCondition is returned when emitting a condition that is not
	// in the taxonomy.
	ErrUnknownCondition = errors.New("langboard: unknown trigger condition")

	// ErrPayloadValidationFailed is returned when an emitted payload fails
	// its condition's JSON Schema.
	ErrPayloadValidationFailed = errors.New("langboard: payload validation failed")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("langboard: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("langboard: migration failed")
)
