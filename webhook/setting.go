// Package webhook implements outbound webhook fan-out: user-configured
// destinations that receive every emitted trigger, with per-destination
// usage accounting.
package webhook

import (
	"context"
	"time"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
)

// Setting is one configured webhook destination.
type Setting struct {
	entity.Entity

	// ID is the unique TypeID for this destination.
	ID id.ID `json:"id"`

	// URL is the destination endpoint.
	URL string `json:"url"`

	// Secret signs outgoing requests. Never serialized.
	Secret string `json:"-"`

	// LastUsedAt is the time of the last successful delivery, nil when
	// the destination has never been reached.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	// TotalUsedCount counts successful deliveries only. Failed sends do
	// not advance it.
	TotalUsedCount int `json:"total_used_count"`
}

// ListOpts configures pagination for setting listing.
type ListOpts struct {
	Offset int
	Limit  int
}

// Store persists webhook settings.
type Store interface {
	// CreateSetting inserts a new destination.
	CreateSetting(ctx context.Context, s *Setting) error

	// GetSetting loads a destination by ID.
	GetSetting(ctx context.Context, settingID id.ID) (*Setting, error)

	// UpdateSetting persists changes to a destination.
	UpdateSetting(ctx context.Context, s *Setting) error

	// DeleteSetting removes a destination.
	DeleteSetting(ctx context.Context, settingID id.ID) error

	// ListSettings returns destinations ordered by creation time.
	ListSettings(ctx context.Context, opts ListOpts) ([]*Setting, error)

	// RecordUse advances the destination's success counter by one, stamps
	// last_used_at, and returns the updated count. The count comes from
	// the store, not the caller's snapshot, so concurrent deliveries
	// announce consistent totals.
	RecordUse(ctx context.Context, settingID id.ID, at time.Time) (int, error)
}
