package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
	"github.com/langboard/engine/signature"
)

// ValidationError reports an invalid webhook setting field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("webhook: %s: %s", e.Field, e.Message)
}

// Service manages webhook destinations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a webhook settings service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Create registers a destination. The signing secret is generated here
// and returned once on the created setting.
func (s *Service) Create(ctx context.Context, rawURL string) (*Setting, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	setting := &Setting{
		Entity: entity.New(),
		ID:     id.NewWebhookID(),
		URL:    rawURL,
		Secret: signature.GenerateSecret(),
	}
	if err := s.store.CreateSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("create webhook setting: %w", err)
	}

	s.logger.InfoContext(ctx, "webhook destination created", "setting_id", setting.ID, "url", setting.URL)
	return setting, nil
}

// UpdateURL changes a destination's URL. The secret is kept; use
// RotateSecret to invalidate receivers.
func (s *Service) UpdateURL(ctx context.Context, settingID id.ID, rawURL string) (*Setting, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	setting, err := s.store.GetSetting(ctx, settingID)
	if err != nil {
		return nil, err
	}

	setting.URL = rawURL
	setting.Touch()
	if err := s.store.UpdateSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("update webhook setting: %w", err)
	}
	return setting, nil
}

// RotateSecret replaces the destination's signing secret.
func (s *Service) RotateSecret(ctx context.Context, settingID id.ID) (*Setting, error) {
	setting, err := s.store.GetSetting(ctx, settingID)
	if err != nil {
		return nil, err
	}

	setting.Secret = signature.GenerateSecret()
	setting.Touch()
	if err := s.store.UpdateSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("rotate webhook secret: %w", err)
	}

	s.logger.InfoContext(ctx, "webhook secret rotated", "setting_id", setting.ID)
	return setting, nil
}

// Delete removes a destination.
func (s *Service) Delete(ctx context.Context, settingID id.ID) error {
	return s.store.DeleteSetting(ctx, settingID)
}

// List returns destinations ordered by creation time.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Setting, error) {
	return s.store.ListSettings(ctx, opts)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "required"}
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Message: "must be an absolute http(s) URL"}
	}
	return nil
}
