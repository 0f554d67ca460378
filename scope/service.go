package scope

import (
	"context"
	"log/slog"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
	"github.com/langboard/engine/trigger"
)

// Service provides scope management operations. Every write re-checks the
// registry so no row can exist for a condition its subject kind does not
// allow.
type Service struct {
	registry *Registry
	store    Store
	logger   *slog.Logger
}

// NewService creates a new scope service.
func NewService(registry *Registry, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// Input carries the caller-supplied fields for creating a scope.
type Input struct {
	BotID       id.ID
	SubjectKind trigger.SubjectKind
	SubjectID   id.ID
	ProjectID   id.ID
	Conditions  []trigger.Condition
}

// Create binds a bot to a subject with a condition subset.
func (svc *Service) Create(ctx context.Context, in Input) (*Scope, error) {
	if in.BotID.IsNil() {
		return nil, &ValidationError{Field: "bot_id", Message: "required"}
	}
	if in.SubjectID.IsNil() {
		return nil, &ValidationError{Field: "subject_id", Message: "required"}
	}
	if in.ProjectID.IsNil() {
		return nil, &ValidationError{Field: "project_id", Message: "required"}
	}
	if len(in.Conditions) == 0 {
		return nil, &ValidationError{Field: "conditions", Message: "at least one condition required"}
	}
	if err := svc.registry.ValidateConditions(in.SubjectKind, in.Conditions); err != nil {
		return nil, &ValidationError{Field: "conditions", Message: err.Error()}
	}

	s := &Scope{
		Entity:      entity.New(),
		ID:          id.NewScopeID(),
		BotID:       in.BotID,
		SubjectKind: in.SubjectKind,
		SubjectID:   in.SubjectID,
		ProjectID:   in.ProjectID,
		Conditions:  in.Conditions,
	}

	if err := svc.store.CreateScope(ctx, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Get returns a scope row by ID.
func (svc *Service) Get(ctx context.Context, scopeID id.ID) (*Scope, error) {
	return svc.store.GetScope(ctx, scopeID)
}

// ToggleConditions replaces a scope row's condition set.
func (svc *Service) ToggleConditions(ctx context.Context, scopeID id.ID, conditions []trigger.Condition) (*Scope, error) {
	s, err := svc.store.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	if len(conditions) == 0 {
		return nil, &ValidationError{Field: "conditions", Message: "at least one condition required"}
	}
	if err := svc.registry.ValidateConditions(s.SubjectKind, conditions); err != nil {
		return nil, &ValidationError{Field: "conditions", Message: err.Error()}
	}

	s.Conditions = conditions
	if err := svc.store.UpdateScope(ctx, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Delete hard-deletes a scope row.
func (svc *Service) Delete(ctx context.Context, scopeID id.ID) error {
	return svc.store.DeleteScope(ctx, scopeID)
}

// List returns scope rows for a project.
func (svc *Service) List(ctx context.Context, projectID id.ID, opts ListOpts) ([]*Scope, error) {
	return svc.store.ListScopes(ctx, projectID, opts)
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "scope validation: " + e.Field + ": " + e.Message
}
