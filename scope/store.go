package scope

import (
	"context"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/trigger"
)

// Store defines the persistence contract for bot scopes.
type Store interface {
	// CreateScope persists a new scope row.
	CreateScope(ctx context.Context, s *Scope) error

	// GetScope returns a scope row by ID.
	GetScope(ctx context.Context, scopeID id.ID) (*Scope, error)

	// UpdateScope replaces a scope row's condition set.
	UpdateScope(ctx context.Context, s *Scope) error

	// DeleteScope hard-deletes a scope row. Re-creating an identical row
	// afterwards is allowed.
	DeleteScope(ctx context.Context, scopeID id.ID) error

	// ListScopes returns scope rows for a project, optionally filtered.
	ListScopes(ctx context.Context, projectID id.ID, opts ListOpts) ([]*Scope, error)

	// ScopesListening returns scope rows of the given kind whose subject
	// matches subjectID and whose condition set contains c. This is the
	// resolver's hot path.
	ScopesListening(ctx context.Context, kind trigger.SubjectKind, subjectID id.ID, c trigger.Condition) ([]*Scope, error)
}
