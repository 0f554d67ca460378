// Package scope binds bots to subjects (project, column, card) with the set
// of trigger conditions each bot listens for there, and resolves which bots
// fire for an emitted condition.
package scope

import (
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
	"github.com/langboard/engine/trigger"
)

// Scope is one row binding a bot to a subject with a condition subset.
//
// Invariant: every condition in Conditions is listed by the registry as
// allowed for SubjectKind. The service enforces this on create and toggle.
type Scope struct {
	entity.Entity

	// ID is the unique TypeID for this scope row.
	ID id.ID `json:"id"`

	// BotID is the listening bot.
	BotID id.ID `json:"bot_id"`

	// SubjectKind is the granularity of the subject.
	SubjectKind trigger.SubjectKind `json:"subject_kind"`

	// SubjectID identifies the project, column, or card listened on.
	SubjectID id.ID `json:"subject_id"`

	// ProjectID is the owning project regardless of granularity, so that
	// project deletion cascades over column and card scopes too.
	ProjectID id.ID `json:"project_id"`

	// Conditions is the subset of allowed conditions this scope listens for.
	Conditions []trigger.Condition `json:"conditions"`
}

// Listens reports whether the scope's condition set contains c.
func (s *Scope) Listens(c trigger.Condition) bool {
	for _, have := range s.Conditions {
		if have == c {
			return true
		}
	}
	return false
}

// ListOpts configures filtering and pagination for scope listing.
type ListOpts struct {
	Offset int
	Limit  int
	BotID  *id.ID
	Kind   *trigger.SubjectKind
}
