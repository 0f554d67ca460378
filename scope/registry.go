package scope

import (
	"fmt"
	"sync"

	"github.com/langboard/engine/trigger"
)

// Registry is the explicit boot-time registry of scope subject kinds and
// the conditions each kind may listen for. The resolver consults its
// precomputed condition → kinds map on every emit.
type Registry struct {
	mu      sync.RWMutex
	allowed map[trigger.SubjectKind]map[trigger.Condition]bool
	byCond  map[trigger.Condition][]trigger.SubjectKind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		allowed: make(map[trigger.SubjectKind]map[trigger.Condition]bool),
		byCond:  make(map[trigger.Condition][]trigger.SubjectKind),
	}
}

// DefaultRegistry returns a registry populated from the trigger taxonomy:
// each subject kind registered with exactly the conditions the taxonomy
// lists for it.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, kind := range []trigger.SubjectKind{trigger.SubjectProject, trigger.SubjectColumn, trigger.SubjectCard} {
		r.Register(kind, trigger.AllowedFor(kind))
	}
	return r
}

// Register binds a subject kind to its allowed conditions. Calling it again
// for the same kind replaces the previous set.
func (r *Registry) Register(kind trigger.SubjectKind, conditions []trigger.Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[trigger.Condition]bool, len(conditions))
	for _, c := range conditions {
		set[c] = true
	}
	r.allowed[kind] = set
	r.rebuildLocked()
}

// rebuildLocked recomputes the condition → kinds map. Kinds are appended in
// project, column, card order so results are stable.
func (r *Registry) rebuildLocked() {
	r.byCond = make(map[trigger.Condition][]trigger.SubjectKind)
	for _, kind := range []trigger.SubjectKind{trigger.SubjectProject, trigger.SubjectColumn, trigger.SubjectCard} {
		for c := range r.allowed[kind] {
			r.byCond[c] = append(r.byCond[c], kind)
		}
	}
}

// KindsFor returns the subject kinds that may listen for a condition.
func (r *Registry) KindsFor(c trigger.Condition) []trigger.SubjectKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := r.byCond[c]
	out := make([]trigger.SubjectKind, len(kinds))
	copy(out, kinds)
	return out
}

// Allows reports whether the subject kind may listen for the condition.
func (r *Registry) Allows(kind trigger.SubjectKind, c trigger.Condition) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allowed[kind][c]
}

// ValidateConditions checks that every condition in the set is allowed for
// the subject kind. Used on scope create and toggle.
func (r *Registry) ValidateConditions(kind trigger.SubjectKind, conditions []trigger.Condition) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.allowed[kind]
	if !ok {
		return fmt.Errorf("scope: unknown subject kind %q", kind)
	}
	for _, c := range conditions {
		if !set[c] {
			return fmt.Errorf("scope: condition %q not allowed for subject kind %q", c, kind)
		}
	}
	return nil
}
