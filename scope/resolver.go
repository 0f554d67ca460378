package scope

import (
	"context"
	"log/slog"
	"sort"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/trigger"
)

// BotGetter is the slice of the bot store the resolver needs to drop
// missing or disabled bots.
type BotGetter interface {
	GetBot(ctx context.Context, botID id.ID) (*bot.Bot, error)
}

// Location identifies where in the board hierarchy a condition fired.
// ColumnID and CardID are optional.
type Location struct {
	ProjectID id.ID
	ColumnID  id.ID
	CardID    id.ID
}

// Resolver computes the ordered set of bots scoped to a condition at a
// location. Resolution never fails: misconfigured subject kinds are logged
// and skipped so emit proceeds.
type Resolver struct {
	registry *Registry
	store    Store
	bots     BotGetter
	logger   *slog.Logger
}

// NewResolver creates a resolver over the given registry and stores.
func NewResolver(registry *Registry, store Store, bots BotGetter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry: registry,
		store:    store,
		bots:     bots,
		logger:   logger,
	}
}

// resolved tracks the most specific scope granularity seen per bot.
type resolved struct {
	botID       id.ID
	specificity int
}

// Resolve returns the bot IDs listening for c at loc, deduplicated and
// ordered by (most-specific scope first, then bot ID ascending). A bot
// listening at multiple granularities appears once; the most specific row
// is responsible.
func (r *Resolver) Resolve(ctx context.Context, c trigger.Condition, loc Location) []id.ID {
	seen := make(map[string]*resolved)

	for _, kind := range r.registry.KindsFor(c) {
		subjectID, ok := r.subjectFor(kind, loc)
		if !ok {
			// The registry allows this kind but the emit carries no matching
			// subject. Configuration and call site disagree; skip the kind.
			r.logger.WarnContext(ctx, "scope kind has no subject for emit, skipping",
				"condition", c, "subject_kind", kind)
			continue
		}
		if subjectID.IsNil() {
			continue // location does not reach this granularity
		}

		rows, err := r.store.ScopesListening(ctx, kind, subjectID, c)
		if err != nil {
			r.logger.ErrorContext(ctx, "scope query failed, skipping kind",
				"condition", c, "subject_kind", kind, "error", err)
			continue
		}

		spec := kind.Specificity()
		for _, row := range rows {
			key := row.BotID.String()
			if prev, ok := seen[key]; ok {
				if spec > prev.specificity {
					prev.specificity = spec
				}
				continue
			}
			seen[key] = &resolved{botID: row.BotID, specificity: spec}
		}
	}

	out := make([]*resolved, 0, len(seen))
	for _, res := range seen {
		if !r.botEligible(ctx, res.botID) {
			continue
		}
		out = append(out, res)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].specificity != out[j].specificity {
			return out[i].specificity > out[j].specificity
		}
		return out[i].botID.String() < out[j].botID.String()
	})

	ids := make([]id.ID, len(out))
	for i, res := range out {
		ids[i] = res.botID
	}
	return ids
}

// subjectFor maps a subject kind to the matching location field.
func (r *Resolver) subjectFor(kind trigger.SubjectKind, loc Location) (id.ID, bool) {
	switch kind {
	case trigger.SubjectProject:
		return loc.ProjectID, true
	case trigger.SubjectColumn:
		return loc.ColumnID, true
	case trigger.SubjectCard:
		return loc.CardID, true
	default:
		return id.Nil, false
	}
}

// botEligible drops soft-deleted or disabled bots from resolution.
func (r *Resolver) botEligible(ctx context.Context, botID id.ID) bool {
	b, err := r.bots.GetBot(ctx, botID)
	if err != nil {
		r.logger.DebugContext(ctx, "bot missing during resolve, dropping",
			"bot_id", botID, "error", err)
		return false
	}
	return b.Enabled
}
