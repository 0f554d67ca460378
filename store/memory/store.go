// Package memory provides an in-memory Store implementation for unit
// testing and single-process development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/schedule"
	"github.com/langboard/engine/scope"
	enginestore "github.com/langboard/engine/store"
	"github.com/langboard/engine/trigger"
	"github.com/langboard/engine/webhook"
)

// compile-time interface check.
var _ enginestore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	bots      map[string]*bot.Bot          // keyed by ID string
	logs      map[string][]*bot.Log        // keyed by bot ID string, oldest first
	scopes    map[string]*scope.Scope      // keyed by ID string
	schedules map[string]*schedule.Schedule
	webhooks  map[string]*webhook.Setting

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		bots:      make(map[string]*bot.Bot),
		logs:      make(map[string][]*bot.Log),
		scopes:    make(map[string]*scope.Scope),
		schedules: make(map[string]*schedule.Schedule),
		webhooks:  make(map[string]*webhook.Setting),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return engine.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// bot.Store
// ──────────────────────────────────────────────────

// CreateBot persists a new bot.
func (s *Store) CreateBot(_ context.Context, b *bot.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *b
	s.bots[b.ID.String()] = &clone
	return nil
}

// GetBot returns a bot by ID.
func (s *Store) GetBot(_ context.Context, botID id.ID) (*bot.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bots[botID.String()]
	if !ok {
		return nil, engine.ErrBotNotFound
	}
	clone := *b
	return &clone, nil
}

// UpdateBot modifies an existing bot.
func (s *Store) UpdateBot(_ context.Context, b *bot.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bots[b.ID.String()]; !ok {
		return engine.ErrBotNotFound
	}
	clone := *b
	clone.UpdatedAt = time.Now().UTC()
	s.bots[b.ID.String()] = &clone
	return nil
}

// DeleteBot removes a bot and cascades to its scopes, schedules, and logs.
func (s *Store) DeleteBot(_ context.Context, botID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := botID.String()
	if _, ok := s.bots[key]; !ok {
		return engine.ErrBotNotFound
	}
	delete(s.bots, key)
	delete(s.logs, key)
	for sid, sc := range s.scopes {
		if sc.BotID == botID {
			delete(s.scopes, sid)
		}
	}
	for sid, sched := range s.schedules {
		if sched.BotID == botID {
			delete(s.schedules, sid)
		}
	}
	return nil
}

// ListBots returns bots for a project ordered by creation time.
func (s *Store) ListBots(_ context.Context, projectID id.ID, opts bot.ListOpts) ([]*bot.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*bot.Bot
	for _, b := range s.bots {
		if b.ProjectID != projectID {
			continue
		}
		if opts.Enabled != nil && b.Enabled != *opts.Enabled {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, opts.Offset, opts.Limit), nil
}

// SetBotEnabled flips a bot's enabled bit.
func (s *Store) SetBotEnabled(_ context.Context, botID id.ID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bots[botID.String()]
	if !ok {
		return engine.ErrBotNotFound
	}
	b.Enabled = enabled
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendLog appends a log entry, evicting the oldest entries past the
// ring cap.
func (s *Store) AppendLog(_ context.Context, entry *bot.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.BotID.String()
	if _, ok := s.bots[key]; !ok {
		return engine.ErrBotNotFound
	}

	clone := *entry
	ring := append(s.logs[key], &clone)
	if over := len(ring) - bot.LogRingSize; over > 0 {
		ring = ring[over:]
	}
	s.logs[key] = ring
	return nil
}

// ListLogs returns log entries for a bot, newest first.
func (s *Store) ListLogs(_ context.Context, botID id.ID, opts bot.LogListOpts) ([]*bot.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.logs[botID.String()]
	var out []*bot.Log
	for i := len(ring) - 1; i >= 0; i-- {
		if opts.Type != nil && ring[i].Type != *opts.Type {
			continue
		}
		clone := *ring[i]
		out = append(out, &clone)
	}
	return paginate(out, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// scope.Store
// ──────────────────────────────────────────────────

// CreateScope persists a new scope row.
func (s *Store) CreateScope(_ context.Context, sc *scope.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[sc.ID.String()] = cloneScope(sc)
	return nil
}

// GetScope returns a scope row by ID.
func (s *Store) GetScope(_ context.Context, scopeID id.ID) (*scope.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scopes[scopeID.String()]
	if !ok {
		return nil, engine.ErrScopeNotFound
	}
	return cloneScope(sc), nil
}

// UpdateScope replaces a scope row's condition set.
func (s *Store) UpdateScope(_ context.Context, sc *scope.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scopes[sc.ID.String()]; !ok {
		return engine.ErrScopeNotFound
	}
	clone := cloneScope(sc)
	clone.UpdatedAt = time.Now().UTC()
	s.scopes[sc.ID.String()] = clone
	return nil
}

// DeleteScope hard-deletes a scope row.
func (s *Store) DeleteScope(_ context.Context, scopeID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scopes[scopeID.String()]; !ok {
		return engine.ErrScopeNotFound
	}
	delete(s.scopes, scopeID.String())
	return nil
}

// ListScopes returns scope rows for a project ordered by creation time.
func (s *Store) ListScopes(_ context.Context, projectID id.ID, opts scope.ListOpts) ([]*scope.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*scope.Scope
	for _, sc := range s.scopes {
		if sc.ProjectID != projectID {
			continue
		}
		if opts.BotID != nil && sc.BotID != *opts.BotID {
			continue
		}
		if opts.Kind != nil && sc.SubjectKind != *opts.Kind {
			continue
		}
		out = append(out, cloneScope(sc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, opts.Offset, opts.Limit), nil
}

// ScopesListening returns scope rows matching the resolver's hot path.
func (s *Store) ScopesListening(_ context.Context, kind trigger.SubjectKind, subjectID id.ID, c trigger.Condition) ([]*scope.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*scope.Scope
	for _, sc := range s.scopes {
		if sc.SubjectKind != kind || sc.SubjectID != subjectID {
			continue
		}
		if !sc.Listens(c) {
			continue
		}
		out = append(out, cloneScope(sc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// ──────────────────────────────────────────────────
// schedule.Store
// ──────────────────────────────────────────────────

// CreateSchedule persists a new schedule.
func (s *Store) CreateSchedule(_ context.Context, sched *schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.ID.String()] = cloneSchedule(sched)
	return nil
}

// GetSchedule returns a schedule by ID.
func (s *Store) GetSchedule(_ context.Context, schedID id.ID) (*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, ok := s.schedules[schedID.String()]
	if !ok {
		return nil, engine.ErrScheduleNotFound
	}
	return cloneSchedule(sched), nil
}

// UpdateSchedule modifies an existing schedule.
func (s *Store) UpdateSchedule(_ context.Context, sched *schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[sched.ID.String()]; !ok {
		return engine.ErrScheduleNotFound
	}
	clone := cloneSchedule(sched)
	clone.UpdatedAt = time.Now().UTC()
	s.schedules[sched.ID.String()] = clone
	return nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(_ context.Context, schedID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[schedID.String()]; !ok {
		return engine.ErrScheduleNotFound
	}
	delete(s.schedules, schedID.String())
	return nil
}

// ListSchedules returns schedules for a project ordered by creation time.
func (s *Store) ListSchedules(_ context.Context, projectID id.ID, opts schedule.ListOpts) ([]*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schedule.Schedule
	for _, sched := range s.schedules {
		if sched.ProjectID != projectID {
			continue
		}
		if opts.BotID != nil && sched.BotID != *opts.BotID {
			continue
		}
		out = append(out, cloneSchedule(sched))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, opts.Offset, opts.Limit), nil
}

// ListActiveSchedules returns every enabled schedule across projects.
func (s *Store) ListActiveSchedules(_ context.Context) ([]*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schedule.Schedule
	for _, sched := range s.schedules {
		if !sched.Enabled {
			continue
		}
		out = append(out, cloneSchedule(sched))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// SetLastRanAt records the most recent fire time for a schedule.
func (s *Store) SetLastRanAt(_ context.Context, schedID id.ID, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[schedID.String()]
	if !ok {
		return engine.ErrScheduleNotFound
	}
	at := t
	sched.LastRanAt = &at
	sched.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// webhook.Store
// ──────────────────────────────────────────────────

// CreateSetting inserts a new destination.
func (s *Store) CreateSetting(_ context.Context, w *webhook.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *w
	s.webhooks[w.ID.String()] = &clone
	return nil
}

// GetSetting loads a destination by ID.
func (s *Store) GetSetting(_ context.Context, settingID id.ID) (*webhook.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[settingID.String()]
	if !ok {
		return nil, engine.ErrWebhookNotFound
	}
	clone := *w
	return &clone, nil
}

// UpdateSetting persists changes to a destination.
func (s *Store) UpdateSetting(_ context.Context, w *webhook.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[w.ID.String()]; !ok {
		return engine.ErrWebhookNotFound
	}
	clone := *w
	clone.UpdatedAt = time.Now().UTC()
	s.webhooks[w.ID.String()] = &clone
	return nil
}

// DeleteSetting removes a destination.
func (s *Store) DeleteSetting(_ context.Context, settingID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[settingID.String()]; !ok {
		return engine.ErrWebhookNotFound
	}
	delete(s.webhooks, settingID.String())
	return nil
}

// ListSettings returns destinations ordered by creation time.
func (s *Store) ListSettings(_ context.Context, opts webhook.ListOpts) ([]*webhook.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*webhook.Setting
	for _, w := range s.webhooks {
		clone := *w
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, opts.Offset, opts.Limit), nil
}

// RecordUse advances the success counter and stamps last_used_at.
func (s *Store) RecordUse(_ context.Context, settingID id.ID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[settingID.String()]
	if !ok {
		return 0, engine.ErrWebhookNotFound
	}
	w.TotalUsedCount++
	stamp := at
	w.LastUsedAt = &stamp
	w.UpdatedAt = time.Now().UTC()
	return w.TotalUsedCount, nil
}

// ──────────────────────────────────────────────────
// helpers
// ──────────────────────────────────────────────────

func cloneScope(sc *scope.Scope) *scope.Scope {
	clone := *sc
	clone.Conditions = make([]trigger.Condition, len(sc.Conditions))
	copy(clone.Conditions, sc.Conditions)
	return &clone
}

func cloneSchedule(sched *schedule.Schedule) *schedule.Schedule {
	clone := *sched
	if sched.LastRanAt != nil {
		at := *sched.LastRanAt
		clone.LastRanAt = &at
	}
	return &clone
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
