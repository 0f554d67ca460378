// Package sqlite implements the engine store on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/schedule"
	"github.com/langboard/engine/scope"
	enginestore "github.com/langboard/engine/store"
	"github.com/langboard/engine/trigger"
	"github.com/langboard/engine/webhook"
)

// compile-time interface check
var _ enginestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Open opens a SQLite database at the given DSN and wraps it in a Store.
// The caller still runs Migrate before first use.
func Open(ctx context.Context, dsn string) (*Store, error) {
	drv := sqlitedriver.New()
	if err := drv.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("langboard/sqlite: open %q: %w", dsn, err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		return nil, fmt.Errorf("langboard/sqlite: open %q: %w", dsn, err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("langboard/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %s", engine.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Bot Store ====================

func (s *Store) CreateBot(ctx context.Context, b *bot.Bot) error {
	m := toBotModel(b)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetBot(ctx context.Context, botID id.ID) (*bot.Bot, error) {
	m := new(botModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", botID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, engine.ErrBotNotFound
		}
		return nil, err
	}
	return fromBotModel(m)
}

func (s *Store) UpdateBot(ctx context.Context, b *bot.Bot) error {
	m := toBotModel(b)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrBotNotFound
	}
	return nil
}

func (s *Store) DeleteBot(ctx context.Context, botID id.ID) error {
	res, err := s.sdb.NewDelete((*botModel)(nil)).
		Where("id = ?", botID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrBotNotFound
	}

	// Cascade to the bot's scopes, schedules, and logs.
	if _, err := s.sdb.NewDelete((*scopeModel)(nil)).
		Where("bot_id = ?", botID.String()).
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.sdb.NewDelete((*scheduleModel)(nil)).
		Where("bot_id = ?", botID.String()).
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.sdb.NewDelete((*botLogModel)(nil)).
		Where("bot_id = ?", botID.String()).
		Exec(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Store) ListBots(ctx context.Context, projectID id.ID, opts bot.ListOpts) ([]*bot.Bot, error) {
	var models []botModel
	q := s.sdb.NewSelect(&models).Where("project_id = ?", projectID.String())

	if opts.Enabled != nil {
		q = q.Where("enabled = ?", *opts.Enabled)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*bot.Bot, len(models))
	for i := range models {
		b, err := fromBotModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

func (s *Store) SetBotEnabled(ctx context.Context, botID id.ID, enabled bool) error {
	res, err := s.sdb.NewUpdate((*botModel)(nil)).
		Set("enabled = ?", enabled).
		Set("updated_at = ?", now()).
		Where("id = ?", botID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrBotNotFound
	}
	return nil
}

func (s *Store) AppendLog(ctx context.Context, entry *bot.Log) error {
	m := toBotLogModel(entry)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return err
	}

	// Evict entries past the ring cap, oldest first.
	var evictees []botLogModel
	if err := s.sdb.NewSelect(&evictees).
		Where("bot_id = ?", entry.BotID.String()).
		OrderExpr("logged_at DESC, id DESC").
		Offset(bot.LogRingSize).
		Scan(ctx); err != nil {
		return err
	}
	for i := range evictees {
		if _, err := s.sdb.NewDelete((*botLogModel)(nil)).
			Where("id = ?", evictees[i].ID).
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, botID id.ID, opts bot.LogListOpts) ([]*bot.Log, error) {
	var models []botLogModel
	q := s.sdb.NewSelect(&models).Where("bot_id = ?", botID.String())

	if opts.Type != nil {
		q = q.Where("log_type = ?", string(*opts.Type))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("logged_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*bot.Log, len(models))
	for i := range models {
		l, err := fromBotLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

// ==================== Scope Store ====================

func (s *Store) CreateScope(ctx context.Context, sc *scope.Scope) error {
	m := toScopeModel(sc)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetScope(ctx context.Context, scopeID id.ID) (*scope.Scope, error) {
	m := new(scopeModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", scopeID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, engine.ErrScopeNotFound
		}
		return nil, err
	}
	return fromScopeModel(m)
}

func (s *Store) UpdateScope(ctx context.Context, sc *scope.Scope) error {
	m := toScopeModel(sc)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrScopeNotFound
	}
	return nil
}

func (s *Store) DeleteScope(ctx context.Context, scopeID id.ID) error {
	res, err := s.sdb.NewDelete((*scopeModel)(nil)).
		Where("id = ?", scopeID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrScopeNotFound
	}
	return nil
}

func (s *Store) ListScopes(ctx context.Context, projectID id.ID, opts scope.ListOpts) ([]*scope.Scope, error) {
	var models []scopeModel
	q := s.sdb.NewSelect(&models).Where("project_id = ?", projectID.String())

	if opts.BotID != nil {
		q = q.Where("bot_id = ?", opts.BotID.String())
	}
	if opts.Kind != nil {
		q = q.Where("subject_kind = ?", string(*opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*scope.Scope, len(models))
	for i := range models {
		sc, err := fromScopeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sc
	}
	return result, nil
}

func (s *Store) ScopesListening(ctx context.Context, kind trigger.SubjectKind, subjectID id.ID, c trigger.Condition) ([]*scope.Scope, error) {
	var models []scopeModel
	if err := s.sdb.NewSelect(&models).
		Where("subject_kind = ?", string(kind)).
		Where("subject_id = ?", subjectID.String()).
		OrderExpr("id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	// The condition subset is a JSON array column; filter in Go.
	var result []*scope.Scope
	for i := range models {
		sc, err := fromScopeModel(&models[i])
		if err != nil {
			return nil, err
		}
		if sc.Listens(c) {
			result = append(result, sc)
		}
	}
	return result, nil
}

// ==================== Schedule Store ====================

func (s *Store) CreateSchedule(ctx context.Context, sched *schedule.Schedule) error {
	m := toScheduleModel(sched)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSchedule(ctx context.Context, schedID id.ID) (*schedule.Schedule, error) {
	m := new(scheduleModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", schedID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, engine.ErrScheduleNotFound
		}
		return nil, err
	}
	return fromScheduleModel(m)
}

func (s *Store) UpdateSchedule(ctx context.Context, sched *schedule.Schedule) error {
	m := toScheduleModel(sched)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrScheduleNotFound
	}
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, schedID id.ID) error {
	res, err := s.sdb.NewDelete((*scheduleModel)(nil)).
		Where("id = ?", schedID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrScheduleNotFound
	}
	return nil
}

func (s *Store) ListSchedules(ctx context.Context, projectID id.ID, opts schedule.ListOpts) ([]*schedule.Schedule, error) {
	var models []scheduleModel
	q := s.sdb.NewSelect(&models).Where("project_id = ?", projectID.String())

	if opts.BotID != nil {
		q = q.Where("bot_id = ?", opts.BotID.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*schedule.Schedule, len(models))
	for i := range models {
		sched, err := fromScheduleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sched
	}
	return result, nil
}

func (s *Store) ListActiveSchedules(ctx context.Context) ([]*schedule.Schedule, error) {
	var models []scheduleModel
	if err := s.sdb.NewSelect(&models).
		Where("enabled = 1").
		OrderExpr("id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*schedule.Schedule, len(models))
	for i := range models {
		sched, err := fromScheduleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sched
	}
	return result, nil
}

func (s *Store) SetLastRanAt(ctx context.Context, schedID id.ID, t time.Time) error {
	res, err := s.sdb.NewUpdate((*scheduleModel)(nil)).
		Set("last_ran_at = ?", t).
		Set("updated_at = ?", now()).
		Where("id = ?", schedID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrScheduleNotFound
	}
	return nil
}

// ==================== Webhook Store ====================

func (s *Store) CreateSetting(ctx context.Context, w *webhook.Setting) error {
	m := toWebhookSettingModel(w)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSetting(ctx context.Context, settingID id.ID) (*webhook.Setting, error) {
	m := new(webhookSettingModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", settingID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, engine.ErrWebhookNotFound
		}
		return nil, err
	}
	return fromWebhookSettingModel(m)
}

func (s *Store) UpdateSetting(ctx context.Context, w *webhook.Setting) error {
	m := toWebhookSettingModel(w)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrWebhookNotFound
	}
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, settingID id.ID) error {
	res, err := s.sdb.NewDelete((*webhookSettingModel)(nil)).
		Where("id = ?", settingID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return engine.ErrWebhookNotFound
	}
	return nil
}

func (s *Store) ListSettings(ctx context.Context, opts webhook.ListOpts) ([]*webhook.Setting, error) {
	var models []webhookSettingModel
	q := s.sdb.NewSelect(&models)

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*webhook.Setting, len(models))
	for i := range models {
		w, err := fromWebhookSettingModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = w
	}
	return result, nil
}

func (s *Store) RecordUse(ctx context.Context, settingID id.ID, at time.Time) (int, error) {
	res, err := s.sdb.NewUpdate((*webhookSettingModel)(nil)).
		Set("total_used_count = total_used_count + 1").
		Set("last_used_at = ?", at).
		Set("updated_at = ?", now()).
		Where("id = ?", settingID.String()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, engine.ErrWebhookNotFound
	}

	m := new(webhookSettingModel)
	if err := s.sdb.NewSelect(m).Where("id = ?", settingID.String()).Scan(ctx); err != nil {
		return 0, err
	}
	return m.TotalUsedCount, nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
