package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
	"github.com/langboard/engine/schedule"
	"github.com/langboard/engine/scope"
	"github.com/langboard/engine/trigger"
	"github.com/langboard/engine/webhook"
)

func newBot(projectID id.ID) *bot.Bot {
	return &bot.Bot{
		Entity:      entity.New(),
		ID:          id.NewBotID(),
		ProjectID:   projectID,
		Name:        "reviewer",
		Platform:    bot.PlatformFlow,
		RunningType: bot.RunningEndpoint,
		APIURL:      "https://bots.example.com/reviewer",
		Enabled:     true,
	}
}

func TestBotCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	projectID := id.New(id.PrefixProject)

	b := newBot(projectID)
	if err := s.CreateBot(ctx, b); err != nil {
		t.Fatalf("CreateBot: %v", err)
	}

	got, err := s.GetBot(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if got.Name != "reviewer" {
		t.Fatalf("got.Name = %q", got.Name)
	}

	// Mutating the returned copy must not change the stored bot.
	got.Name = "mutated"
	again, _ := s.GetBot(ctx, b.ID)
	if again.Name != "reviewer" {
		t.Fatal("store returned a shared pointer")
	}

	b.Name = "renamed"
	if err := s.UpdateBot(ctx, b); err != nil {
		t.Fatalf("UpdateBot: %v", err)
	}
	again, _ = s.GetBot(ctx, b.ID)
	if again.Name != "renamed" {
		t.Fatalf("update lost: %q", again.Name)
	}

	if err := s.SetBotEnabled(ctx, b.ID, false); err != nil {
		t.Fatalf("SetBotEnabled: %v", err)
	}
	again, _ = s.GetBot(ctx, b.ID)
	if again.Enabled {
		t.Fatal("bot still enabled")
	}

	if _, err := s.GetBot(ctx, id.NewBotID()); !errors.Is(err, engine.ErrBotNotFound) {
		t.Fatalf("err = %v, want ErrBotNotFound", err)
	}
}

func TestDeleteBotCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	projectID := id.New(id.PrefixProject)

	b := newBot(projectID)
	s.CreateBot(ctx, b) //nolint:errcheck

	sc := &scope.Scope{
		Entity:      entity.New(),
		ID:          id.NewScopeID(),
		BotID:       b.ID,
		SubjectKind: trigger.SubjectProject,
		SubjectID:   projectID,
		ProjectID:   projectID,
		Conditions:  []trigger.Condition{trigger.CardMoved},
	}
	s.CreateScope(ctx, sc) //nolint:errcheck

	sched := &schedule.Schedule{
		Entity:    entity.New(),
		ID:        id.NewScheduleID(),
		BotID:     b.ID,
		ProjectID: projectID,
		Cron:      "0 9 * * *",
		Timezone:  "UTC",
		Enabled:   true,
	}
	s.CreateSchedule(ctx, sched) //nolint:errcheck

	s.AppendLog(ctx, &bot.Log{ID: id.NewBotLogID(), BotID: b.ID, Type: bot.LogInfo, Message: "hello"}) //nolint:errcheck

	if err := s.DeleteBot(ctx, b.ID); err != nil {
		t.Fatalf("DeleteBot: %v", err)
	}

	if _, err := s.GetScope(ctx, sc.ID); !errors.Is(err, engine.ErrScopeNotFound) {
		t.Fatal("scope survived bot deletion")
	}
	if _, err := s.GetSchedule(ctx, sched.ID); !errors.Is(err, engine.ErrScheduleNotFound) {
		t.Fatal("schedule survived bot deletion")
	}
	logs, _ := s.ListLogs(ctx, b.ID, bot.LogListOpts{})
	if len(logs) != 0 {
		t.Fatal("logs survived bot deletion")
	}
}

func TestAppendLogEvictsPastRingCap(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := newBot(id.New(id.PrefixProject))
	s.CreateBot(ctx, b) //nolint:errcheck

	for i := 0; i < bot.LogRingSize+10; i++ {
		err := s.AppendLog(ctx, &bot.Log{
			ID:       id.NewBotLogID(),
			BotID:    b.ID,
			Type:     bot.LogInfo,
			Message:  fmt.Sprintf("entry %d", i),
			LoggedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("AppendLog(%d): %v", i, err)
		}
	}

	logs, err := s.ListLogs(ctx, b.ID, bot.LogListOpts{})
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != bot.LogRingSize {
		t.Fatalf("ring holds %d entries, want %d", len(logs), bot.LogRingSize)
	}
	// Newest first; the oldest ten were evicted.
	if logs[0].Message != fmt.Sprintf("entry %d", bot.LogRingSize+9) {
		t.Fatalf("newest = %q", logs[0].Message)
	}
	if logs[len(logs)-1].Message != "entry 10" {
		t.Fatalf("oldest retained = %q", logs[len(logs)-1].Message)
	}
}

func TestListLogsFiltersByType(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := newBot(id.New(id.PrefixProject))
	s.CreateBot(ctx, b) //nolint:errcheck

	s.AppendLog(ctx, &bot.Log{ID: id.NewBotLogID(), BotID: b.ID, Type: bot.LogError, Message: "boom"}) //nolint:errcheck
	s.AppendLog(ctx, &bot.Log{ID: id.NewBotLogID(), BotID: b.ID, Type: bot.LogSuccess, Message: "ok"}) //nolint:errcheck

	errType := bot.LogError
	logs, _ := s.ListLogs(ctx, b.ID, bot.LogListOpts{Type: &errType})
	if len(logs) != 1 || logs[0].Message != "boom" {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestScopesListening(t *testing.T) {
	ctx := context.Background()
	s := New()
	projectID := id.New(id.PrefixProject)
	cardID := id.New(id.PrefixCard)

	listening := &scope.Scope{
		Entity:      entity.New(),
		ID:          id.NewScopeID(),
		BotID:       id.NewBotID(),
		SubjectKind: trigger.SubjectCard,
		SubjectID:   cardID,
		ProjectID:   projectID,
		Conditions:  []trigger.Condition{trigger.CardMoved, trigger.CardUpdated},
	}
	wrongCondition := &scope.Scope{
		Entity:      entity.New(),
		ID:          id.NewScopeID(),
		BotID:       id.NewBotID(),
		SubjectKind: trigger.SubjectCard,
		SubjectID:   cardID,
		ProjectID:   projectID,
		Conditions:  []trigger.Condition{trigger.CardCommentAdded},
	}
	wrongSubject := &scope.Scope{
		Entity:      entity.New(),
		ID:          id.NewScopeID(),
		BotID:       id.NewBotID(),
		SubjectKind: trigger.SubjectCard,
		SubjectID:   id.New(id.PrefixCard),
		ProjectID:   projectID,
		Conditions:  []trigger.Condition{trigger.CardMoved},
	}
	for _, sc := range []*scope.Scope{listening, wrongCondition, wrongSubject} {
		if err := s.CreateScope(ctx, sc); err != nil {
			t.Fatalf("CreateScope: %v", err)
		}
	}

	got, err := s.ScopesListening(ctx, trigger.SubjectCard, cardID, trigger.CardMoved)
	if err != nil {
		t.Fatalf("ScopesListening: %v", err)
	}
	if len(got) != 1 || got[0].ID != listening.ID {
		t.Fatalf("got = %+v", got)
	}
}

func TestListActiveSchedules(t *testing.T) {
	ctx := context.Background()
	s := New()
	projectID := id.New(id.PrefixProject)

	active := &schedule.Schedule{Entity: entity.New(), ID: id.NewScheduleID(), BotID: id.NewBotID(), ProjectID: projectID, Cron: "@daily", Timezone: "UTC", Enabled: true}
	disabled := &schedule.Schedule{Entity: entity.New(), ID: id.NewScheduleID(), BotID: id.NewBotID(), ProjectID: projectID, Cron: "@daily", Timezone: "UTC", Enabled: false}
	s.CreateSchedule(ctx, active)   //nolint:errcheck
	s.CreateSchedule(ctx, disabled) //nolint:errcheck

	got, err := s.ListActiveSchedules(ctx)
	if err != nil {
		t.Fatalf("ListActiveSchedules: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Fatalf("got = %+v", got)
	}
}

func TestSetLastRanAt(t *testing.T) {
	ctx := context.Background()
	s := New()
	sched := &schedule.Schedule{Entity: entity.New(), ID: id.NewScheduleID(), BotID: id.NewBotID(), ProjectID: id.New(id.PrefixProject), Cron: "@daily", Timezone: "UTC", Enabled: true}
	s.CreateSchedule(ctx, sched) //nolint:errcheck

	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	if err := s.SetLastRanAt(ctx, sched.ID, at); err != nil {
		t.Fatalf("SetLastRanAt: %v", err)
	}

	got, _ := s.GetSchedule(ctx, sched.ID)
	if got.LastRanAt == nil || !got.LastRanAt.Equal(at) {
		t.Fatalf("LastRanAt = %v", got.LastRanAt)
	}
}

func TestWebhookRecordUse(t *testing.T) {
	ctx := context.Background()
	s := New()

	w := &webhook.Setting{Entity: entity.New(), ID: id.NewWebhookID(), URL: "https://hooks.example.com/a", Secret: "whsec_x"}
	if err := s.CreateSetting(ctx, w); err != nil {
		t.Fatalf("CreateSetting: %v", err)
	}

	at := time.Now().UTC()
	if count, err := s.RecordUse(ctx, w.ID, at); err != nil || count != 1 {
		t.Fatalf("RecordUse: count=%d err=%v", count, err)
	}
	if count, err := s.RecordUse(ctx, w.ID, at.Add(time.Minute)); err != nil || count != 2 {
		t.Fatalf("RecordUse: count=%d err=%v", count, err)
	}

	got, _ := s.GetSetting(ctx, w.ID)
	if got.TotalUsedCount != 2 {
		t.Fatalf("TotalUsedCount = %d", got.TotalUsedCount)
	}
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("LastUsedAt = %v", got.LastUsedAt)
	}
}

func TestClosedStorePing(t *testing.T) {
	s := New()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping before close: %v", err)
	}
	s.Close() //nolint:errcheck
	if err := s.Ping(context.Background()); !errors.Is(err, engine.ErrStoreClosed) {
		t.Fatalf("err = %v, want ErrStoreClosed", err)
	}
}

func TestListBotsPagination(t *testing.T) {
	ctx := context.Background()
	s := New()
	projectID := id.New(id.PrefixProject)

	for i := 0; i < 5; i++ {
		b := newBot(projectID)
		b.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := s.CreateBot(ctx, b); err != nil {
			t.Fatalf("CreateBot: %v", err)
		}
	}

	page, err := s.ListBots(ctx, projectID, bot.ListOpts{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListBots: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d", len(page))
	}
	all, _ := s.ListBots(ctx, projectID, bot.ListOpts{})
	if len(all) != 5 {
		t.Fatalf("all = %d", len(all))
	}
}
