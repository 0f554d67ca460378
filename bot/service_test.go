package bot_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/notify"
	"github.com/langboard/engine/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService(t *testing.T) (*bot.Service, *notify.Bus) {
	t.Helper()
	bus := notify.NewBus(nil)
	return bot.NewService(memory.New(), bus, nil), bus
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	projectID := id.New(id.PrefixProject)

	tests := []struct {
		name  string
		in    bot.Input
		field string
	}{
		{
			name:  "missing project",
			in:    bot.Input{Name: "b", Platform: bot.PlatformDefault, RunningType: bot.RunningDefault},
			field: "project_id",
		},
		{
			name:  "missing name",
			in:    bot.Input{ProjectID: projectID, Platform: bot.PlatformDefault, RunningType: bot.RunningDefault},
			field: "name",
		},
		{
			name:  "illegal combination",
			in:    bot.Input{ProjectID: projectID, Name: "b", Platform: bot.PlatformDefault, RunningType: bot.RunningEndpoint},
			field: "running_type",
		},
		{
			name:  "endpoint without url",
			in:    bot.Input{ProjectID: projectID, Name: "b", Platform: bot.PlatformFlow, RunningType: bot.RunningEndpoint},
			field: "api_url",
		},
		{
			name: "allow all ips outside safelist",
			in: bot.Input{ProjectID: projectID, Name: "b", Platform: bot.PlatformDefault,
				RunningType: bot.RunningDefault, AllowAllIPs: true},
			field: "allow_all_ips",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx(), tt.in)
			var verr *bot.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestCreateEnablesBot(t *testing.T) {
	svc, _ := newService(t)

	b, err := svc.Create(ctx(), bot.Input{
		ProjectID:   id.New(id.PrefixProject),
		Name:        "reporter",
		Platform:    bot.PlatformFlow,
		RunningType: bot.RunningEndpoint,
		APIURL:      "https://bots.example.com/run",
		AllowAllIPs: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !b.Enabled {
		t.Fatal("new bots must start enabled")
	}
	if b.ID.Prefix() != id.PrefixBot {
		t.Fatalf("unexpected ID prefix %q", b.ID.Prefix())
	}
}

func TestUpdateRevalidatesTransport(t *testing.T) {
	svc, _ := newService(t)

	b, err := svc.Create(ctx(), bot.Input{
		ProjectID:   id.New(id.PrefixProject),
		Name:        "reporter",
		Platform:    bot.PlatformDefault,
		RunningType: bot.RunningDefault,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Switching to Endpoint without an API URL must fail.
	_, err = svc.Update(ctx(), b.ID, bot.Input{
		Platform:    bot.PlatformFlow,
		RunningType: bot.RunningEndpoint,
	})
	var verr *bot.ValidationError
	if !errors.As(err, &verr) || verr.Field != "api_url" {
		t.Fatalf("expected api_url validation error, got %v", err)
	}

	// The failed update must not have persisted.
	got, err := svc.Get(ctx(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Platform != bot.PlatformDefault {
		t.Fatalf("platform = %s, want Default", got.Platform)
	}
}

func TestUpdateMissingBot(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Update(ctx(), id.NewBotID(), bot.Input{Name: "x"})
	if !errors.Is(err, engine.ErrBotNotFound) {
		t.Fatalf("expected ErrBotNotFound, got %v", err)
	}
}

func TestAppendLogPublishes(t *testing.T) {
	svc, bus := newService(t)

	b, err := svc.Create(ctx(), bot.Input{
		ProjectID:   id.New(id.PrefixProject),
		Name:        "reporter",
		Platform:    bot.PlatformDefault,
		RunningType: bot.RunningDefault,
	})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var notified []*notify.Notification
	bus.Subscribe(notify.TopicBotLogUpdated, func(n *notify.Notification) {
		mu.Lock()
		notified = append(notified, n)
		mu.Unlock()
	})

	svc.AppendLog(ctx(), b.ID, bot.LogSuccess, "handled CardMoved")

	logs, err := svc.Logs(ctx(), b.ID, bot.LogListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Type != bot.LogSuccess {
		t.Fatalf("unexpected logs %+v", logs)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notified))
	}
	if notified[0].Data["bot_id"] != b.ID.String() {
		t.Fatalf("notification bot_id = %v, want %s", notified[0].Data["bot_id"], b.ID)
	}
}

func TestAppendLogMissingBotDoesNotPanic(t *testing.T) {
	svc, _ := newService(t)

	// Appending against an unknown bot is swallowed: a missing log line
	// must never fail the surrounding task.
	svc.AppendLog(ctx(), id.NewBotID(), bot.LogError, "orphaned entry")
}
