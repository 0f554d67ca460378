package scope_test

import (
	"context"
	"testing"

	"github.com/langboard/engine/bot"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/scope"
	"github.com/langboard/engine/store/memory"
	"github.com/langboard/engine/trigger"
)

func ctx() context.Context { return context.Background() }

type fixture struct {
	store    *memory.Store
	resolver *scope.Resolver
	bots     *bot.Service
	project  id.ID
	column   id.ID
	card     id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	return &fixture{
		store:    s,
		resolver: scope.NewResolver(scope.DefaultRegistry(), s, s, nil),
		bots:     bot.NewService(s, nil, nil),
		project:  id.New(id.PrefixProject),
		column:   id.New(id.PrefixColumn),
		card:     id.New(id.PrefixCard),
	}
}

func (f *fixture) location() scope.Location {
	return scope.Location{ProjectID: f.project, ColumnID: f.column, CardID: f.card}
}

func (f *fixture) createBot(t *testing.T, name string) *bot.Bot {
	t.Helper()
	b, err := f.bots.Create(ctx(), bot.Input{
		ProjectID:   f.project,
		Name:        name,
		Platform:    bot.PlatformDefault,
		RunningType: bot.RunningDefault,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func (f *fixture) addScope(t *testing.T, botID id.ID, kind trigger.SubjectKind, subjectID id.ID, conditions ...trigger.Condition) {
	t.Helper()
	err := f.store.CreateScope(ctx(), &scope.Scope{
		ID:          id.NewScopeID(),
		BotID:       botID,
		SubjectKind: kind,
		SubjectID:   subjectID,
		ProjectID:   f.project,
		Conditions:  conditions,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestResolveOrdersMostSpecificFirst(t *testing.T) {
	f := newFixture(t)

	projectBot := f.createBot(t, "project-wide")
	cardBot := f.createBot(t, "card-only")
	f.addScope(t, projectBot.ID, trigger.SubjectProject, f.project, trigger.CardMoved)
	f.addScope(t, cardBot.ID, trigger.SubjectCard, f.card, trigger.CardMoved)

	got := f.resolver.Resolve(ctx(), trigger.CardMoved, f.location())
	if len(got) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(got))
	}
	if got[0] != cardBot.ID {
		t.Fatalf("card-scoped bot must come first, got %s", got[0])
	}
	if got[1] != projectBot.ID {
		t.Fatalf("project-scoped bot must come second, got %s", got[1])
	}
}

func TestResolveDeduplicatesAcrossGranularities(t *testing.T) {
	f := newFixture(t)

	b := f.createBot(t, "everywhere")
	f.addScope(t, b.ID, trigger.SubjectProject, f.project, trigger.CardMoved)
	f.addScope(t, b.ID, trigger.SubjectCard, f.card, trigger.CardMoved)

	got := f.resolver.Resolve(ctx(), trigger.CardMoved, f.location())
	if len(got) != 1 {
		t.Fatalf("expected one entry for a multi-scoped bot, got %d", len(got))
	}
	if got[0] != b.ID {
		t.Fatalf("got %s, want %s", got[0], b.ID)
	}
}

func TestResolveTieBreaksOnBotID(t *testing.T) {
	f := newFixture(t)

	a := f.createBot(t, "a")
	b := f.createBot(t, "b")
	f.addScope(t, a.ID, trigger.SubjectProject, f.project, trigger.CardMoved)
	f.addScope(t, b.ID, trigger.SubjectProject, f.project, trigger.CardMoved)

	got := f.resolver.Resolve(ctx(), trigger.CardMoved, f.location())
	if len(got) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(got))
	}
	if !(got[0].String() < got[1].String()) {
		t.Fatalf("equal specificity must sort by bot ID: %s, %s", got[0], got[1])
	}
}

func TestResolveSkipsDisabledAndMissingBots(t *testing.T) {
	f := newFixture(t)

	disabled := f.createBot(t, "disabled")
	if err := f.bots.SetEnabled(ctx(), disabled.ID, false); err != nil {
		t.Fatal(err)
	}
	f.addScope(t, disabled.ID, trigger.SubjectProject, f.project, trigger.CardMoved)

	// Scope row pointing at a bot that no longer exists.
	f.addScope(t, id.NewBotID(), trigger.SubjectProject, f.project, trigger.CardMoved)

	got := f.resolver.Resolve(ctx(), trigger.CardMoved, f.location())
	if len(got) != 0 {
		t.Fatalf("expected no eligible bots, got %d", len(got))
	}
}

func TestResolveFiltersByCondition(t *testing.T) {
	f := newFixture(t)

	b := f.createBot(t, "updates-only")
	f.addScope(t, b.ID, trigger.SubjectProject, f.project, trigger.CardUpdated)

	got := f.resolver.Resolve(ctx(), trigger.CardMoved, f.location())
	if len(got) != 0 {
		t.Fatalf("expected no bots for unlistened condition, got %d", len(got))
	}
}

func TestResolvePartialLocation(t *testing.T) {
	f := newFixture(t)

	cardBot := f.createBot(t, "card-only")
	f.addScope(t, cardBot.ID, trigger.SubjectCard, f.card, trigger.CardMoved)

	// Emit without a card in the location: card scopes cannot match.
	got := f.resolver.Resolve(ctx(), trigger.CardMoved, scope.Location{ProjectID: f.project})
	if len(got) != 0 {
		t.Fatalf("expected no bots without card subject, got %d", len(got))
	}
}
