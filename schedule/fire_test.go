package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/langboard/engine/schedule"
)

// stubEmitter records emitted Scheduled conditions.
type stubEmitter struct {
	fired []string
}

func (s *stubEmitter) EmitScheduled(_ context.Context, sched *schedule.Schedule, _ time.Time) error {
	s.fired = append(s.fired, sched.ID.String())
	return nil
}

func TestFireDueEmitsMatchingSchedules(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	emitter := &stubEmitter{}

	match := newSchedule("0 13 * * *", "UTC")
	match.UTCCron = "0 13 * * *"
	other := newSchedule("0 6 * * *", "UTC")
	other.UTCCron = "0 6 * * *"

	for _, s := range []*schedule.Schedule{match, other} {
		if err := store.CreateSchedule(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	f := schedule.NewFirer(store, emitter, nil)
	if err := f.FireDue(ctx, "0 13 * * *"); err != nil {
		t.Fatal(err)
	}

	if len(emitter.fired) != 1 || emitter.fired[0] != match.ID.String() {
		t.Fatalf("expected exactly one fire for the matching schedule, got %v", emitter.fired)
	}
	if match.LastRanAt == nil {
		t.Fatal("last_ran_at should advance after fire")
	}
	if other.LastRanAt != nil {
		t.Fatal("non-matching schedule must not run")
	}
}

func TestFireDueSkipsRecentlyRan(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	emitter := &stubEmitter{}

	s := newSchedule("0 13 * * *", "UTC")
	s.UTCCron = "0 13 * * *"
	recent := time.Now().UTC().Add(-5 * time.Minute)
	s.LastRanAt = &recent

	if err := store.CreateSchedule(ctx, s); err != nil {
		t.Fatal(err)
	}

	f := schedule.NewFirer(store, emitter, nil)
	if err := f.FireDue(ctx, "0 13 * * *"); err != nil {
		t.Fatal(err)
	}

	if len(emitter.fired) != 0 {
		t.Fatalf("schedule ran 5 minutes ago on a daily cron; must not fire again, got %v", emitter.fired)
	}
}

func TestFireDueFiresWhenLastRunOlderThanPeriod(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	emitter := &stubEmitter{}

	s := newSchedule("0 13 * * *", "UTC")
	s.UTCCron = "0 13 * * *"
	old := time.Now().UTC().Add(-25 * time.Hour)
	s.LastRanAt = &old

	if err := store.CreateSchedule(ctx, s); err != nil {
		t.Fatal(err)
	}

	f := schedule.NewFirer(store, emitter, nil)
	if err := f.FireDue(ctx, "0 13 * * *"); err != nil {
		t.Fatal(err)
	}

	if len(emitter.fired) != 1 {
		t.Fatalf("expected one fire, got %v", emitter.fired)
	}
	if !s.LastRanAt.After(old) {
		t.Fatal("last_ran_at should have advanced")
	}
}
