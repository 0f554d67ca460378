package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/xraph/go-utils/metrics"

	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
	"github.com/langboard/engine/notify"
	"github.com/langboard/engine/observability"
	"github.com/langboard/engine/signature"
)

type stubStore struct {
	mu       sync.Mutex
	settings []*Setting
}

func (s *stubStore) CreateSetting(ctx context.Context, st *Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(s.settings, st)
	return nil
}

func (s *stubStore) GetSetting(ctx context.Context, settingID id.ID) (*Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.settings {
		if st.ID == settingID {
			return st, nil
		}
	}
	return nil, errors.New("not found")
}

func (s *stubStore) UpdateSetting(ctx context.Context, st *Setting) error { return nil }

func (s *stubStore) DeleteSetting(ctx context.Context, settingID id.ID) error { return nil }

func (s *stubStore) ListSettings(ctx context.Context, opts ListOpts) ([]*Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Setting, len(s.settings))
	copy(out, s.settings)
	return out, nil
}

func (s *stubStore) RecordUse(ctx context.Context, settingID id.ID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.settings {
		if st.ID == settingID {
			st.TotalUsedCount++
			st.LastUsedAt = &at
			return st.TotalUsedCount, nil
		}
	}
	return 0, errors.New("not found")
}

func newSetting(url string) *Setting {
	return &Setting{
		Entity: entity.New(),
		ID:     id.NewWebhookID(),
		URL:    url,
		Secret: "whsec_fanout",
	}
}

func TestFanoutAccounting(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken receiver", http.StatusInternalServerError)
	}))
	defer bad.Close()

	store := &stubStore{}
	okDest := newSetting(good.URL)
	failDest := newSetting(bad.URL)
	store.settings = []*Setting{okDest, failDest}

	f := NewFanout(store, nil, nil)
	msg, _ := json.Marshal(Message{Event: "card_moved", Data: json.RawMessage(`{"card":"card_1"}`)})
	if err := f.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if okDest.TotalUsedCount != 1 || okDest.LastUsedAt == nil {
		t.Fatalf("success accounting missing: count=%d last=%v", okDest.TotalUsedCount, okDest.LastUsedAt)
	}
	if failDest.TotalUsedCount != 0 || failDest.LastUsedAt != nil {
		t.Fatalf("failed delivery must not advance accounting: count=%d", failDest.TotalUsedCount)
	}
}

func TestFanoutSignsRequests(t *testing.T) {
	var mu sync.Mutex
	var body []byte
	var sig, ts string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		sig = r.Header.Get(signature.HeaderSignature)
		ts = r.Header.Get(signature.HeaderTimestamp)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := &stubStore{settings: []*Setting{newSetting(srv.URL)}}
	f := NewFanout(store, nil, nil)

	msg, _ := json.Marshal(Message{Event: "card_created", Data: json.RawMessage(`{}`)})
	if err := f.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if sig == "" || ts == "" {
		t.Fatal("delivery was not signed")
	}
	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		t.Fatalf("timestamp header: %v", err)
	}
	if !signature.Verify(body, "whsec_fanout", tsInt, sig) {
		t.Fatal("signature does not verify against the destination secret")
	}
}

func TestFanoutPublishesSettingUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := notify.NewBus(nil)
	got := make(chan map[string]any, 2)
	bus.Subscribe(notify.TopicAppSettingUpdated, func(n *notify.Notification) {
		got <- n.Data
	})

	store := &stubStore{settings: []*Setting{newSetting(srv.URL)}}
	f := NewFanout(store, bus, nil)

	msg, _ := json.Marshal(Message{Event: "card_moved", Data: json.RawMessage(`{}`)})

	// Each delivery announces the count the store holds after the bump,
	// so back-to-back sends read 1 then 2 regardless of how the store
	// aliases the listed settings.
	for _, want := range []int{1, 2} {
		if err := f.Handle(context.Background(), msg); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		select {
		case data := <-got:
			if data["total_used_count"] != want {
				t.Fatalf("announced count = %v, want %d", data["total_used_count"], want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no app_setting.updated announcement")
		}
	}
}

func TestFanoutDeliversWithMetricsWired(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken receiver", http.StatusInternalServerError)
	}))
	defer bad.Close()

	store := &stubStore{settings: []*Setting{newSetting(good.URL), newSetting(bad.URL)}}
	m := observability.NewMetrics(metrics.NewMetricsCollector("test"))
	f := NewFanout(store, nil, nil, WithMetrics(m))

	msg, _ := json.Marshal(Message{Event: "card_moved", Data: json.RawMessage(`{}`)})
	if err := f.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	// Instrumented delivery keeps the accounting semantics intact.
	if store.settings[0].TotalUsedCount != 1 || store.settings[1].TotalUsedCount != 0 {
		t.Fatalf("counts = %d/%d, want 1/0",
			store.settings[0].TotalUsedCount, store.settings[1].TotalUsedCount)
	}
}

func TestFanoutRejectsMalformedMessage(t *testing.T) {
	f := NewFanout(&stubStore{}, nil, nil)
	if err := f.Handle(context.Background(), json.RawMessage(`nope`)); err == nil {
		t.Fatal("expected decode error")
	}
}
