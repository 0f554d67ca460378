package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/go-utils/metrics"
)

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("a:task", nil, func(ctx context.Context, p json.RawMessage) error { return nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register("a:task", nil, func(ctx context.Context, p json.RawMessage) error { return nil })
}

func TestRegistrySchemaLookup(t *testing.T) {
	r := NewRegistry()
	schema := json.RawMessage(`{"type":"object"}`)
	r.Register("with:schema", schema, func(ctx context.Context, p json.RawMessage) error { return nil })
	r.Register("without:schema", nil, func(ctx context.Context, p json.RawMessage) error { return nil })

	got, ok := r.Schema("with:schema")
	if !ok || !bytes.Equal(got, schema) {
		t.Fatalf("Schema(with:schema) = %s, %v", got, ok)
	}
	if _, ok := r.Schema("without:schema"); ok {
		t.Fatal("expected no schema for without:schema")
	}

	tasks := r.Tasks()
	want := []string{"with:schema", "without:schema"}
	if len(tasks) != len(want) || tasks[0] != want[0] || tasks[1] != want[1] {
		t.Fatalf("Tasks() = %v, want %v", tasks, want)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	got := make(chan json.RawMessage, 1)
	r := NewRegistry()
	r.Register("echo", nil, func(ctx context.Context, p json.RawMessage) error {
		got <- p
		return nil
	})

	m := NewMemory(MemoryConfig{Concurrency: 2}, r, nil)
	m.Start(context.Background())
	defer m.Stop()

	payload := json.RawMessage(`{"bot_id":"bot_01h2xcejqtf2nbrexx3vqjhp41","attempt":1}`)
	if err := m.EnqueueAsync(context.Background(), "echo", payload); err != nil {
		t.Fatalf("EnqueueAsync: %v", err)
	}

	select {
	case p := <-got:
		if !bytes.Equal(p, payload) {
			t.Fatalf("payload altered in transit: %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestMemoryFIFOPerQueue(t *testing.T) {
	var mu sync.Mutex
	var order []string

	r := NewRegistry()
	r.Register("ordered", nil, func(ctx context.Context, p json.RawMessage) error {
		mu.Lock()
		order = append(order, string(p))
		mu.Unlock()
		return nil
	})

	// Concurrency 1 keeps execution serial, so dequeue order is
	// directly observable.
	m := NewMemory(MemoryConfig{Concurrency: 1}, r, nil)

	for i := 0; i < 10; i++ {
		payload := json.RawMessage(fmt.Sprintf("%d", i))
		if err := m.EnqueueAsync(context.Background(), "ordered", payload); err != nil {
			t.Fatalf("EnqueueAsync(%d): %v", i, err)
		}
	}

	m.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 10 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d of 10 tasks ran", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
	m.Stop()

	for i := 0; i < 10; i++ {
		if order[i] != fmt.Sprintf("%d", i) {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestMemoryUnknownTask(t *testing.T) {
	m := NewMemory(MemoryConfig{}, NewRegistry(), nil)
	if err := m.EnqueueAsync(context.Background(), "nope", nil); err != ErrUnknownTask {
		t.Fatalf("err = %v, want ErrUnknownTask", err)
	}
}

func TestMemoryQueueFull(t *testing.T) {
	r := NewRegistry()
	r.Register("slow", nil, func(ctx context.Context, p json.RawMessage) error { return nil })

	m := NewMemory(MemoryConfig{QueueDepth: 1}, r, nil)
	// Broker not started, so the buffer never drains.
	if err := m.EnqueueAsync(context.Background(), "slow", json.RawMessage(`1`)); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := m.EnqueueAsync(context.Background(), "slow", json.RawMessage(`2`)); err != ErrQueueFull {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestMemoryRecoversPanic(t *testing.T) {
	ran := make(chan struct{}, 2)
	r := NewRegistry()
	r.Register("boom", nil, func(ctx context.Context, p json.RawMessage) error {
		ran <- struct{}{}
		panic("handler bug")
	})

	m := NewMemory(MemoryConfig{Concurrency: 1}, r, nil)
	m.Start(context.Background())
	defer m.Stop()

	for i := 0; i < 2; i++ {
		if err := m.EnqueueAsync(context.Background(), "boom", nil); err != nil {
			t.Fatalf("EnqueueAsync: %v", err)
		}
	}

	// Both runs complete despite the first panic.
	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d never happened", i+1)
		}
	}
}

func TestMemoryDepthGauge(t *testing.T) {
	done := make(chan struct{}, 1)
	r := NewRegistry()
	r.Register("gauged", nil, func(ctx context.Context, p json.RawMessage) error {
		done <- struct{}{}
		return nil
	})

	m := NewMemory(MemoryConfig{Concurrency: 1}, r, nil)
	m.InstrumentDepth(metrics.NewMetricsCollector("test").Gauge("test_queue_depth"))

	if err := m.EnqueueAsync(context.Background(), "gauged", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("EnqueueAsync: %v", err)
	}

	m.Start(context.Background())
	defer m.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("instrumented broker never delivered")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	in := Envelope{
		Condition:  "card_moved",
		Payload:    json.RawMessage(`{"card":{"id":"card_01h2xcejqtf2nbrexx3vqjhp41"}}`),
		EnqueuedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		Attempt:    1,
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Envelope
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Condition != in.Condition || out.Attempt != 1 {
		t.Fatalf("round trip lost fields: %+v", out)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("payload altered: %s", out.Payload)
	}
}

func TestRotate(t *testing.T) {
	keys := []string{"a", "b", "c"}
	got := rotate(keys, 1)
	if got[0] != "b" || got[1] != "c" || got[2] != "a" {
		t.Fatalf("rotate = %v", got)
	}
	if g := rotate(nil, 3); len(g) != 0 {
		t.Fatalf("rotate(nil) = %v", g)
	}
	same := rotate(keys, 3)
	if same[0] != "a" {
		t.Fatalf("rotate by len = %v", same)
	}
}
