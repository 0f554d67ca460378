package notify_test

import (
	"testing"

	"github.com/langboard/engine/notify"
)

func TestPublishReachesTopicSubscribers(t *testing.T) {
	bus := notify.NewBus(nil)

	var got []*notify.Notification
	bus.Subscribe(notify.TopicBotLogUpdated, func(n *notify.Notification) {
		got = append(got, n)
	})

	bus.Publish(notify.TopicBotLogUpdated, map[string]any{"bot": "bot_1"})
	bus.Publish(notify.TopicAppSettingUpdated, nil)

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].Data["bot"] != "bot_1" {
		t.Fatalf("wrong payload: %v", got[0].Data)
	}
	if got[0].Timestamp == 0 {
		t.Fatal("timestamp not set")
	}
}

func TestWildcardSubscriberReceivesAll(t *testing.T) {
	bus := notify.NewBus(nil)

	var count int
	bus.Subscribe("*", func(_ *notify.Notification) { count++ })

	bus.Publish(notify.TopicBotLogUpdated, nil)
	bus.Publish(notify.TopicAppSettingUpdated, nil)

	if count != 2 {
		t.Fatalf("wildcard subscriber should see 2 notifications, saw %d", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := notify.NewBus(nil)

	var count int
	bus.Subscribe(notify.TopicBotLogUpdated, func(_ *notify.Notification) { count++ })
	bus.Unsubscribe(notify.TopicBotLogUpdated)

	bus.Publish(notify.TopicBotLogUpdated, nil)

	if count != 0 {
		t.Fatalf("unsubscribed topic still received %d notifications", count)
	}
}
