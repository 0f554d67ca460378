// Package notify provides the in-process publisher used for engine-internal
// notifications such as "bot.log.updated" and "app_setting.updated".
//
// Publish is fire-and-forget: subscribers run synchronously on the caller's
// goroutine and must not block.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Topics published by the engine.
const (
	TopicBotLogUpdated     = "bot.log.updated"
	TopicAppSettingUpdated = "app_setting.updated"
)

// Notification is one published message.
type Notification struct {
	Topic     string         `json:"topic"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Subscriber is a function that receives notifications.
type Subscriber func(n *Notification)

// Bus is an in-memory publisher fanning notifications to subscribers.
// The wildcard topic "*" receives everything.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
	logger      *slog.Logger
}

// NewBus creates a new notification bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string][]Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for a topic. Use "*" for all topics.
func (b *Bus) Subscribe(topic string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
}

// Unsubscribe removes all subscribers for a topic.
func (b *Bus) Unsubscribe(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, topic)
}

// Publish sends a notification to the topic's subscribers and to the
// wildcard subscribers.
func (b *Bus) Publish(topic string, data map[string]any) {
	n := &Notification{
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	b.logger.Debug("publishing notification", "topic", topic)

	for _, sub := range b.subscribers["*"] {
		sub(n)
	}
	for _, sub := range b.subscribers[topic] {
		sub(n)
	}
}
