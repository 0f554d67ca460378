package engine

import "time"

// Config holds the configuration for an Engine instance.
type Config struct {
	// Concurrency is the number of dispatch worker goroutines.
	Concurrency int

	// QueueDepth is the per-task buffer of the in-process broker. Ignored
	// when a broker is injected with WithBroker.
	QueueDepth int

	// RunTimeout is the wall-clock budget for one bot invocation.
	RunTimeout time.Duration

	// CronCommand is the command line installed in crontab entries for
	// scheduled bots, invoked by cron at each fire time.
	CronCommand string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 8,
		QueueDepth:  1024,
		RunTimeout:  60 * time.Second,
		CronCommand: "langboard run:bot:cron",
	}
}
