package bot

import (
	"time"

	"github.com/langboard/engine/id"
)

// LogRingSize caps the number of log entries retained per bot. Appending
// past the cap evicts the oldest entries.
const LogRingSize = 100

// LogType classifies a bot log entry.
type LogType string

// Log entry types.
const (
	LogInfo    LogType = "Info"
	LogSuccess LogType = "Success"
	LogError   LogType = "Error"
)

// Log is one append-only entry in a bot's invocation log. The log is the
// user-visible explanation of why a trigger produced (or did not produce)
// a result.
type Log struct {
	// ID is the unique TypeID for this log entry.
	ID id.ID `json:"id"`

	// BotID is the bot this entry belongs to.
	BotID id.ID `json:"bot_id"`

	// Message is the human-readable log line.
	Message string `json:"message"`

	// Type classifies the entry.
	Type LogType `json:"log_type"`

	// LoggedAt is when the entry was appended.
	LoggedAt time.Time `json:"log_date"`
}

// LogListOpts configures pagination for log listing.
type LogListOpts struct {
	Offset int
	Limit  int
	Type   *LogType
}
