package schedule

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/langboard/engine/id"
)

// TagPrefix marks crontab lines owned by the engine. The tag is the sole
// key used for reconcile and removal.
const TagPrefix = "langboard:"

// Entry is one installed cron entry owned by the reconciler.
type Entry struct {
	// Spec is the UTC-normalised cron spec (or "@reboot").
	Spec string

	// Command is the command cron runs on fire.
	Command string

	// ScheduleID tags the entry with its owning schedule.
	ScheduleID id.ID
}

// Line renders the crontab line for this entry.
func (e Entry) Line() string {
	return fmt.Sprintf("%s %s # %s%s", e.Spec, e.Command, TagPrefix, e.ScheduleID)
}

// CronBackend installs and lists engine-owned cron entries. The Noop
// backend makes development-mode intent observable instead of silently
// dropping writes.
type CronBackend interface {
	// Installed returns the engine-owned entries currently installed.
	Installed() ([]Entry, error)

	// Apply replaces the engine-owned entries with the given set, leaving
	// foreign crontab lines untouched.
	Apply(entries []Entry) error
}

// ──────────────────────────────────────────────────
// Crontab backend
// ──────────────────────────────────────────────────

// Crontab is the real backend: it rewrites a crontab file in place. Only
// the reconciler writes it, guarded by a process-wide mutex so concurrent
// reconciles do not interleave.
type Crontab struct {
	path string
	mu   sync.Mutex
}

// NewCrontab creates a crontab backend over the given file path.
func NewCrontab(path string) *Crontab {
	return &Crontab{path: path}
}

// Installed parses the engine-owned entries out of the crontab file.
func (c *Crontab) Installed() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, err := c.readLines()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, line := range lines {
		if e, ok := parseTaggedLine(line); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Apply rewrites the crontab: foreign lines are preserved verbatim, all
// previously tagged lines are dropped, and the new entry set is appended.
func (c *Crontab) Apply(entries []Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, err := c.readLines()
	if err != nil {
		return err
	}

	kept := make([]string, 0, len(lines)+len(entries))
	for _, line := range lines {
		if _, tagged := parseTaggedLine(line); tagged {
			continue
		}
		kept = append(kept, line)
	}
	for _, e := range entries {
		kept = append(kept, e.Line())
	}

	content := strings.Join(kept, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(c.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("schedule: write crontab %s: %w", c.path, err)
	}
	return nil
}

func (c *Crontab) readLines() ([]string, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("schedule: read crontab %s: %w", c.path, err)
	}
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// parseTaggedLine recovers an Entry from an engine-tagged crontab line.
func parseTaggedLine(line string) (Entry, bool) {
	body, comment, found := strings.Cut(line, "#")
	if !found {
		return Entry{}, false
	}
	comment = strings.TrimSpace(comment)
	if !strings.HasPrefix(comment, TagPrefix) {
		return Entry{}, false
	}

	schedID, err := id.ParseScheduleID(strings.TrimPrefix(comment, TagPrefix))
	if err != nil {
		return Entry{}, false
	}

	body = strings.TrimSpace(body)
	fields := strings.Fields(body)

	var spec, command string
	switch {
	case len(fields) > 0 && strings.HasPrefix(fields[0], "@"):
		spec = fields[0]
		command = strings.Join(fields[1:], " ")
	case len(fields) >= 6:
		spec = strings.Join(fields[:5], " ")
		command = strings.Join(fields[5:], " ")
	default:
		return Entry{}, false
	}

	return Entry{Spec: spec, Command: command, ScheduleID: schedID}, true
}

// ──────────────────────────────────────────────────
// Noop backend
// ──────────────────────────────────────────────────

// Noop is the development-mode backend: it records the applied entry set in
// memory so tests and dev runs can observe reconcile intent without
// touching a crontab.
type Noop struct {
	mu      sync.Mutex
	entries []Entry
}

// NewNoop creates an in-memory cron backend.
func NewNoop() *Noop {
	return &Noop{}
}

// Installed returns the last applied entry set.
func (n *Noop) Installed() ([]Entry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Entry, len(n.entries))
	copy(out, n.entries)
	return out, nil
}

// Apply records the entry set.
func (n *Noop) Apply(entries []Entry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = make([]Entry, len(entries))
	copy(n.entries, entries)
	return nil
}
