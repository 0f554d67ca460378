package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Spool is the directory-backed queue used when no cache is configured.
// Each message becomes one JSON file named "<ts_us>-<suffix>.json"; files
// written while only a single process should dispatch them carry a
// "-fileonly" marker so a cache-aware dispatcher skips them.
type Spool struct {
	dir      string
	fileOnly bool
	logger   *slog.Logger
}

// NewSpool creates a directory-backed broadcast queue. The directory is
// created if missing.
func NewSpool(dir string, fileOnly bool, logger *slog.Logger) (*Spool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create broadcast dir: %w", err)
	}
	return &Spool{dir: dir, fileOnly: fileOnly, logger: logger}, nil
}

// Push writes one message file. The write goes through a temp file and a
// rename so the dispatcher never observes a partial message.
func (s *Spool) Push(ctx context.Context, event string, data json.RawMessage) error {
	body, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}

	name := spoolEntryName(time.Now())
	if s.fileOnly {
		name += "-fileonly"
	}
	final := filepath.Join(s.dir, name+".json")

	tmp, err := os.CreateTemp(s.dir, ".broadcast-*")
	if err != nil {
		return fmt.Errorf("spool broadcast: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("spool broadcast: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("spool broadcast: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("spool broadcast: %w", err)
	}

	s.logger.DebugContext(ctx, "broadcast spooled", "file", final, "event", event)
	return nil
}
