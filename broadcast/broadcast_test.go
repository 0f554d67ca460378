package broadcast

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestEntryNameFormat(t *testing.T) {
	at := time.Unix(1767225600, 0)
	name := entryName(at)

	re := regexp.MustCompile(`^1767225600-[0-9A-Za-z]{10}$`)
	if !re.MatchString(name) {
		t.Fatalf("entry name %q does not match <ts>-<suffix10>", name)
	}
}

func TestSpoolEntryNameFormat(t *testing.T) {
	at := time.Unix(1767225600, 123456000)
	name := spoolEntryName(at)

	re := regexp.MustCompile(`^1767225600_123456-[0-9A-Za-z]{10}$`)
	if !re.MatchString(name) {
		t.Fatalf("spool entry name %q does not match <ts_underscore_us>-<suffix10>", name)
	}
}

func TestRandSuffixUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := randSuffix(suffixLength)
		if seen[s] {
			t.Fatalf("suffix %q repeated", s)
		}
		seen[s] = true
	}
}

func TestSpoolPushWritesMessageFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSpool(dir, false, nil)
	if err != nil {
		t.Fatalf("NewSpool: %v", err)
	}

	data := json.RawMessage(`{"bot_id":"bot_1"}`)
	if err := s.Push(context.Background(), "bot.log.updated", data); err != nil {
		t.Fatalf("Push: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected 1 spooled file, got %v (%v)", files, err)
	}

	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read spool file: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("spool file is not valid JSON: %v", err)
	}
	if msg.Event != "bot.log.updated" || string(msg.Data) != string(data) {
		t.Fatalf("message = %+v", msg)
	}
	if strings.Contains(files[0], "-fileonly") {
		t.Fatalf("non-fileonly spool got marker: %s", files[0])
	}
	nameRe := regexp.MustCompile(`^\d+_\d{6}-[0-9A-Za-z]{10}\.json$`)
	if base := filepath.Base(files[0]); !nameRe.MatchString(base) {
		t.Fatalf("spool file name %q lacks the underscore timestamp", base)
	}
}

func TestSpoolFileOnlyMarker(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSpool(dir, true, nil)
	if err != nil {
		t.Fatalf("NewSpool: %v", err)
	}

	if err := s.Push(context.Background(), "app_setting.updated", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Push: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*-fileonly.json"))
	if len(files) != 1 {
		t.Fatalf("expected fileonly-marked file, got %v", files)
	}
}

func TestSpoolLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewSpool(dir, false, nil)

	for i := 0; i < 5; i++ {
		if err := s.Push(context.Background(), "bot.log.updated", json.RawMessage(`{}`)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".broadcast-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
