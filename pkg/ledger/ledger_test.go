package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cpunion/replybot/pkg/types"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFileLedger_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "ledger.json")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if l.HasReplied("p1") {
		t.Fatal("fresh ledger should be empty")
	}
	if err := l.RecordReply("p1", t0, Meta{ReplyID: "r1", Persona: types.PersonaCandidRealist}); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if !reopened.HasReplied("p1") {
		t.Fatal("expected p1 to survive restart")
	}
	entries := reopened.Entries()
	if len(entries) != 1 || entries[0].ReplyID != "r1" || entries[0].Persona != types.PersonaCandidRealist {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if !entries[0].RepliedAt.Equal(t0) {
		t.Fatalf("timestamp not preserved: %v", entries[0].RepliedAt)
	}
}

func TestFileLedger_DuplicateKeepsOriginal(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	if err := l.RecordReply("p1", t0, Meta{ReplyID: "first"}); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}
	if err := l.RecordReply("p1", t0.Add(time.Hour), Meta{ReplyID: "second"}); err != nil {
		t.Fatalf("RecordReply duplicate: %v", err)
	}
	entries := l.Entries()
	if len(entries) != 1 || entries[0].ReplyID != "first" {
		t.Fatalf("expected original entry kept, got %+v", entries)
	}
}

func TestCountInWindow_Boundaries(t *testing.T) {
	m := NewMemory()
	window := 24 * time.Hour
	now := t0

	records := map[string]time.Time{
		"exact-start": now.Add(-window),               // excluded: window is open at the start
		"inside":      now.Add(-window + time.Second), // included
		"now":         now,                            // included
		"future":      now.Add(time.Minute),           // excluded
		"old":         now.Add(-48 * time.Hour),       // excluded
	}
	for id, at := range records {
		if err := m.RecordReply(id, at, Meta{}); err != nil {
			t.Fatalf("RecordReply %s: %v", id, err)
		}
	}
	if _, err := m.Seed([]types.LedgerEntry{{PostID: "legacy"}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	if got := m.CountInWindow(now, window); got != 2 {
		t.Fatalf("expected 2 in window, got %d", got)
	}
	if got := Remaining(m, now, window, 17); got != 15 {
		t.Fatalf("expected 15 remaining, got %d", got)
	}
	if got := Remaining(m, now, window, 1); got != 0 {
		t.Fatalf("remaining must not go negative, got %d", got)
	}
}

func TestFileLedger_LegacyArrayFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replied.json")
	if err := os.WriteFile(path, []byte(`["111", "222", ""]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	if !l.HasReplied("111") || !l.HasReplied("222") {
		t.Fatal("legacy ids should be loaded")
	}
	if got := l.CountInWindow(t0, 24*time.Hour); got != 0 {
		t.Fatalf("legacy ids must not count toward the cap, got %d", got)
	}

	// First write upgrades the file to the versioned format.
	if err := l.RecordReply("333", t0, Meta{}); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"version": 1`) {
		t.Fatalf("expected versioned document, got %s", data)
	}
}

func TestFileLedger_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "ledger.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	for i, id := range []string{"a", "b", "c"} {
		if err := l.RecordReply(id, t0.Add(time.Duration(i)*time.Minute), Meta{}); err != nil {
			t.Fatalf("RecordReply: %v", err)
		}
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestFileLedger_CorruptFileIsLedgerIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Open(path)
	if !errors.Is(err, types.ErrLedgerIO) {
		t.Fatalf("expected ErrLedgerIO, got %v", err)
	}
}

func TestFileLedger_SecondOpenIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()

	_, err = Open(path)
	if !errors.Is(err, ErrLocked) || !errors.Is(err, types.ErrLedgerIO) {
		t.Fatalf("expected locked ledger error, got %v", err)
	}

	snap, err := Snapshot(path)
	if err != nil {
		t.Fatalf("Snapshot should not need the lock: %v", err)
	}
	if len(snap.Entries()) != 0 {
		t.Fatalf("unexpected entries %v", snap.Entries())
	}
}

func TestFileLedger_SeedSkipsExisting(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	if err := l.RecordReply("p1", t0, Meta{ReplyID: "mine"}); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}
	added, err := l.Seed([]types.LedgerEntry{
		{PostID: "p1", RepliedAt: t0.Add(time.Hour)},
		{PostID: "p2", RepliedAt: t0.Add(-time.Hour)},
		{PostID: ""},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 new entry, got %d", added)
	}
	if got := l.CountInWindow(t0, 24*time.Hour); got != 2 {
		t.Fatalf("seeded reply inside the window should count, got %d", got)
	}
}

func TestMemoryLedger_FailWrites(t *testing.T) {
	m := NewMemory()
	m.FailWrites = errors.New("disk full")
	err := m.RecordReply("p1", t0, Meta{})
	if !errors.Is(err, types.ErrLedgerIO) {
		t.Fatalf("expected ErrLedgerIO, got %v", err)
	}
	if m.HasReplied("p1") {
		t.Fatal("failed write should not record")
	}
}
