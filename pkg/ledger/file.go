package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/cpunion/replybot/pkg/types"
)

const fileVersion = 1

// ErrLocked means another replybot process holds the ledger.
var ErrLocked = errors.New("ledger is locked by another process")

// fileFormat is the on-disk layout of the ledger.
type fileFormat struct {
	Version   int                   `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Entries   map[string]fileRecord `json:"entries"`
}

type fileRecord struct {
	RepliedAt time.Time        `json:"replied_at"`
	ReplyID   string           `json:"reply_id,omitempty"`
	Persona   types.PersonaTag `json:"persona,omitempty"`
}

// FileLedger persists the ledger as a JSON document. Every mutation is written
// to a temp file, synced and renamed over the previous version, so a crash
// leaves either the old or the new document. A lock file next to the ledger
// keeps a second process from using it concurrently.
type FileLedger struct {
	*book
	path string
	lock *flock.Flock
}

// Open locks and loads the ledger at path. A missing file is an empty ledger.
func Open(path string) (*FileLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioErr("create ledger directory", err)
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, ioErr("lock ledger", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %w (%s)", types.ErrLedgerIO, ErrLocked, path)
	}

	l := &FileLedger{book: newBook(), path: path, lock: lock}
	if err := l.Load(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return l, nil
}

// Snapshot loads the ledger at path into memory without taking the lock.
// Read-only commands use it while a run may be in progress.
func Snapshot(path string) (*MemoryLedger, error) {
	entries, err := readFile(path)
	if err != nil {
		return nil, err
	}
	m := NewMemory()
	m.replace(entries)
	return m, nil
}

// Path returns the ledger file location.
func (l *FileLedger) Path() string { return l.path }

// Load re-reads the ledger file.
func (l *FileLedger) Load() error {
	entries, err := readFile(l.path)
	if err != nil {
		return err
	}
	l.replace(entries)
	return nil
}

// HasReplied reports whether postID was replied to.
func (l *FileLedger) HasReplied(postID string) bool { return l.has(postID) }

// CountInWindow counts replies in (now-window, now].
func (l *FileLedger) CountInWindow(now time.Time, window time.Duration) int {
	return l.count(now, window)
}

// Entries lists all entries, oldest first.
func (l *FileLedger) Entries() []types.LedgerEntry { return l.list() }

// RecordReply adds the entry and flushes it to disk.
func (l *FileLedger) RecordReply(postID string, at time.Time, meta Meta) error {
	if strings.TrimSpace(postID) == "" {
		return errors.New("record reply: empty post id")
	}
	added := l.put(types.LedgerEntry{
		PostID:    postID,
		RepliedAt: at.UTC(),
		ReplyID:   meta.ReplyID,
		Persona:   meta.Persona,
	})
	if !added {
		return nil
	}
	return l.Flush()
}

// Seed adds entries that are not already present and flushes once.
func (l *FileLedger) Seed(entries []types.LedgerEntry) (int, error) {
	added := 0
	for _, e := range entries {
		if strings.TrimSpace(e.PostID) == "" {
			continue
		}
		e.RepliedAt = e.RepliedAt.UTC()
		if l.put(e) {
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	return added, l.Flush()
}

// Flush writes the current state atomically.
func (l *FileLedger) Flush() error {
	doc := fileFormat{
		Version:   fileVersion,
		UpdatedAt: time.Now().UTC(),
		Entries:   make(map[string]fileRecord),
	}
	for id, e := range l.snapshot() {
		doc.Entries[id] = fileRecord{RepliedAt: e.RepliedAt, ReplyID: e.ReplyID, Persona: e.Persona}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ioErr("encode ledger", err)
	}
	return writeAtomic(l.path, data)
}

// Close releases the lock file.
func (l *FileLedger) Close() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return ioErr("unlock ledger", err)
	}
	return nil
}

func readFile(path string) (map[string]types.LedgerEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]types.LedgerEntry), nil
		}
		return nil, ioErr("read ledger", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return make(map[string]types.LedgerEntry), nil
	}
	entries, err := decode(data)
	if err != nil {
		return nil, ioErr("decode ledger "+path, err)
	}
	return entries, nil
}

// decode accepts the versioned document and the older bare array of ids.
// Ids from the array form carry no timestamp and only serve dedup.
func decode(data []byte) (map[string]types.LedgerEntry, error) {
	trimmed := strings.TrimSpace(string(data))
	entries := make(map[string]types.LedgerEntry)

	if strings.HasPrefix(trimmed, "[") {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return nil, err
		}
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				entries[id] = types.LedgerEntry{PostID: id}
			}
		}
		return entries, nil
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version > fileVersion {
		return nil, fmt.Errorf("unsupported ledger version %d", doc.Version)
	}
	for id, rec := range doc.Entries {
		entries[id] = types.LedgerEntry{
			PostID:    id,
			RepliedAt: rec.RepliedAt,
			ReplyID:   rec.ReplyID,
			Persona:   rec.Persona,
		}
	}
	return entries, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioErr("create ledger directory", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return ioErr("create temp ledger", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return ioErr("write temp ledger", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return ioErr("sync temp ledger", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return ioErr("close temp ledger", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return ioErr("replace ledger", err)
	}
	// Persist the rename itself. Not every platform supports syncing a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrLedgerIO, op, err)
}
