package ledger

import (
	"errors"
	"time"

	"github.com/cpunion/replybot/pkg/types"
)

// MemoryLedger keeps entries in memory only. FailWrites, when set, makes every
// write return a ledger IO error without recording anything.
type MemoryLedger struct {
	*book
	FailWrites error
	Flushes    int
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *MemoryLedger {
	return &MemoryLedger{book: newBook()}
}

// Load is a no-op; memory is the source of truth.
func (m *MemoryLedger) Load() error { return nil }

func (m *MemoryLedger) HasReplied(postID string) bool { return m.has(postID) }

func (m *MemoryLedger) CountInWindow(now time.Time, window time.Duration) int {
	return m.count(now, window)
}

func (m *MemoryLedger) Entries() []types.LedgerEntry { return m.list() }

func (m *MemoryLedger) RecordReply(postID string, at time.Time, meta Meta) error {
	if postID == "" {
		return errors.New("record reply: empty post id")
	}
	if m.FailWrites != nil {
		return ioErr("record reply", m.FailWrites)
	}
	if m.put(types.LedgerEntry{PostID: postID, RepliedAt: at.UTC(), ReplyID: meta.ReplyID, Persona: meta.Persona}) {
		m.Flushes++
	}
	return nil
}

func (m *MemoryLedger) Seed(entries []types.LedgerEntry) (int, error) {
	if m.FailWrites != nil {
		return 0, ioErr("seed", m.FailWrites)
	}
	added := 0
	for _, e := range entries {
		if e.PostID != "" && m.put(e) {
			added++
		}
	}
	return added, nil
}

func (m *MemoryLedger) Flush() error {
	if m.FailWrites != nil {
		return ioErr("flush", m.FailWrites)
	}
	m.Flushes++
	return nil
}

func (m *MemoryLedger) Close() error { return nil }
