// Package ledger keeps the durable record of replied-to posts. It drives both
// at-most-once replies and the trailing-window posting cap.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/cpunion/replybot/pkg/types"
)

// Meta carries optional details stored with a reply.
type Meta struct {
	ReplyID string
	Persona types.PersonaTag
}

// Ledger is the dedup and rate-limit store.
type Ledger interface {
	// Load replaces in-memory state with the persisted state.
	Load() error
	HasReplied(postID string) bool
	// RecordReply stores the reply durably before returning. Recording an id
	// that is already present keeps the original entry.
	RecordReply(postID string, at time.Time, meta Meta) error
	// CountInWindow counts replies with RepliedAt in (now-window, now].
	CountInWindow(now time.Time, window time.Duration) int
	// Seed adds entries for replies made outside this process. Existing ids
	// are left untouched; the number of new entries is returned.
	Seed(entries []types.LedgerEntry) (int, error)
	Entries() []types.LedgerEntry
	Flush() error
	Close() error
}

// book is the in-memory state shared by the ledger implementations.
type book struct {
	mu      sync.RWMutex
	entries map[string]types.LedgerEntry
}

func newBook() *book {
	return &book{entries: make(map[string]types.LedgerEntry)}
}

func (b *book) has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[id]
	return ok
}

// put returns false when id is already present.
func (b *book) put(e types.LedgerEntry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[e.PostID]; ok {
		return false
	}
	b.entries[e.PostID] = e
	return true
}

func (b *book) count(now time.Time, window time.Duration) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := now.Add(-window)
	n := 0
	for _, e := range b.entries {
		// Entries without a timestamp only serve dedup.
		if e.RepliedAt.IsZero() {
			continue
		}
		if e.RepliedAt.After(start) && !e.RepliedAt.After(now) {
			n++
		}
	}
	return n
}

func (b *book) list() []types.LedgerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.LedgerEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RepliedAt.Equal(out[j].RepliedAt) {
			return out[i].PostID < out[j].PostID
		}
		return out[i].RepliedAt.Before(out[j].RepliedAt)
	})
	return out
}

func (b *book) replace(entries map[string]types.LedgerEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = entries
}

func (b *book) snapshot() map[string]types.LedgerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]types.LedgerEntry, len(b.entries))
	for k, v := range b.entries {
		out[k] = v
	}
	return out
}

// Remaining returns how many more replies fit in the window, never negative.
func Remaining(l Ledger, now time.Time, window time.Duration, limit int) int {
	left := limit - l.CountInWindow(now, window)
	if left < 0 {
		return 0
	}
	return left
}

var (
	_ Ledger = (*FileLedger)(nil)
	_ Ledger = (*MemoryLedger)(nil)
)
