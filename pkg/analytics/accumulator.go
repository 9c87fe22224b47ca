// Package analytics tracks how each persona performs: an in-memory
// accumulator for the current run and a SQLite store across runs.
package analytics

import (
	"sort"
	"sync"

	"github.com/cpunion/replybot/pkg/types"
)

// Accumulator keeps per-persona counters for display. Counters only grow.
type Accumulator struct {
	mu    sync.Mutex
	stats map[types.PersonaTag]*types.PersonaStats
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{stats: make(map[types.PersonaTag]*types.PersonaStats)}
}

func (a *Accumulator) entry(p types.PersonaTag) *types.PersonaStats {
	st, ok := a.stats[p]
	if !ok {
		st = &types.PersonaStats{Persona: p}
		a.stats[p] = st
	}
	return st
}

// RecordPosted counts one posted reply for persona p.
func (a *Accumulator) RecordPosted(p types.PersonaTag) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entry(p).RepliesPosted++
}

// RecordEngagement adds observed engagement for persona p. Negative counts
// are ignored.
func (a *Accumulator) RecordEngagement(p types.PersonaTag, e types.Engagement) {
	if e.Likes < 0 {
		e.Likes = 0
	}
	if e.Reposts < 0 {
		e.Reposts = 0
	}
	if e.Replies < 0 {
		e.Replies = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.entry(p)
	st.Likes += e.Likes
	st.Reposts += e.Reposts
	st.Replies += e.Replies
	st.EngagementTotal += e.Weighted()
}

// Merge adds persisted stats, e.g. loaded from the Store.
func (a *Accumulator) Merge(stats []types.PersonaStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range stats {
		st := a.entry(s.Persona)
		st.RepliesPosted += s.RepliesPosted
		st.Likes += s.Likes
		st.Reposts += s.Reposts
		st.Replies += s.Replies
		st.EngagementTotal += s.EngagementTotal
	}
}

// Snapshot returns the stats ordered by average engagement, best first.
func (a *Accumulator) Snapshot() []types.PersonaStats {
	a.mu.Lock()
	out := make([]types.PersonaStats, 0, len(a.stats))
	for _, st := range a.stats {
		out = append(out, *st)
	}
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].AvgEngagement(), out[j].AvgEngagement()
		if ai != aj {
			return ai > aj
		}
		return out[i].Persona < out[j].Persona
	})
	return out
}
