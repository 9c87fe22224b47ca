// Package types defines the core data model shared by the reply bot packages.
package types

import (
	"strings"
	"time"
)

// Handle is an account identifier without the leading "@".
type Handle string

// NormalizeHandle trims whitespace and a leading "@".
func NormalizeHandle(raw string) Handle {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	return Handle(strings.TrimSpace(h))
}

// Equal compares handles case-insensitively.
func (h Handle) Equal(other Handle) bool {
	return strings.EqualFold(string(h), string(other))
}

// PersonaTag identifies one of the fixed reply voices.
type PersonaTag string

const (
	PersonaSystemThinker        PersonaTag = "system_thinker"        // Structures and second-order effects
	PersonaCandidRealist        PersonaTag = "candid_realist"        // Blunt, practical
	PersonaWittyObserver        PersonaTag = "witty_observer"        // Light, clever
	PersonaSupportiveMentor     PersonaTag = "supportive_mentor"     // Encouraging, experience-based
	PersonaContrarianChallenger PersonaTag = "contrarian_challenger" // Respectful pushback
)

// AllPersonas returns the persona tags in presentation order.
func AllPersonas() []PersonaTag {
	return []PersonaTag{
		PersonaSystemThinker,
		PersonaCandidRealist,
		PersonaWittyObserver,
		PersonaSupportiveMentor,
		PersonaContrarianChallenger,
	}
}

// Valid reports whether the tag is one of the known personas.
func (p PersonaTag) Valid() bool {
	for _, tag := range AllPersonas() {
		if tag == p {
			return true
		}
	}
	return false
}

// Engagement holds the public interaction counts of a post.
type Engagement struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// Weighted returns likes + 2*reposts + 3*replies, the figure used for persona stats.
func (e Engagement) Weighted() int {
	return e.Likes + e.Reposts*2 + e.Replies*3
}

// Post is a single piece of content fetched from the social network.
type Post struct {
	ID              string     `json:"id"`
	Author          Handle     `json:"author"`
	Text            string     `json:"text"`
	CreatedAt       time.Time  `json:"created_at"`
	Engagement      Engagement `json:"engagement"`
	AuthorFollowers int        `json:"author_followers"`
	IsReply         bool       `json:"is_reply"`
	InReplyToID     string     `json:"in_reply_to_id,omitempty"`
}

// Age returns how long ago the post was created relative to now.
func (p *Post) Age(now time.Time) time.Duration {
	if p.CreatedAt.IsZero() {
		return 0
	}
	age := now.Sub(p.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}

// QualityVerdict is the classifier decision for one post.
type QualityVerdict struct {
	PostID         string `json:"post_id"`
	Accepted       bool   `json:"accepted"`
	Rationale      string `json:"rationale"`
	SuggestedAngle string `json:"suggested_angle"`
}

// ReplyCandidate is one generated reply awaiting approval.
type ReplyCandidate struct {
	PostID    string             `json:"post_id"`
	Persona   PersonaTag         `json:"persona"`
	Text      string             `json:"text"`
	Score     float64            `json:"score"`
	SubScores map[string]float64 `json:"sub_scores,omitempty"`
}

// LedgerEntry records that a post has been replied to.
type LedgerEntry struct {
	PostID    string     `json:"post_id"`
	RepliedAt time.Time  `json:"replied_at"`
	ReplyID   string     `json:"reply_id,omitempty"`
	Persona   PersonaTag `json:"persona,omitempty"`
}

// PersonaStats aggregates posting counts and observed engagement per persona.
type PersonaStats struct {
	Persona         PersonaTag `json:"persona"`
	RepliesPosted   int        `json:"replies_posted"`
	Likes           int        `json:"likes"`
	Reposts         int        `json:"reposts"`
	Replies         int        `json:"replies"`
	EngagementTotal int        `json:"engagement_total"`
}

// AvgEngagement is the mean weighted engagement per posted reply.
func (s PersonaStats) AvgEngagement() float64 {
	if s.RepliesPosted == 0 {
		return 0
	}
	return float64(s.EngagementTotal) / float64(s.RepliesPosted)
}
