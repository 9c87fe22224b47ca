// Package scoring holds the heuristics used to order posts and reply candidates.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/cpunion/replybot/pkg/types"
)

// EngagementWeights are the tunable constants of the engagement score.
type EngagementWeights struct {
	Like, Repost, Reply float64
	RateScale           float64 // multiplier applied to weighted engagement per follower
	RecencyHours        float64 // age at which the recency factor reaches its floor
	RecencyFloor        float64
	QuestionBoost       float64
	ControversyBoost    float64
	ControversyKeywords []string
}

// DefaultEngagementWeights returns the stock weights.
func DefaultEngagementWeights() EngagementWeights {
	return EngagementWeights{
		Like:             1,
		Repost:           3,
		Reply:            5,
		RateScale:        1000,
		RecencyHours:     24,
		RecencyFloor:     0.1,
		QuestionBoost:    1.2,
		ControversyBoost: 1.3,
		ControversyKeywords: []string{
			"disagree", "wrong", "unpopular", "controversial", "debate", "hot take", "overrated",
		},
	}
}

// EngagementScore rates a post from 0 to 100. The result never decreases when a
// count grows and never increases as the post ages.
func EngagementScore(p *types.Post, now time.Time, w EngagementWeights) float64 {
	if p == nil {
		return 0
	}
	weighted := float64(nonNegative(p.Engagement.Likes))*w.Like +
		float64(nonNegative(p.Engagement.Reposts))*w.Repost +
		float64(nonNegative(p.Engagement.Replies))*w.Reply

	followers := p.AuthorFollowers
	if followers < 1 {
		followers = 1
	}
	rate := weighted / float64(followers) * w.RateScale

	recency := 1.0
	if w.RecencyHours > 0 {
		recency = math.Max(w.RecencyFloor, 1-p.Age(now).Hours()/w.RecencyHours)
	}
	score := rate * recency

	text := strings.ToLower(p.Text)
	if IsQuestion(text) && w.QuestionBoost > 0 {
		score *= w.QuestionBoost
	}
	if containsAny(text, w.ControversyKeywords) && w.ControversyBoost > 0 {
		score *= w.ControversyBoost
	}
	return clamp(score, 0, 100)
}

// IsQuestion reports whether text asks something.
func IsQuestion(text string) bool {
	return strings.Contains(text, "?")
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
