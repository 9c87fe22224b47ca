package scoring

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cpunion/replybot/pkg/types"
)

// SafetyPolicy is the data-driven gate every candidate must pass before it is shown.
type SafetyPolicy struct {
	Toxic           []*regexp.Regexp
	Spam            []*regexp.Regexp
	SeriousKeywords []string // post topics where levity is inappropriate
	HumorKeywords   []string
	MaxLength       int
}

// DefaultSafetyPolicy returns the stock policy.
func DefaultSafetyPolicy() SafetyPolicy {
	return SafetyPolicy{
		Toxic: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(hate|stupid|idiot|moron)\b`),
			regexp.MustCompile(`(?i)\b(kill|die|death)\b`),
			regexp.MustCompile(`(?i)\b(fuck|shit|damn)\b`),
		},
		Spam: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(follow me|check out|link in bio)`),
			regexp.MustCompile(`(?i)(buy now|limited time|act fast)`),
			regexp.MustCompile(`(?i)(dm me|message me)`),
			regexp.MustCompile(`(?i)https?://`),
		},
		SeriousKeywords: []string{"death", "died", "tragedy", "accident", "disaster", "crisis", "funeral", "layoff"},
		HumorKeywords:   []string{"lol", "haha", "funny", "joke", "lmao", "😂"},
		MaxLength:       280,
	}
}

// Check returns a *types.SafetyRejection when the candidate must be dropped.
func (p SafetyPolicy) Check(post *types.Post, c types.ReplyCandidate) error {
	text := strings.TrimSpace(c.Text)
	reject := func(reason string) error {
		return &types.SafetyRejection{Persona: c.Persona, Reason: reason}
	}

	if text == "" {
		return reject("empty reply")
	}
	if p.MaxLength > 0 && utf8.RuneCountInString(text) > p.MaxLength {
		return reject("exceeds maximum length")
	}
	for _, re := range p.Toxic {
		if re.MatchString(text) {
			return reject("toxic language")
		}
	}
	for _, re := range p.Spam {
		if re.MatchString(text) {
			return reject("spam pattern")
		}
	}
	if post != nil {
		postText := strings.ToLower(post.Text)
		lower := strings.ToLower(text)
		if containsAny(postText, p.SeriousKeywords) && containsAny(lower, p.HumorKeywords) {
			return reject("humor on a serious topic")
		}
	}
	return nil
}
