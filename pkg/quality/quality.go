// Package quality asks the language model whether a post is worth replying to.
package quality

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cpunion/replybot/pkg/llm"
	"github.com/cpunion/replybot/pkg/types"
)

// Candidate is a post plus the context shown to the classifier.
type Candidate struct {
	Post            *types.Post
	EngagementScore float64
	Age             time.Duration
}

// Filter classifies posts. It fails closed: any model, timeout or parse error
// yields a rejected verdict.
type Filter struct {
	llm    llm.Generator
	logger logrus.FieldLogger
}

// NewFilter creates a filter using g.
func NewFilter(g llm.Generator, logger logrus.FieldLogger) *Filter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Filter{llm: g, logger: logger}
}

type verdictPayload struct {
	Accept     *bool  `json:"accept"`
	Reason     string `json:"reason"`
	ReplyAngle string `json:"reply_angle"`
}

// Classify returns the verdict for one post. The error is non-nil only when
// classification failed, in which case the verdict is a rejection.
func (f *Filter) Classify(ctx context.Context, c Candidate) (types.QualityVerdict, error) {
	verdict := types.QualityVerdict{PostID: c.Post.ID}

	raw, err := f.llm.Generate(ctx, buildPrompt(c))
	if err != nil {
		return f.failClosed(verdict, fmt.Errorf("%w: %w", types.ErrClassification, err))
	}

	var payload verdictPayload
	if err := llm.DecodeJSON(raw, &payload); err != nil {
		return f.failClosed(verdict, fmt.Errorf("%w: parse verdict: %w", types.ErrClassification, err))
	}
	if payload.Accept == nil {
		return f.failClosed(verdict, fmt.Errorf("%w: verdict missing accept field", types.ErrClassification))
	}

	verdict.Accepted = *payload.Accept
	verdict.Rationale = strings.TrimSpace(payload.Reason)
	verdict.SuggestedAngle = strings.TrimSpace(payload.ReplyAngle)
	return verdict, nil
}

// Select classifies candidates in order, stopping after limit posts, and returns
// the accepted ones with their verdicts.
func (f *Filter) Select(ctx context.Context, cands []Candidate, limit int) ([]Candidate, map[string]types.QualityVerdict) {
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	accepted := make([]Candidate, 0, len(cands))
	verdicts := make(map[string]types.QualityVerdict, len(cands))
	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		v, _ := f.Classify(ctx, c)
		verdicts[c.Post.ID] = v
		if v.Accepted {
			accepted = append(accepted, c)
		} else {
			f.logger.WithFields(logrus.Fields{
				"post_id": c.Post.ID,
				"author":  c.Post.Author,
				"reason":  v.Rationale,
			}).Debug("Post rejected by quality filter")
		}
	}
	return accepted, verdicts
}

func (f *Filter) failClosed(v types.QualityVerdict, err error) (types.QualityVerdict, error) {
	f.logger.WithField("post_id", v.PostID).WithError(err).Warn("Quality classification failed, rejecting post")
	v.Accepted = false
	v.Rationale = "classification failed"
	return v, err
}

func buildPrompt(c Candidate) string {
	var b strings.Builder
	b.WriteString("You are an expert social media strategist deciding whether a post is worth a thoughtful reply.\n\n")
	b.WriteString(`REJECT posts that are:
- One-liners or very short posts without depth
- Simple statements such as "Great day!" or "Love this!"
- Purely promotional or marketing content
- Vague or generic content that does not invite discussion
- Emoji reactions or single words
- News headlines without commentary
- Trivial questions with obvious yes/no answers

ACCEPT posts that are:
- Thought-provoking insights or observations
- Complex questions that invite detailed answers
- Personal experiences with broader relevance
- Debate-worthy topics that can be handled respectfully
- Lessons learned, professional advice, technical discussion
`)
	b.WriteString("\nPost:\n")
	fmt.Fprintf(&b, "- author: @%s\n", c.Post.Author)
	fmt.Fprintf(&b, "- posted: %s\n", FormatAge(c.Age))
	fmt.Fprintf(&b, "- engagement score: %.1f\n", c.EngagementScore)
	fmt.Fprintf(&b, "- text: %s\n", strings.TrimSpace(c.Post.Text))
	b.WriteString(`
Respond with a single JSON object and nothing else:
{"accept": true or false, "reason": "at most 25 words", "reply_angle": "suggested approach for the reply"}`)
	return b.String()
}

// FormatAge renders an age the way the console shows it, e.g. "2hrs ago".
func FormatAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dmin ago", int(age.Minutes()))
	case age < 2*time.Hour:
		return "1hr ago"
	case age < 48*time.Hour:
		return fmt.Sprintf("%dhrs ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
