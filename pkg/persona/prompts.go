package persona

import (
	"fmt"
	"strings"

	"github.com/cpunion/replybot/pkg/llm"
	"github.com/cpunion/replybot/pkg/types"
)

const replyRules = `Reply rules:
- 50 to 250 characters, one reply only, no surrounding quotes
- Add a specific insight, example or perspective; say WHY or HOW
- Engage with the core of the post, do not restate it
- No hashtags, no links, no emoji spam, no self-promotion
- Avoid generic phrases such as "great point", "so true", "exactly this"
- Sound like a thoughtful human, never mention being an AI`

// buildReplyPrompt builds the generation prompt for one persona.
func buildReplyPrompt(p Persona, post *types.Post, verdict types.QualityVerdict, hint string, maxLength int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are writing a reply on a social network as the %q voice.\n", p.Name)
	fmt.Fprintf(&b, "Style: %s.\n", p.Style)
	fmt.Fprintf(&b, "%s\n", p.Instruction)
	if len(p.Openers) > 0 {
		fmt.Fprintf(&b, "Openings that fit this voice (optional, do not copy blindly): %s.\n", strings.Join(p.Openers, "; "))
	}
	b.WriteString("\n")
	b.WriteString(replyRules)
	if maxLength > 0 {
		fmt.Fprintf(&b, "\n- Never exceed %d characters", maxLength)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Post by @%s:\n%s\n", post.Author, strings.TrimSpace(post.Text))
	if angle := strings.TrimSpace(verdict.SuggestedAngle); angle != "" {
		fmt.Fprintf(&b, "\nSuggested angle: %s\n", angle)
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		fmt.Fprintf(&b, "\nThe operator asked for this change: %s\n", hint)
	}
	b.WriteString("\nRespond with the reply text only.")
	return b.String()
}

// cleanReply strips wrapping the model sometimes adds. Length is left alone;
// the safety gate rejects replies that are too long.
func cleanReply(raw string) string {
	text := llm.StripCodeFence(raw)
	if lower := strings.ToLower(text); strings.HasPrefix(lower, "reply:") {
		text = strings.TrimSpace(text[len("reply:"):])
	}
	for _, q := range []string{`"`, "'", "“"} {
		closing := q
		if q == "“" {
			closing = "”"
		}
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, closing) && len(text) >= len(q)+len(closing) {
			text = strings.TrimSpace(text[len(q) : len(text)-len(closing)])
		}
	}
	return text
}
