package persona

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cpunion/replybot/pkg/llm"
	"github.com/cpunion/replybot/pkg/types"
)

// DefaultMaxLength is the reply limit stated in the prompt.
const DefaultMaxLength = 280

// Generator produces one reply candidate per persona.
type Generator struct {
	llm       llm.Generator
	personas  []Persona
	logger    logrus.FieldLogger
	MaxLength int
}

// NewGenerator creates a generator over the default personas.
func NewGenerator(g llm.Generator, logger logrus.FieldLogger) *Generator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Generator{
		llm:       g,
		personas:  DefaultPersonas(),
		logger:    logger,
		MaxLength: DefaultMaxLength,
	}
}

// GenerateAll issues one request per persona. A persona that fails is logged
// and skipped, so the result may hold fewer than five candidates.
func (g *Generator) GenerateAll(ctx context.Context, post *types.Post, verdict types.QualityVerdict) []types.ReplyCandidate {
	out := make([]types.ReplyCandidate, 0, len(g.personas))
	for _, p := range g.personas {
		if ctx.Err() != nil {
			break
		}
		c, err := g.generate(ctx, p, post, verdict, "")
		if err != nil {
			g.logger.WithFields(logrus.Fields{
				"post_id": post.ID,
				"persona": p.Tag,
			}).WithError(err).Warn("Persona generation failed, skipping")
			continue
		}
		out = append(out, c)
	}
	return out
}

// Regenerate produces a fresh candidate for one persona, optionally steered by hint.
func (g *Generator) Regenerate(ctx context.Context, post *types.Post, verdict types.QualityVerdict, tag types.PersonaTag, hint string) (types.ReplyCandidate, error) {
	p, ok := Lookup(tag)
	if !ok {
		return types.ReplyCandidate{}, fmt.Errorf("%w: unknown persona %q", types.ErrGeneration, tag)
	}
	return g.generate(ctx, p, post, verdict, hint)
}

func (g *Generator) generate(ctx context.Context, p Persona, post *types.Post, verdict types.QualityVerdict, hint string) (types.ReplyCandidate, error) {
	prompt := buildReplyPrompt(p, post, verdict, hint, g.MaxLength)
	raw, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return types.ReplyCandidate{}, fmt.Errorf("%w: %s: %w", types.ErrGeneration, p.Tag, err)
	}
	text := cleanReply(raw)
	if text == "" {
		return types.ReplyCandidate{}, fmt.Errorf("%w: %s: empty reply", types.ErrGeneration, p.Tag)
	}
	return types.ReplyCandidate{
		PostID:  post.ID,
		Persona: p.Tag,
		Text:    text,
	}, nil
}
