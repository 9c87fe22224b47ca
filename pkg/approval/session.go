package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cpunion/replybot/pkg/ledger"
	"github.com/cpunion/replybot/pkg/social"
	"github.com/cpunion/replybot/pkg/types"
)

// State is where a Session is in the review of one post.
type State int

const (
	StatePresented State = iota
	StateImproving
	StatePosted
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePresented:
		return "presented"
	case StateImproving:
		return "improving"
	case StatePosted:
		return "posted"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further commands apply.
func (s State) Terminal() bool {
	return s == StatePosted || s == StateSkipped
}

// OutcomeKind classifies the result of one command.
type OutcomeKind int

const (
	OutcomeInvalid OutcomeKind = iota
	OutcomePosted
	OutcomeRateLimited
	OutcomePostFailed
	OutcomeAwaitingHint
	OutcomeImproved
	OutcomeImproveFailed
	OutcomeSkipped
	OutcomeSkippedAll
)

// Outcome describes what a command did. Err carries the non-fatal cause for
// rate-limited, failed and invalid outcomes.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	ReplyID string
	Err     error
}

// Item is one post queued for review.
type Item struct {
	Post            *types.Post
	Verdict         types.QualityVerdict
	EngagementScore float64
	Candidates      []types.ReplyCandidate
}

// RegenerateFunc produces a rescored replacement for one persona. It returns
// a safety or generation error when no usable candidate came back.
type RegenerateFunc func(ctx context.Context, item *Item, tag types.PersonaTag, hint string) (types.ReplyCandidate, error)

// PostedFunc is told about every successful post after the ledger recorded it.
type PostedFunc func(item *Item, c types.ReplyCandidate, replyID string, at time.Time)

// Deps are the collaborators a Session acts on.
type Deps struct {
	Poster     social.Poster
	Ledger     ledger.Ledger
	Regenerate RegenerateFunc
	OnPosted   PostedFunc
	Cap        int
	Window     time.Duration
	Now        func() time.Time
	Logger     logrus.FieldLogger
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *Deps) logger() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.StandardLogger()
}

// Session is the review state machine for one post.
type Session struct {
	Item  *Item
	State State

	deps      *Deps
	improving int // 0-based option under improvement
}

// NewSession starts a session in the presented state.
func NewSession(item *Item, deps *Deps) *Session {
	return &Session{Item: item, State: StatePresented, deps: deps, improving: -1}
}

// Improving returns the 1-based option under improvement, or 0.
func (s *Session) Improving() int {
	if s.State != StateImproving {
		return 0
	}
	return s.improving + 1
}

// Apply runs one command. The returned error is non-nil only when the run
// must stop: the reply was posted but the ledger could not record it.
func (s *Session) Apply(ctx context.Context, cmd Command) (Outcome, error) {
	if s.State != StatePresented {
		return Outcome{Kind: OutcomeInvalid, Message: fmt.Sprintf("no commands accepted while %s", s.State)}, nil
	}
	switch cmd.Kind {
	case CommandSkip:
		s.State = StateSkipped
		return Outcome{Kind: OutcomeSkipped, Message: "Skipped"}, nil
	case CommandSkipAll:
		s.State = StateSkipped
		return Outcome{Kind: OutcomeSkippedAll, Message: "Skipping all remaining posts"}, nil
	case CommandPost, CommandImprove:
		if cmd.Option < 1 || cmd.Option > len(s.Item.Candidates) {
			return Outcome{
				Kind:    OutcomeInvalid,
				Message: fmt.Sprintf("Option must be between 1 and %d", len(s.Item.Candidates)),
				Err:     ErrInvalidCommand,
			}, nil
		}
		if cmd.Kind == CommandPost {
			return s.post(ctx, cmd.Option-1)
		}
		s.State = StateImproving
		s.improving = cmd.Option - 1
		return Outcome{Kind: OutcomeAwaitingHint, Message: "Describe the change you want (or press enter)"}, nil
	default:
		return Outcome{Kind: OutcomeInvalid, Message: "Unknown command", Err: ErrInvalidCommand}, nil
	}
}

// Improve completes an improve command with the operator's hint. The
// candidate is replaced only when regeneration produced a safe reply.
func (s *Session) Improve(ctx context.Context, hint string) Outcome {
	if s.State != StateImproving {
		return Outcome{Kind: OutcomeInvalid, Message: "No improvement in progress"}
	}
	idx := s.improving
	s.State = StatePresented
	s.improving = -1

	old := s.Item.Candidates[idx]
	if s.deps.Regenerate == nil {
		return Outcome{Kind: OutcomeImproveFailed, Message: "Improvement unavailable", Err: types.ErrGeneration}
	}
	fresh, err := s.deps.Regenerate(ctx, s.Item, old.Persona, hint)
	if err != nil {
		s.deps.logger().WithFields(logrus.Fields{
			"post_id": s.Item.Post.ID,
			"persona": old.Persona,
		}).WithError(err).Warn("Improvement failed, keeping previous reply")
		return Outcome{Kind: OutcomeImproveFailed, Message: "Improvement failed, keeping previous reply", Err: err}
	}
	fresh.PostID = s.Item.Post.ID
	fresh.Persona = old.Persona
	s.Item.Candidates[idx] = fresh
	return Outcome{Kind: OutcomeImproved, Message: fmt.Sprintf("Option %d improved", idx+1)}
}

func (s *Session) post(ctx context.Context, idx int) (Outcome, error) {
	c := s.Item.Candidates[idx]
	log := s.deps.logger().WithFields(logrus.Fields{
		"post_id": s.Item.Post.ID,
		"persona": c.Persona,
	})

	now := s.deps.now()
	if count := s.deps.Ledger.CountInWindow(now, s.deps.Window); count >= s.deps.Cap {
		err := &types.RateLimitExceeded{Count: count, Cap: s.deps.Cap}
		log.WithError(err).Warn("Rate limit reached, not posting")
		return Outcome{Kind: OutcomeRateLimited, Message: err.Error(), Err: err}, nil
	}
	if s.deps.Ledger.HasReplied(s.Item.Post.ID) {
		s.State = StateSkipped
		return Outcome{Kind: OutcomeSkipped, Message: "Already replied to this post"}, nil
	}

	replyID, err := s.deps.Poster.PostReply(ctx, s.Item.Post.ID, c.Text)
	if err != nil {
		if !errors.Is(err, types.ErrPosting) {
			err = fmt.Errorf("%w: %w", types.ErrPosting, err)
		}
		log.WithError(err).Error("Posting failed")
		return Outcome{Kind: OutcomePostFailed, Message: "Posting failed, choose again", Err: err}, nil
	}

	at := s.deps.now()
	s.State = StatePosted
	if err := s.deps.Ledger.RecordReply(s.Item.Post.ID, at, ledger.Meta{ReplyID: replyID, Persona: c.Persona}); err != nil {
		log.WithField("reply_id", replyID).WithError(err).Error("Reply posted but ledger write failed")
		return Outcome{Kind: OutcomePosted, ReplyID: replyID, Err: err}, err
	}
	log.WithField("reply_id", replyID).Info("Reply posted")
	if s.deps.OnPosted != nil {
		s.deps.OnPosted(s.Item, c, replyID, at)
	}
	return Outcome{Kind: OutcomePosted, Message: "Reply posted", ReplyID: replyID}, nil
}
