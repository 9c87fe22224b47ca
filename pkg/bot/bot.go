// Package bot wires the reply pipeline: fetch, rank, classify, generate,
// score and hand the survivors to the operator for approval.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cpunion/replybot/pkg/analytics"
	"github.com/cpunion/replybot/pkg/approval"
	"github.com/cpunion/replybot/pkg/config"
	"github.com/cpunion/replybot/pkg/fetcher"
	"github.com/cpunion/replybot/pkg/handles"
	"github.com/cpunion/replybot/pkg/ledger"
	"github.com/cpunion/replybot/pkg/llm"
	"github.com/cpunion/replybot/pkg/persona"
	"github.com/cpunion/replybot/pkg/quality"
	"github.com/cpunion/replybot/pkg/scoring"
	"github.com/cpunion/replybot/pkg/social"
	"github.com/cpunion/replybot/pkg/types"
)

// ErrNoHandles is returned when there is nobody to track.
var ErrNoHandles = errors.New("no handles to track")

// Components are the collaborators a Bot needs. Store and Decisions are optional.
type Components struct {
	Config    *config.Config
	Social    social.Client
	LLM       llm.Generator
	Ledger    ledger.Ledger
	Store     *analytics.Store
	Decisions DecisionLogger
	Logger    logrus.FieldLogger
	In        io.Reader
	Out       io.Writer
	Now       func() time.Time
}

// Bot runs the reply pipeline.
type Bot struct {
	cfg       *config.Config
	social    social.Client
	ledger    ledger.Ledger
	store     *analytics.Store
	decisions DecisionLogger
	logger    logrus.FieldLogger
	in        io.Reader
	out       io.Writer
	now       func() time.Time

	fetcher   *fetcher.Fetcher
	filter    *quality.Filter
	generator *persona.Generator
	scorer    *scoring.ReplyScorer
	weights   scoring.EngagementWeights
	stats     *analytics.Accumulator
}

// New assembles a bot from its components.
func New(c Components) *Bot {
	logger := c.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := c.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	in, out := c.In, c.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	decisions := c.Decisions
	if decisions == nil {
		decisions = nopDecisions{}
	}
	cfg := c.Config

	f := fetcher.New(c.Social, c.Ledger, logger)
	f.MyHandle = types.NormalizeHandle(cfg.Bot.MyHandle)
	f.Lookback = cfg.Lookback()

	gen := persona.NewGenerator(c.LLM, logger)
	gen.MaxLength = cfg.Scoring.MaxReplyLength

	return &Bot{
		cfg:       cfg,
		social:    c.Social,
		ledger:    c.Ledger,
		store:     c.Store,
		decisions: decisions,
		logger:    logger,
		in:        in,
		out:       out,
		now:       now,
		fetcher:   f,
		filter:    quality.NewFilter(c.LLM, logger),
		generator: gen,
		scorer:    ReplyScorer(cfg),
		weights:   EngagementWeights(cfg),
		stats:     analytics.NewAccumulator(),
	}
}

// EngagementWeights builds the engagement weights from configuration.
func EngagementWeights(cfg *config.Config) scoring.EngagementWeights {
	w := scoring.DefaultEngagementWeights()
	s := cfg.Scoring
	w.Like, w.Repost, w.Reply = s.LikeWeight, s.RepostWeight, s.ReplyWeight
	w.RateScale = s.RateScale
	w.RecencyHours = s.RecencyHours
	w.RecencyFloor = s.RecencyFloor
	w.QuestionBoost = s.QuestionBoost
	w.ControversyBoost = s.ControversyBoost
	return w
}

// ReplyScorer builds the reply scorer from configuration.
func ReplyScorer(cfg *config.Config) *scoring.ReplyScorer {
	safety := scoring.DefaultSafetyPolicy()
	safety.MaxLength = cfg.Scoring.MaxReplyLength
	for _, pattern := range cfg.Scoring.BlockedPatterns {
		// Validate has already compiled every pattern once.
		safety.Toxic = append(safety.Toxic, regexp.MustCompile(pattern))
	}
	s := scoring.NewReplyScorer(safety, cfg.Scoring.IdealMinLength, cfg.Scoring.IdealMaxLength)
	s.Affinity = persona.Affinity
	return s
}

// RunOptions alter a run.
type RunOptions struct {
	// DryRun prints the candidates without entering the approval loop.
	DryRun bool
}

// Report summarises a run.
type Report struct {
	RunID      string
	Handles    int
	Seeded     int
	Fetch      fetcher.Stats
	Classified int
	Accepted   int
	Reviewable int
	Review     approval.Summary
	Stats      []types.PersonaStats
}

// Run executes one pass of the pipeline. Only ledger failures and
// cancellation are returned as errors; everything else degrades per post.
func (b *Bot) Run(ctx context.Context, tracked []types.Handle, opts RunOptions) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	log := b.logger.WithField("run_id", report.RunID)

	tracked = handles.Without(tracked, types.NormalizeHandle(b.cfg.Bot.MyHandle))
	report.Handles = len(tracked)
	if len(tracked) == 0 {
		return report, ErrNoHandles
	}

	if b.cfg.Bot.SeedFromHistory {
		n, err := SeedFromHistory(ctx, b.social, b.ledger, types.NormalizeHandle(b.cfg.Bot.MyHandle), log)
		if err != nil {
			return report, err
		}
		report.Seeded = n
	}

	now := b.now()
	if left := ledger.Remaining(b.ledger, now, b.cfg.Window(), b.cfg.Bot.DailyCap); left == 0 && !opts.DryRun {
		log.WithField("cap", b.cfg.Bot.DailyCap).Warn("Daily reply cap reached, nothing to do")
		return report, nil
	}

	posts, fetchStats := b.fetcher.Fetch(ctx, tracked, now)
	report.Fetch = fetchStats
	if err := ctx.Err(); err != nil {
		return report, err
	}

	cands := b.rank(posts, now)
	limit := b.cfg.Bot.MaxClassify
	if limit > 0 && len(cands) > limit {
		for _, c := range cands[limit:] {
			b.decide(report.RunID, c.Post, StageQuality, "not_classified", "", 0, "below classification limit")
		}
	}
	accepted, verdicts := b.filter.Select(ctx, cands, limit)
	report.Classified = len(verdicts)
	report.Accepted = len(accepted)
	for _, c := range cands {
		v, ok := verdicts[c.Post.ID]
		if !ok {
			continue
		}
		b.recordAnalysis(ctx, report.RunID, c, &v, now, log)
		outcome := "rejected"
		if v.Accepted {
			outcome = "accepted"
		}
		b.decide(report.RunID, c.Post, StageQuality, outcome, "", c.EngagementScore, v.Rationale)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	items := b.generate(ctx, report.RunID, accepted, verdicts, log)
	report.Reviewable = len(items)
	log.WithFields(logrus.Fields{
		"fetched":    fetchStats.Kept,
		"classified": report.Classified,
		"accepted":   report.Accepted,
		"reviewable": report.Reviewable,
	}).Info("Candidates ready")

	if len(items) == 0 {
		return report, nil
	}

	deps := b.approvalDeps(report.RunID, log)
	renderer := approval.NewRenderer(b.out)
	renderer.Now = b.now
	renderer.DisplayName = persona.DisplayName

	if opts.DryRun {
		for i, item := range items {
			renderer.Session(approval.NewSession(item, deps), approval.Progress{
				Index:     i + 1,
				Total:     len(items),
				InWindow:  b.ledger.CountInWindow(now, b.cfg.Window()),
				Cap:       b.cfg.Bot.DailyCap,
				Remaining: ledger.Remaining(b.ledger, now, b.cfg.Window(), b.cfg.Bot.DailyCap),
			})
		}
		return report, nil
	}

	summary, err := approval.NewLoop(b.in, renderer, deps).Run(ctx, items)
	report.Review = summary
	report.Stats = b.stats.Snapshot()
	if err != nil {
		return report, err
	}
	log.WithFields(logrus.Fields{
		"posted":       summary.Posted,
		"skipped":      summary.Skipped,
		"rate_limited": summary.RateLimited,
		"post_failed":  summary.PostFailed,
	}).Info("Review finished")
	return report, nil
}

// rank scores posts by engagement, best first. Ties keep fetch order.
func (b *Bot) rank(posts []*types.Post, now time.Time) []quality.Candidate {
	cands := make([]quality.Candidate, 0, len(posts))
	for _, p := range posts {
		cands = append(cands, quality.Candidate{
			Post:            p,
			EngagementScore: scoring.EngagementScore(p, now, b.weights),
			Age:             p.Age(now),
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].EngagementScore > cands[j].EngagementScore
	})
	return cands
}

func (b *Bot) generate(ctx context.Context, runID string, accepted []quality.Candidate, verdicts map[string]types.QualityVerdict, log logrus.FieldLogger) []*approval.Item {
	items := make([]*approval.Item, 0, len(accepted))
	for _, c := range accepted {
		if ctx.Err() != nil {
			break
		}
		verdict := verdicts[c.Post.ID]
		generated := b.generator.GenerateAll(ctx, c.Post, verdict)
		if len(generated) == 0 {
			b.decide(runID, c.Post, StageGenerate, "no_candidates", "", 0, "every persona failed")
			continue
		}
		kept, rejected := b.scorer.Rank(c.Post, generated)
		for _, r := range rejected {
			log.WithFields(logrus.Fields{
				"post_id": c.Post.ID,
				"persona": r.Candidate.Persona,
			}).WithError(r.Err).Info("Candidate dropped by safety gate")
			b.decide(runID, c.Post, StageSafety, "rejected", r.Candidate.Persona, 0, r.Err.Error())
		}
		kept = b.aboveMinimum(runID, c.Post, kept)
		if len(kept) == 0 {
			b.decide(runID, c.Post, StageGenerate, "no_candidates", "", 0, "no candidate passed scoring")
			continue
		}
		items = append(items, &approval.Item{
			Post:            c.Post,
			Verdict:         verdict,
			EngagementScore: c.EngagementScore,
			Candidates:      kept,
		})
	}
	return items
}

func (b *Bot) aboveMinimum(runID string, post *types.Post, cands []types.ReplyCandidate) []types.ReplyCandidate {
	floor := b.cfg.Bot.MinReplyScore
	if floor <= 0 {
		return cands
	}
	out := cands[:0]
	for _, c := range cands {
		if c.Score >= floor {
			out = append(out, c)
			continue
		}
		b.decide(runID, post, StageSafety, "low_score", c.Persona, c.Score, "below min_reply_score")
	}
	return out
}

func (b *Bot) approvalDeps(runID string, log logrus.FieldLogger) *approval.Deps {
	return &approval.Deps{
		Poster: b.social,
		Ledger: b.ledger,
		Cap:    b.cfg.Bot.DailyCap,
		Window: b.cfg.Window(),
		Now:    b.now,
		Logger: log,
		Regenerate: func(ctx context.Context, item *approval.Item, tag types.PersonaTag, hint string) (types.ReplyCandidate, error) {
			c, err := b.generator.Regenerate(ctx, item.Post, item.Verdict, tag, hint)
			if err != nil {
				return c, err
			}
			if c, err = b.scorer.Evaluate(item.Post, c); err != nil {
				return c, err
			}
			if floor := b.cfg.Bot.MinReplyScore; floor > 0 && c.Score < floor {
				b.decide(runID, item.Post, StageSafety, "low_score", c.Persona, c.Score, "improved reply below min_reply_score")
				return c, fmt.Errorf("%w: improved reply scored %.0f, below %.0f", types.ErrGeneration, c.Score, floor)
			}
			return c, nil
		},
		OnPosted: func(item *approval.Item, c types.ReplyCandidate, replyID string, at time.Time) {
			b.stats.RecordPosted(c.Persona)
			b.decide(runID, item.Post, StageReview, "posted", c.Persona, c.Score, replyID)
			if b.store == nil {
				return
			}
			err := b.store.RecordReply(context.Background(), analytics.Reply{
				ReplyID:  replyID,
				PostID:   item.Post.ID,
				Persona:  c.Persona,
				Text:     c.Text,
				Score:    c.Score,
				PostedAt: at,
			})
			if err != nil {
				log.WithField("reply_id", replyID).WithError(err).Warn("Failed to record reply analytics")
			}
		},
	}
}

func (b *Bot) recordAnalysis(ctx context.Context, runID string, c quality.Candidate, v *types.QualityVerdict, now time.Time, log logrus.FieldLogger) {
	if b.store == nil {
		return
	}
	if err := b.store.RecordPostAnalysis(ctx, runID, c.Post, c.EngagementScore, v, now); err != nil {
		log.WithField("post_id", c.Post.ID).WithError(err).Warn("Failed to record post analysis")
	}
}

func (b *Bot) decide(runID string, post *types.Post, stage, outcome string, p types.PersonaTag, score float64, detail string) {
	err := b.decisions.LogDecision(Decision{
		Timestamp: b.now(),
		RunID:     runID,
		PostID:    post.ID,
		Author:    post.Author,
		Stage:     stage,
		Outcome:   outcome,
		Persona:   p,
		Score:     score,
		Detail:    detail,
	})
	if err != nil {
		b.logger.WithError(err).Debug("Failed to write decision log")
	}
}
