package bot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cpunion/replybot/pkg/analytics"
	"github.com/cpunion/replybot/pkg/approval"
	"github.com/cpunion/replybot/pkg/config"
	"github.com/cpunion/replybot/pkg/ledger"
	"github.com/cpunion/replybot/pkg/llm"
	"github.com/cpunion/replybot/pkg/logging"
	"github.com/cpunion/replybot/pkg/social"
	"github.com/cpunion/replybot/pkg/types"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const replyText = "In my experience the fix is to pick one metric per quarter, because focus compounds. What did you try first?"

type fakeModel struct {
	accept          bool
	reply           string
	classifyCalls   atomic.Int32
	generationCalls atomic.Int32
}

func (m *fakeModel) generator() llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, `"accept"`) {
			m.classifyCalls.Add(1)
			if m.accept {
				return `{"accept": true, "reason": "invites experience", "reply_angle": "share a method"}`, nil
			}
			return `{"accept": false, "reason": "one-liner"}`, nil
		}
		m.generationCalls.Add(1)
		if m.reply != "" {
			return m.reply, nil
		}
		return replyText, nil
	})
}

type harness struct {
	cfg    *config.Config
	fake   *social.Fake
	model  *fakeModel
	ledger *ledger.MemoryLedger
	store  *analytics.Store
	out    *bytes.Buffer
	logDir string
}

func newHarness(t *testing.T, accept bool) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Bot.MyHandle = "me"
	cfg.Bot.MinReplyScore = 0
	cfg.Bot.SeedFromHistory = false

	store, err := analytics.Open(filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("analytics.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fake := social.NewFake()
	fake.Posts["alice"] = []*types.Post{{ID: "a1", Author: "alice", Text: "How do you keep a small team focused on one goal?", CreatedAt: now.Add(-2 * time.Hour), AuthorFollowers: 100}}
	fake.Posts["bob"] = []*types.Post{{ID: "b1", Author: "bob", Text: "Old thoughts on hiring.", CreatedAt: now.Add(-20 * time.Hour)}}

	return &harness{
		cfg:    &cfg,
		fake:   fake,
		model:  &fakeModel{accept: accept},
		ledger: ledger.NewMemory(),
		store:  store,
		out:    &bytes.Buffer{},
		logDir: t.TempDir(),
	}
}

func (h *harness) bot(t *testing.T, input string) (*Bot, *JSONLLogger) {
	t.Helper()
	decisions, err := NewJSONLLogger(filepath.Join(h.logDir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLLogger: %v", err)
	}
	t.Cleanup(func() { _ = decisions.Close() })
	return New(Components{
		Config:    h.cfg,
		Social:    h.fake,
		LLM:       h.model.generator(),
		Ledger:    h.ledger,
		Store:     h.store,
		Decisions: decisions,
		Logger:    logging.Discard(),
		In:        strings.NewReader(input),
		Out:       h.out,
		Now:       func() time.Time { return now },
	}), decisions
}

func (h *harness) decisions(t *testing.T) []Decision {
	t.Helper()
	f, err := os.Open(filepath.Join(h.logDir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("open decisions: %v", err)
	}
	defer f.Close()
	var out []Decision
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var d Decision
		if err := json.Unmarshal(sc.Bytes(), &d); err != nil {
			t.Fatalf("decode decision: %v", err)
		}
		out = append(out, d)
	}
	return out
}

func TestRun_PostsApprovedReply(t *testing.T) {
	h := newHarness(t, true)
	b, _ := h.bot(t, "y1\n")

	report, err := b.Run(context.Background(), []types.Handle{"alice", "bob", "me"}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Handles != 2 {
		t.Fatalf("own handle should be removed, got %d handles", report.Handles)
	}
	if report.Fetch.Kept != 1 || report.Classified != 1 || report.Reviewable != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Review.Posted != 1 {
		t.Fatalf("expected one post, got %+v", report.Review)
	}
	if h.model.generationCalls.Load() != 5 {
		t.Fatalf("expected 5 persona requests, got %d", h.model.generationCalls.Load())
	}
	if len(h.fake.Posted) != 1 || h.fake.Posted[0].ParentID != "a1" {
		t.Fatalf("unexpected posts %+v", h.fake.Posted)
	}
	if !h.ledger.HasReplied("a1") {
		t.Fatal("ledger must record a1")
	}

	stats, err := h.store.PersonaStats(context.Background())
	if err != nil {
		t.Fatalf("PersonaStats: %v", err)
	}
	if len(stats) != 1 || stats[0].RepliesPosted != 1 {
		t.Fatalf("unexpected stored stats %+v", stats)
	}
	if len(report.Stats) != 1 || report.Stats[0].RepliesPosted != 1 {
		t.Fatalf("unexpected run stats %+v", report.Stats)
	}

	var sawPosted bool
	for _, d := range h.decisions(t) {
		if d.RunID != report.RunID {
			t.Fatalf("decision from another run: %+v", d)
		}
		if d.Stage == StageReview && d.Outcome == "posted" && d.PostID == "a1" {
			sawPosted = true
		}
	}
	if !sawPosted {
		t.Fatal("posted decision missing")
	}
	if !strings.Contains(h.out.String(), "@alice") {
		t.Fatal("post was not rendered")
	}
}

func TestImproveRespectsMinReplyScore(t *testing.T) {
	h := newHarness(t, true)
	b, _ := h.bot(t, "")

	post := h.fake.Posts["alice"][0]
	score, _ := b.scorer.Score(post, replyText)
	item := &approval.Item{
		Post:       post,
		Candidates: []types.ReplyCandidate{{PostID: post.ID, Persona: types.PersonaSystemThinker, Text: "original", Score: 90}},
	}
	deps := b.approvalDeps("run-1", logging.Discard())

	h.cfg.Bot.MinReplyScore = score
	c, err := deps.Regenerate(context.Background(), item, types.PersonaSystemThinker, "shorter")
	if err != nil || c.Score != score {
		t.Fatalf("reply at the floor should pass, got %+v, %v", c, err)
	}

	h.cfg.Bot.MinReplyScore = score + 1
	if _, err := deps.Regenerate(context.Background(), item, types.PersonaSystemThinker, "shorter"); !errors.Is(err, types.ErrGeneration) {
		t.Fatalf("expected ErrGeneration below the floor, got %v", err)
	}

	s := approval.NewSession(item, deps)
	if res, err := s.Apply(context.Background(), approval.Command{Kind: approval.CommandImprove, Option: 1}); err != nil || res.Kind != approval.OutcomeAwaitingHint {
		t.Fatalf("unexpected improve start %+v, %v", res, err)
	}
	if res := s.Improve(context.Background(), "shorter"); res.Kind != approval.OutcomeImproveFailed {
		t.Fatalf("expected improve to fail, got %+v", res)
	}
	if item.Candidates[0].Text != "original" {
		t.Fatalf("low-scoring improvement replaced the reply: %q", item.Candidates[0].Text)
	}
}

func TestRun_OverlongRepliesAreRejected(t *testing.T) {
	h := newHarness(t, true)
	h.model.reply = strings.Repeat("Focus compounds when the team ships one goal. ", 8)
	b, _ := h.bot(t, "y1\n")

	report, err := b.Run(context.Background(), []types.Handle{"alice"}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Reviewable != 0 || h.fake.PostCount() != 0 {
		t.Fatalf("over-long replies must never reach review, got %+v", report)
	}
	var rejected int
	for _, d := range h.decisions(t) {
		if d.Stage == StageSafety && d.Outcome == "rejected" && strings.Contains(d.Detail, "exceeds maximum length") {
			rejected++
		}
	}
	if rejected != 5 {
		t.Fatalf("expected 5 length rejections, got %d", rejected)
	}
}

func TestRun_LedgeredPostIsNotClassified(t *testing.T) {
	h := newHarness(t, true)
	if err := h.ledger.RecordReply("a1", now.Add(-30*time.Hour), ledger.Meta{}); err != nil {
		t.Fatal(err)
	}
	b, _ := h.bot(t, "")

	report, err := b.Run(context.Background(), []types.Handle{"alice", "bob"}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.model.classifyCalls.Load() != 0 {
		t.Fatalf("ledgered post reached the quality filter %d times", h.model.classifyCalls.Load())
	}
	if report.Fetch.AlreadySeen != 1 || report.Reviewable != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRun_RejectedPostsNeverReachGeneration(t *testing.T) {
	h := newHarness(t, false)
	b, _ := h.bot(t, "")

	report, err := b.Run(context.Background(), []types.Handle{"alice"}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.model.classifyCalls.Load() != 1 || h.model.generationCalls.Load() != 0 {
		t.Fatalf("classify=%d generate=%d", h.model.classifyCalls.Load(), h.model.generationCalls.Load())
	}
	if report.Accepted != 0 || h.fake.PostCount() != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRun_CapReachedStopsEarly(t *testing.T) {
	h := newHarness(t, true)
	h.cfg.Bot.DailyCap = 2
	for _, id := range []string{"x1", "x2"} {
		if err := h.ledger.RecordReply(id, now.Add(-time.Hour), ledger.Meta{}); err != nil {
			t.Fatal(err)
		}
	}
	b, _ := h.bot(t, "y1\n")

	if _, err := b.Run(context.Background(), []types.Handle{"alice"}, RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.fake.Fetched) != 0 || h.fake.PostCount() != 0 {
		t.Fatal("nothing should be fetched or posted at the cap")
	}
}

func TestRun_DryRunNeverPosts(t *testing.T) {
	h := newHarness(t, true)
	b, _ := h.bot(t, "y1\n")

	report, err := b.Run(context.Background(), []types.Handle{"alice"}, RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Reviewable != 1 || h.fake.PostCount() != 0 || h.ledger.HasReplied("a1") {
		t.Fatalf("dry run must not post: %+v", report)
	}
	if !strings.Contains(h.out.String(), "System Thinker") {
		t.Fatal("candidates should be printed")
	}
}

func TestRun_LedgerFailureIsFatal(t *testing.T) {
	h := newHarness(t, true)
	h.ledger.FailWrites = errors.New("read-only filesystem")
	b, _ := h.bot(t, "y1\n")

	_, err := b.Run(context.Background(), []types.Handle{"alice"}, RunOptions{})
	if !errors.Is(err, types.ErrLedgerIO) {
		t.Fatalf("expected ErrLedgerIO, got %v", err)
	}
}

func TestRun_NoHandles(t *testing.T) {
	h := newHarness(t, true)
	b, _ := h.bot(t, "")
	if _, err := b.Run(context.Background(), []types.Handle{"Me"}, RunOptions{}); !errors.Is(err, ErrNoHandles) {
		t.Fatalf("expected ErrNoHandles, got %v", err)
	}
}

func TestSeedFromHistory(t *testing.T) {
	fake := social.NewFake()
	fake.MyReplies = []*types.Post{
		{ID: "r1", InReplyToID: "p1", IsReply: true, CreatedAt: now.Add(-time.Hour)},
		{ID: "r2", InReplyToID: "p2", IsReply: true, CreatedAt: now.Add(-30 * time.Hour)},
		{ID: "r3", IsReply: true},
	}
	l := ledger.NewMemory()
	if err := l.RecordReply("p2", now.Add(-30*time.Hour), ledger.Meta{}); err != nil {
		t.Fatal(err)
	}

	added, err := SeedFromHistory(context.Background(), fake, l, "me", logging.Discard())
	if err != nil {
		t.Fatalf("SeedFromHistory: %v", err)
	}
	if added != 1 || !l.HasReplied("p1") {
		t.Fatalf("expected p1 seeded, added=%d", added)
	}
	if got := l.CountInWindow(now, 24*time.Hour); got != 1 {
		t.Fatalf("seeded reply should count toward the window, got %d", got)
	}

	l.FailWrites = errors.New("disk full")
	if _, err := SeedFromHistory(context.Background(), fake, l, "me", logging.Discard()); !errors.Is(err, types.ErrLedgerIO) {
		t.Fatalf("expected ErrLedgerIO, got %v", err)
	}
}

func TestBuildDashboard(t *testing.T) {
	h := newHarness(t, true)
	if err := h.ledger.RecordReply("x1", now.Add(-time.Hour), ledger.Meta{}); err != nil {
		t.Fatal(err)
	}
	if err := h.store.RecordAPICall(context.Background(), 0, now, false); err != nil {
		t.Fatal(err)
	}
	d, err := BuildDashboard(context.Background(), h.cfg, h.ledger, h.store, now)
	if err != nil {
		t.Fatalf("BuildDashboard: %v", err)
	}
	if d.InWindow != 1 || d.Remaining() != 16 || len(d.APICalls) != 1 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestReplyScorer_BlockedPatterns(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.BlockedPatterns = []string{`(?i)\bcrypto\b`}
	scorer := ReplyScorer(&cfg)

	post := &types.Post{ID: "p1", Author: "alice", Text: "What are you building this year?"}
	ranked, rejected := scorer.Rank(post, []types.ReplyCandidate{
		{PostID: "p1", Persona: types.PersonaCandidRealist, Text: "A crypto wallet, obviously. Shipping it next month."},
		{PostID: "p1", Persona: types.PersonaSystemThinker, Text: replyText},
	})
	if len(rejected) != 1 || rejected[0].Candidate.Persona != types.PersonaCandidRealist {
		t.Fatalf("expected the blocked reply rejected, got %+v", rejected)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected one ranked candidate, got %d", len(ranked))
	}
}
