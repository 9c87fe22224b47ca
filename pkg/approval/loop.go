package approval

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// Summary counts what happened across a review.
type Summary struct {
	Reviewed    int
	Posted      int
	Skipped     int
	RateLimited int
	PostFailed  int
	Improved    int
	Stopped     bool // skip-all or end of input
}

// Loop reads operator commands and drives one Session per item.
type Loop struct {
	in       *bufio.Reader
	renderer *Renderer
	deps     *Deps
}

// NewLoop creates a loop reading from in.
func NewLoop(in io.Reader, renderer *Renderer, deps *Deps) *Loop {
	return &Loop{in: bufio.NewReader(in), renderer: renderer, deps: deps}
}

// Run reviews items in order. It returns early on skip-all, end of input,
// context cancellation or a fatal ledger error.
func (l *Loop) Run(ctx context.Context, items []*Item) (Summary, error) {
	var sum Summary
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if len(item.Candidates) == 0 {
			continue
		}
		sum.Reviewed++
		s := NewSession(item, l.deps)
		stop, err := l.review(ctx, s, i+1, len(items), &sum)
		if err != nil {
			return sum, err
		}
		if stop {
			sum.Stopped = true
			return sum, nil
		}
	}
	return sum, nil
}

func (l *Loop) progress(index, total int) Progress {
	now := l.deps.now()
	inWindow := l.deps.Ledger.CountInWindow(now, l.deps.Window)
	remaining := l.deps.Cap - inWindow
	if remaining < 0 {
		remaining = 0
	}
	return Progress{Index: index, Total: total, InWindow: inWindow, Cap: l.deps.Cap, Remaining: remaining}
}

// review returns stop=true when the whole review should end.
func (l *Loop) review(ctx context.Context, s *Session, index, total int, sum *Summary) (bool, error) {
	l.renderer.Session(s, l.progress(index, total))
	for !s.State.Terminal() {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		l.renderer.Prompt("> ")
		line, err := l.readLine()
		if err != nil {
			return true, nil
		}
		cmd, perr := ParseCommand(line)
		if perr != nil {
			l.renderer.Outcome(Outcome{Kind: OutcomeInvalid, Message: "Enter y<n>, i<n>, n or s"})
			continue
		}

		out, err := s.Apply(ctx, cmd)
		l.renderer.Outcome(out)
		if err != nil {
			return true, err
		}
		switch out.Kind {
		case OutcomePosted:
			sum.Posted++
		case OutcomeSkipped:
			sum.Skipped++
		case OutcomeSkippedAll:
			sum.Skipped++
			return true, nil
		case OutcomeRateLimited:
			sum.RateLimited++
		case OutcomePostFailed:
			sum.PostFailed++
		case OutcomeAwaitingHint:
			l.renderer.Prompt("hint> ")
			hint, err := l.readLine()
			if err != nil {
				return true, nil
			}
			res := s.Improve(ctx, hint)
			l.renderer.Outcome(res)
			if res.Kind == OutcomeImproved {
				sum.Improved++
			}
			l.renderer.Session(s, l.progress(index, total))
		}
	}
	return false, nil
}

func (l *Loop) readLine() (string, error) {
	line, err := l.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
