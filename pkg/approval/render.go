package approval

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/cpunion/replybot/pkg/quality"
	"github.com/cpunion/replybot/pkg/types"
)

// Progress is the posting budget shown with every post.
type Progress struct {
	Index     int // 1-based
	Total     int
	InWindow  int
	Cap       int
	Remaining int
}

// Renderer writes sessions to the console.
type Renderer struct {
	Out         io.Writer
	Width       int
	Color       bool
	Now         func() time.Time
	DisplayName func(types.PersonaTag) string
}

// NewRenderer enables colour only when out is a terminal.
func NewRenderer(out io.Writer) *Renderer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{Out: out, Width: 80, Color: color}
}

func (r *Renderer) paint(s string, colors ...text.Color) string {
	if !r.Color {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

func (r *Renderer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *Renderer) name(tag types.PersonaTag) string {
	if r.DisplayName != nil {
		return r.DisplayName(tag)
	}
	return string(tag)
}

// Session renders the post, its verdict and the numbered options.
func (r *Renderer) Session(s *Session, p Progress) {
	item := s.Item
	var b strings.Builder
	rule := strings.Repeat("=", r.Width)

	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "%s  @%s  %s  engagement %.1f\n",
		r.paint(fmt.Sprintf("[%d/%d]", p.Index, p.Total), text.Bold),
		item.Post.Author,
		quality.FormatAge(item.Post.Age(r.now())),
		item.EngagementScore,
	)
	if item.Verdict.Rationale != "" {
		fmt.Fprintf(&b, "Why: %s\n", item.Verdict.Rationale)
	}
	if item.Verdict.SuggestedAngle != "" {
		fmt.Fprintf(&b, "Angle: %s\n", item.Verdict.SuggestedAngle)
	}
	b.WriteString(strings.Repeat("-", r.Width) + "\n")
	b.WriteString(text.WrapSoft(strings.TrimSpace(item.Post.Text), r.Width) + "\n")
	b.WriteString(strings.Repeat("-", r.Width) + "\n")

	for i, c := range item.Candidates {
		label := fmt.Sprintf("%d. %s (%.0f)", i+1, r.name(c.Persona), c.Score)
		b.WriteString(r.paint(label, text.FgCyan) + "\n")
		b.WriteString(indent(text.WrapSoft(c.Text, r.Width-3), "   ") + "\n")
	}

	fmt.Fprintf(&b, "\nPosted %d/%d in window, %d remaining\n", p.InWindow, p.Cap, p.Remaining)
	b.WriteString(r.paint("y<n> post  i<n> improve  n skip  s skip all", text.Faint) + "\n")
	io.WriteString(r.Out, b.String())
}

// Outcome renders the result of a command.
func (r *Renderer) Outcome(o Outcome) {
	if o.Message == "" {
		return
	}
	msg := o.Message
	switch o.Kind {
	case OutcomePosted, OutcomeImproved:
		msg = r.paint(msg, text.FgGreen)
	case OutcomeRateLimited, OutcomePostFailed, OutcomeImproveFailed, OutcomeInvalid:
		msg = r.paint(msg, text.FgYellow)
	}
	fmt.Fprintln(r.Out, msg)
}

// Prompt writes a prompt without a newline.
func (r *Renderer) Prompt(s string) {
	io.WriteString(r.Out, s)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
