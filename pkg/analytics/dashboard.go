package analytics

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/cpunion/replybot/pkg/types"
)

// Dashboard is everything the stats view shows.
type Dashboard struct {
	InWindow int
	Cap      int
	Personas []types.PersonaStats
	APICalls []KeyUsage
	// DisplayName maps a persona tag to a label. Optional.
	DisplayName func(types.PersonaTag) string
}

// Remaining is how many replies may still be posted in the window.
func (d Dashboard) Remaining() int {
	if r := d.Cap - d.InWindow; r > 0 {
		return r
	}
	return 0
}

// RenderDashboard writes the dashboard as text tables.
func RenderDashboard(w io.Writer, d Dashboard) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Replies in window: %d/%d (%d remaining)\n", d.InWindow, d.Cap, d.Remaining())

	if len(d.APICalls) > 0 {
		rows := make([][]string, 0, len(d.APICalls))
		for _, u := range d.APICalls {
			rows = append(rows, []string{
				fmt.Sprintf("key %d", u.KeyIndex+1),
				fmt.Sprintf("%d", u.Calls),
				fmt.Sprintf("%d", u.Failures),
			})
		}
		b.WriteString("\nAI calls today\n")
		b.WriteString(renderTable([]string{"Key", "Calls", "Failures"}, rows, []text.Align{text.AlignLeft, text.AlignRight, text.AlignRight}))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	writePersonaTable(&b, "Persona performance", d.Personas, d.DisplayName)

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderPersonaStats writes one titled persona table. displayName may be nil.
func RenderPersonaStats(w io.Writer, title string, stats []types.PersonaStats, displayName func(types.PersonaTag) string) error {
	var b strings.Builder
	writePersonaTable(&b, title, stats, displayName)
	_, err := io.WriteString(w, b.String())
	return err
}

func writePersonaTable(b *strings.Builder, title string, stats []types.PersonaStats, displayName func(types.PersonaTag) string) {
	b.WriteString(title + "\n")
	if len(stats) == 0 {
		b.WriteString("No replies tracked yet.\n")
		return
	}
	rows := make([][]string, 0, len(stats))
	for _, p := range stats {
		name := string(p.Persona)
		if displayName != nil {
			name = displayName(p.Persona)
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d", p.RepliesPosted),
			fmt.Sprintf("%d", p.Likes),
			fmt.Sprintf("%d", p.Reposts),
			fmt.Sprintf("%d", p.Replies),
			fmt.Sprintf("%.1f", p.AvgEngagement()),
		})
	}
	b.WriteString(renderTable(
		[]string{"Persona", "Posted", "Likes", "Reposts", "Replies", "Avg engagement"},
		rows,
		[]text.Align{text.AlignLeft, text.AlignRight, text.AlignRight, text.AlignRight, text.AlignRight, text.AlignRight},
	))
	b.WriteString("\n")
}

func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
