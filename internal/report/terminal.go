package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sells-group/stock-researcher/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	winnerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	caveatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// Terminal renders st for an interactive shell. Colors degrade to plain
// text when the output is not a terminal.
func Terminal(st *model.PipelineState) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(Title(st)))
	b.WriteString("\n\n")

	if st.Narrative == "" {
		writeTerminalErrors(&b, st.Errors)
		writeTerminalLog(&b, st.Log)
		return b.String()
	}

	b.WriteString(sectionStyle.Render("Summary"))
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(st.Narrative))
	b.WriteString("\n\n")

	if d := st.Dashboard; d != nil {
		writeTerminalDashboard(&b, d)
	}

	if Failed(st) {
		b.WriteString(caveatStyle.Render("Caveat: " + CaveatNote))
		b.WriteString("\n\n")
	}

	if v := st.Validation; v != nil {
		fmt.Fprintf(&b, "%s faithfulness %.2f, relevancy %.2f, attempt %d\n\n",
			sectionStyle.Render("Validation:"), v.FaithfulnessScore, v.RelevancyScore, v.Attempt)
	}

	writeTerminalErrors(&b, st.Errors)
	writeTerminalLog(&b, st.Log)
	return b.String()
}

func writeTerminalDashboard(b *strings.Builder, d *model.Dashboard) {
	header := []string{"Metric", d.Tickers[0], d.Tickers[1], "Better"}
	rows := make([][]string, 0, len(d.Rows))
	for _, r := range d.Rows {
		rows = append(rows, []string{r.Metric, dashboardCell(r.A), dashboardCell(r.B), betterTicker(d, r.Better)})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, c := range row {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	b.WriteString(sectionStyle.Render("Dashboard"))
	b.WriteString("\n")
	writeTerminalRow(b, header, widths)
	for _, row := range rows {
		writeTerminalRow(b, row, widths)
	}
	b.WriteString(winnerStyle.Render("Overall edge: " + d.Winner))
	b.WriteString("\n\n")
}

func writeTerminalRow(b *strings.Builder, cells []string, widths []int) {
	for i, c := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(c)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(c)))
		}
	}
	b.WriteString("\n")
}

func writeTerminalErrors(b *strings.Builder, errs []string) {
	if len(errs) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("Errors"))
	b.WriteString("\n")
	for _, e := range errs {
		b.WriteString(errorStyle.Render("  - " + e))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeTerminalLog(b *strings.Builder, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("Agent log"))
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(logStyle.Render("  " + l))
		b.WriteString("\n")
	}
}
