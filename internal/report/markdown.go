package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/stock-researcher/internal/model"
)

// Markdown renders st as a Markdown document. A run without a narrative
// shows its errors in place of the summary. The agent log always closes
// the document.
func Markdown(st *model.PipelineState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", Title(st))
	if q := strings.TrimSpace(st.Query.RawText); q != "" {
		fmt.Fprintf(&b, "> %s\n\n", q)
	}

	if st.Narrative == "" {
		writeMarkdownErrors(&b, st.Errors)
		writeMarkdownLog(&b, st.Log)
		return b.String()
	}

	b.WriteString("## Summary\n\n")
	b.WriteString(strings.TrimSpace(st.Narrative))
	b.WriteString("\n\n")

	if d := st.Dashboard; d != nil {
		writeMarkdownDashboard(&b, d)
	}

	if Failed(st) {
		fmt.Fprintf(&b, "> **Caveat:** %s\n\n", CaveatNote)
	}

	writeMarkdownFindings(&b, st)
	writeMarkdownValidation(&b, st.Validation)
	writeMarkdownErrors(&b, st.Errors)
	writeMarkdownLog(&b, st.Log)
	return b.String()
}

func writeMarkdownDashboard(b *strings.Builder, d *model.Dashboard) {
	b.WriteString("## Comparison dashboard\n\n")
	fmt.Fprintf(b, "| Metric | %s | %s | Better |\n", d.Tickers[0], d.Tickers[1])
	b.WriteString("|---|---|---|---|\n")
	for _, r := range d.Rows {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", r.Metric, dashboardCell(r.A), dashboardCell(r.B), betterTicker(d, r.Better))
	}
	fmt.Fprintf(b, "\n**Overall edge:** %s\n\n", d.Winner)
}

func writeMarkdownFindings(b *strings.Builder, st *model.PipelineState) {
	findings := st.OrderedFindings()
	if len(findings) == 0 {
		return
	}

	b.WriteString("## Findings\n\n")
	for _, f := range findings {
		fmt.Fprintf(b, "### %s\n\n", f.Ticker)
		if q := f.Quote; q != nil {
			fmt.Fprintf(b, "- **Price:** %s %s (%s%% today)\n", q.Price.StringFixed(2), q.Currency, q.ChangePercent.StringFixed(2))
		}
		fmt.Fprintf(b, "- **Sentiment:** %s\n", sentimentLine(f.Sentiment))
		if s := f.Sentiment; s != nil {
			if s.Summary != "" {
				fmt.Fprintf(b, "  - %s\n", s.Summary)
			}
			for _, e := range s.NotableEvents {
				fmt.Fprintf(b, "  - Event: %s\n", e)
			}
		}
		fmt.Fprintf(b, "- **Risk:** %s\n", riskLine(f.Risk))
		if r := f.Risk; r != nil {
			for _, rf := range r.RiskFactors {
				fmt.Fprintf(b, "  - Factor: %s\n", rf)
			}
		}
		if !f.HasEvidence() {
			b.WriteString("- _No market data was available._\n")
		}
		b.WriteString("\n")
	}
}

func writeMarkdownValidation(b *strings.Builder, v *model.ValidationOutcome) {
	if v == nil {
		return
	}
	result := "passed"
	if !v.Passed {
		result = "failed"
	}
	b.WriteString("## Validation\n\n")
	fmt.Fprintf(b, "- Result: %s after %d attempt(s)\n", result, v.Attempt)
	fmt.Fprintf(b, "- Faithfulness: %.2f\n", v.FaithfulnessScore)
	fmt.Fprintf(b, "- Relevancy: %.2f\n\n", v.RelevancyScore)
}

func writeMarkdownErrors(b *strings.Builder, errs []string) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("## Errors\n\n")
	for _, e := range errs {
		fmt.Fprintf(b, "- %s\n", e)
	}
	b.WriteString("\n")
}

func writeMarkdownLog(b *strings.Builder, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString("## Agent log\n\n")
	for i, l := range lines {
		fmt.Fprintf(b, "%d. %s\n", i+1, l)
	}
}
