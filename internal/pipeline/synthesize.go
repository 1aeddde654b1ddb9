package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/oracle"
)

// StrictGroundingPrefix leads the synthesis prompt on the retry pass.
const StrictGroundingPrefix = "Use only information explicitly stated in the collected data."

const synthesisSystem = "You are a senior equity research analyst writing for investors. " +
	"Be specific, cite figures from the collected data and avoid speculation."

// synthesize writes the executive summary, and the dashboard for comparisons.
func (p *Pipeline) synthesize(ctx context.Context, st *model.PipelineState) *model.PipelineState {
	findings := st.OrderedFindings()
	comparison := st.Query.IsComparison() && len(findings) == 2

	st.Dashboard = nil
	if comparison {
		st.Dashboard = BuildDashboard(findings[0], findings[1])
		st.Logf("comparison dashboard: %s leads", st.Dashboard.Winner)
	}

	prompt := synthesisPrompt(st, findings, comparison)
	if st.NeedsRetry {
		prompt = StrictGroundingPrefix + "\n\n" + prompt
		st.Logf("rewriting summary with strict grounding")
	}

	g, err := p.gen.Generate(ctx, oracle.GenerateRequest{
		System:    synthesisSystem,
		Prompt:    prompt,
		MaxTokens: 1024,
	})
	addUsage(st, g)
	if err != nil {
		st.Errorf("synthesis failed: %v", err)
		st.Narrative = fallbackNarrative(findings, st.Dashboard)
		return st
	}

	st.Narrative = strings.TrimSpace(g.Text)
	st.Logf("executive summary written (%d words)", len(strings.Fields(st.Narrative)))
	return st
}

func synthesisPrompt(st *model.PipelineState, findings []*model.PerTickerFindings, comparison bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "USER REQUEST:\n%s\n\n", st.Query.RawText)

	if comparison {
		b.WriteString("Write an executive summary of about 200 words comparing the two stocks below. ")
		b.WriteString("Contrast their news sentiment and risk, then recommend one. ")
		fmt.Fprintf(&b, "The scored dashboard favors %s; your recommendation must agree with it.\n\n", st.Dashboard.Winner)
		b.WriteString("DASHBOARD:\n")
		for _, r := range st.Dashboard.Rows {
			fmt.Fprintf(&b, "- %s: %s=%s, %s=%s, better=%s\n",
				r.Metric, st.Dashboard.Tickers[0], r.A, st.Dashboard.Tickers[1], r.B, r.Better)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Write an executive summary of about 150 words covering the stock's news sentiment, ")
		b.WriteString("notable events, risk profile and an overall recommendation.\n\n")
	}

	b.WriteString("COLLECTED DATA:\n")
	for _, f := range findings {
		b.WriteString(findingBrief(f))
		b.WriteString("\n")
	}
	return b.String()
}

// findingBrief renders one ticker's findings for the synthesis prompt.
func findingBrief(f *model.PerTickerFindings) string {
	raw, err := json.MarshalIndent(digest(f), "", "  ")
	if err != nil {
		raw = []byte(f.Ticker)
	}
	evidence := f.RawEvidence
	if evidence == "" {
		evidence = model.DataUnavailable
	}
	return fmt.Sprintf("### %s\n%s\nEvidence:\n%s\n", f.Ticker, raw, evidence)
}

// fallbackNarrative summarizes findings without the oracle.
func fallbackNarrative(findings []*model.PerTickerFindings, d *model.Dashboard) string {
	var b strings.Builder
	b.WriteString("An automated summary could not be generated. Key findings:\n")
	for _, f := range findings {
		label := model.SentimentNeutral
		confidence := 0.0
		if f.Sentiment != nil {
			label = f.Sentiment.Label
			confidence = f.Sentiment.Confidence
		}
		volatility := "unknown"
		if f.Risk != nil {
			volatility = string(f.Risk.Volatility)
		}
		fmt.Fprintf(&b, "- %s: %s sentiment (confidence %.2f); risk score %d/10 with %s volatility.\n",
			f.Ticker, label, confidence, f.RiskScore(), volatility)
	}
	if d != nil {
		fmt.Fprintf(&b, "On sentiment and risk scores, %s has the edge.\n", d.Winner)
	}
	return strings.TrimSpace(b.String())
}
