package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/oracle"
	"github.com/sells-group/stock-researcher/pkg/quote"
)

// maxSnippetLen caps each search result so one long page cannot crowd out
// the rest of the evidence.
const maxSnippetLen = 1500

// formatEvidence renders search results (and the quote, when present) as
// the plain-text evidence block analysis stages read.
func formatEvidence(ticker string, resp *oracle.SearchResponse, q *model.Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market data for %s\n", ticker)

	if q != nil {
		b.WriteString("\nMarket snapshot:\n")
		b.WriteString(formatQuote(q))
	}
	if answer := strings.TrimSpace(resp.Answer); answer != "" {
		fmt.Fprintf(&b, "\nSearch summary:\n%s\n", answer)
	}
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, strings.TrimSpace(r.Title))
		if r.URL != "" {
			fmt.Fprintf(&b, " (%s)", r.URL)
		}
		fmt.Fprintf(&b, "\n%s\n", truncate(strings.TrimSpace(r.Content), maxSnippetLen))
	}
	return strings.TrimSpace(b.String())
}

func formatQuote(q *model.Quote) string {
	var b strings.Builder
	if q.Name != "" {
		fmt.Fprintf(&b, "- Name: %s\n", q.Name)
	}
	currency := q.Currency
	if currency == "" {
		currency = "USD"
	}
	fmt.Fprintf(&b, "- Price: %s %s (%s%% today)\n", q.Price.StringFixed(2), currency, q.ChangePercent.StringFixed(2))
	if !q.FiftyTwoWeekHigh.IsZero() {
		fmt.Fprintf(&b, "- 52-week range: %s to %s\n", q.FiftyTwoWeekLow.StringFixed(2), q.FiftyTwoWeekHigh.StringFixed(2))
	}
	if q.Volume > 0 {
		fmt.Fprintf(&b, "- Volume: %d\n", q.Volume)
	}
	return b.String()
}

func quoteFromSnapshot(s *quote.Snapshot) *model.Quote {
	if s == nil {
		return nil
	}
	return &model.Quote{
		Name:             s.Name,
		Currency:         s.Currency,
		Price:            s.Price,
		ChangePercent:    s.ChangePercent,
		FiftyTwoWeekLow:  s.FiftyTwoWeekLow,
		FiftyTwoWeekHigh: s.FiftyTwoWeekHigh,
		Volume:           s.Volume,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// evidenceContext lists every ticker's evidence, in query order, for scorers.
func evidenceContext(st *model.PipelineState) []string {
	var out []string
	for _, f := range st.OrderedFindings() {
		if f.HasEvidence() {
			out = append(out, f.RawEvidence)
		}
	}
	return out
}

// findingDigest is the structured part of a ticker's findings.
type findingDigest struct {
	Ticker    string           `json:"ticker"`
	Sentiment *model.Sentiment `json:"sentiment,omitempty"`
	Risk      *model.Risk      `json:"risk,omitempty"`
	Quote     *model.Quote     `json:"quote,omitempty"`
}

func digest(f *model.PerTickerFindings) findingDigest {
	return findingDigest{Ticker: f.Ticker, Sentiment: f.Sentiment, Risk: f.Risk, Quote: f.Quote}
}
