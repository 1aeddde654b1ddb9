package pipeline

import (
	"fmt"

	"github.com/sells-group/stock-researcher/internal/model"
)

// Dashboard "better" values.
const (
	BetterA   = "A"
	BetterB   = "B"
	BetterTie = "tie"
)

// BuildDashboard compares two tickers deterministically. Missing sentiment
// scores as neutral and missing risk as unknown (5). A wins overall only
// when its sentiment is strictly higher and its risk no worse; otherwise B.
func BuildDashboard(a, b *model.PerTickerFindings) *model.Dashboard {
	sa, sb := a.SentimentScore(), b.SentimentScore()
	ra, rb := a.RiskScore(), b.RiskScore()

	winner := b.Ticker
	if sa > sb && ra <= rb {
		winner = a.Ticker
	}

	return &model.Dashboard{
		Tickers: [2]string{a.Ticker, b.Ticker},
		Rows: []model.DashboardRow{
			{
				Metric: "Sentiment",
				A:      sentimentCell(a),
				B:      sentimentCell(b),
				Better: better(sa, sb, true),
			},
			{
				Metric: "Risk score",
				A:      fmt.Sprintf("%d/10", ra),
				B:      fmt.Sprintf("%d/10", rb),
				Better: better(ra, rb, false),
			},
			{
				Metric: "Volatility",
				A:      volatilityCell(a),
				B:      volatilityCell(b),
				Better: better(volatilityRank(a), volatilityRank(b), false),
			},
		},
		Winner: winner,
	}
}

// better picks the column that wins a row. Equal values tie.
func better(a, b int, higherWins bool) string {
	switch {
	case a == b:
		return BetterTie
	case (a > b) == higherWins:
		return BetterA
	default:
		return BetterB
	}
}

func sentimentCell(f *model.PerTickerFindings) string {
	label := model.SentimentNeutral
	if f.Sentiment != nil {
		label = f.Sentiment.Label
	}
	return fmt.Sprintf("%s (%d)", label, f.SentimentScore())
}

func volatilityCell(f *model.PerTickerFindings) string {
	if f.Risk == nil {
		return "unknown"
	}
	return string(f.Risk.Volatility)
}

// volatilityRank orders buckets low to high; unknown sits with medium.
func volatilityRank(f *model.PerTickerFindings) int {
	if f.Risk == nil {
		return 2
	}
	switch f.Risk.Volatility {
	case model.VolatilityLow:
		return 1
	case model.VolatilityHigh:
		return 3
	default:
		return 2
	}
}

