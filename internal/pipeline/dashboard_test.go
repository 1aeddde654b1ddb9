package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stock-researcher/internal/model"
)

func finding(ticker string, label model.SentimentLabel, risk int) *model.PerTickerFindings {
	return &model.PerTickerFindings{
		Ticker:    ticker,
		Sentiment: &model.Sentiment{Label: label},
		Risk:      &model.Risk{RiskScore: risk, Volatility: model.VolatilityMedium},
	}
}

func TestBuildDashboard_Winner(t *testing.T) {
	tests := []struct {
		name   string
		a, b   *model.PerTickerFindings
		winner string
	}{
		{
			name:   "better sentiment and lower risk",
			a:      finding("AAPL", model.SentimentPositive, 1),
			b:      finding("MSFT", model.SentimentNeutral, 8),
			winner: "AAPL",
		},
		{
			name:   "neutral beats negative",
			a:      finding("AAPL", model.SentimentNeutral, 3),
			b:      finding("MSFT", model.SentimentNegative, 9),
			winner: "AAPL",
		},
		{
			name:   "b has better sentiment",
			a:      finding("AAPL", model.SentimentNeutral, 3),
			b:      finding("MSFT", model.SentimentPositive, 9),
			winner: "MSFT",
		},
		{
			name:   "a riskier despite sentiment edge",
			a:      finding("AAPL", model.SentimentPositive, 7),
			b:      finding("MSFT", model.SentimentNeutral, 4),
			winner: "MSFT",
		},
		{
			name:   "equal sentiment goes to b",
			a:      finding("AAPL", model.SentimentNeutral, 1),
			b:      finding("MSFT", model.SentimentNeutral, 9),
			winner: "MSFT",
		},
		{
			name:   "equal risk with better sentiment goes to a",
			a:      finding("AAPL", model.SentimentPositive, 5),
			b:      finding("MSFT", model.SentimentNegative, 5),
			winner: "AAPL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := BuildDashboard(tt.a, tt.b)
			assert.Equal(t, tt.winner, d.Winner)
			assert.Equal(t, [2]string{tt.a.Ticker, tt.b.Ticker}, d.Tickers)
		})
	}
}

func TestBuildDashboard_ScoresFromLabels(t *testing.T) {
	// Sentiment (3,1) and risk (2,8) for (A,B).
	d := BuildDashboard(finding("A", model.SentimentPositive, 2), finding("B", model.SentimentNegative, 8))
	assert.Equal(t, "A", d.Winner)

	// Sentiment (2,3) and risk (1,9) for (A,B).
	d = BuildDashboard(finding("A", model.SentimentNeutral, 1), finding("B", model.SentimentPositive, 9))
	assert.Equal(t, "B", d.Winner)
	assert.Equal(t, BetterB, d.Rows[0].Better)
	assert.Equal(t, BetterA, d.Rows[1].Better)
}

func TestBuildDashboard_Rows(t *testing.T) {
	a := finding("AAPL", model.SentimentPositive, 3)
	a.Risk.Volatility = model.VolatilityLow
	b := finding("MSFT", model.SentimentPositive, 6)

	d := BuildDashboard(a, b)
	require.Len(t, d.Rows, 3)

	assert.Equal(t, model.DashboardRow{Metric: "Sentiment", A: "positive (3)", B: "positive (3)", Better: BetterTie}, d.Rows[0])
	assert.Equal(t, model.DashboardRow{Metric: "Risk score", A: "3/10", B: "6/10", Better: BetterA}, d.Rows[1])
	assert.Equal(t, model.DashboardRow{Metric: "Volatility", A: "low", B: "medium", Better: BetterA}, d.Rows[2])
	assert.Equal(t, "MSFT", d.Winner)
}

func TestBuildDashboard_MissingFindings(t *testing.T) {
	a := &model.PerTickerFindings{Ticker: "AAPL"}
	b := finding("MSFT", model.SentimentNegative, 5)

	d := BuildDashboard(a, b)
	assert.Equal(t, "neutral (2)", d.Rows[0].A)
	assert.Equal(t, BetterA, d.Rows[0].Better)
	assert.Equal(t, "5/10", d.Rows[1].A)
	assert.Equal(t, BetterTie, d.Rows[1].Better)
	assert.Equal(t, "unknown", d.Rows[2].A)
	assert.Equal(t, "AAPL", d.Winner)
}

func TestBuildDashboard_Deterministic(t *testing.T) {
	a := finding("AAPL", model.SentimentPositive, 4)
	b := finding("MSFT", model.SentimentNeutral, 4)
	assert.Equal(t, BuildDashboard(a, b), BuildDashboard(a, b))
}
