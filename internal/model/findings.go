package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DataUnavailable marks a ticker whose evidence could not be gathered.
const DataUnavailable = "data unavailable"

// SentimentLabel is the overall tone of the news around a ticker.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Score maps a label onto the dashboard scale: positive 3, neutral 2, negative 1.
func (l SentimentLabel) Score() int {
	switch l {
	case SentimentPositive:
		return 3
	case SentimentNegative:
		return 1
	default:
		return 2
	}
}

// DataQuality rates the source data behind a sentiment reading.
type DataQuality string

const (
	QualityHigh   DataQuality = "high"
	QualityMedium DataQuality = "medium"
	QualityLow    DataQuality = "low"
)

// Volatility is a coarse volatility bucket.
type Volatility string

const (
	VolatilityHigh   Volatility = "high"
	VolatilityMedium Volatility = "medium"
	VolatilityLow    Volatility = "low"
)

// Completeness rates how much of the risk picture the evidence covered.
type Completeness string

const (
	CompletenessComplete Completeness = "complete"
	CompletenessPartial  Completeness = "partial"
	CompletenessLimited  Completeness = "limited"
)

// Sentiment holds the structured sentiment reading for one ticker.
type Sentiment struct {
	Label         SentimentLabel `json:"label" yaml:"label"`
	NotableEvents []string       `json:"notable_events" yaml:"notable_events"`
	Summary       string         `json:"summary" yaml:"summary"`
	Confidence    float64        `json:"confidence" yaml:"confidence"`
	DataQuality   DataQuality    `json:"data_quality" yaml:"data_quality"`
}

// DefaultSentiment is substituted when sentiment extraction fails.
func DefaultSentiment() *Sentiment {
	return &Sentiment{
		Label:         SentimentNeutral,
		NotableEvents: []string{"analysis failed"},
		Summary:       "Sentiment analysis failed.",
		Confidence:    0,
		DataQuality:   QualityLow,
	}
}

// Risk holds the structured risk assessment for one ticker.
type Risk struct {
	Volatility   Volatility   `json:"volatility" yaml:"volatility"`
	Beta         *float64     `json:"beta" yaml:"beta"`
	RiskFactors  []string     `json:"risk_factors" yaml:"risk_factors"`
	RiskScore    int          `json:"risk_score" yaml:"risk_score"`
	Confidence   float64      `json:"confidence" yaml:"confidence"`
	Completeness Completeness `json:"completeness" yaml:"completeness"`
}

// UnknownRiskScore is the midpoint used when risk could not be assessed.
// It means "unknown", not a measured moderate risk.
const UnknownRiskScore = 5

// DefaultRisk is substituted when risk extraction fails.
func DefaultRisk() *Risk {
	return &Risk{
		Volatility:   VolatilityMedium,
		RiskFactors:  []string{"analysis failed"},
		RiskScore:    UnknownRiskScore,
		Confidence:   0,
		Completeness: CompletenessLimited,
	}
}

// Quote is a point-in-time market snapshot used to enrich evidence.
type Quote struct {
	Name             string          `json:"name,omitempty" yaml:"name,omitempty"`
	Currency         string          `json:"currency,omitempty" yaml:"currency,omitempty"`
	Price            decimal.Decimal `json:"price" yaml:"price"`
	ChangePercent    decimal.Decimal `json:"change_percent" yaml:"change_percent"`
	FiftyTwoWeekLow  decimal.Decimal `json:"fifty_two_week_low" yaml:"fifty_two_week_low"`
	FiftyTwoWeekHigh decimal.Decimal `json:"fifty_two_week_high" yaml:"fifty_two_week_high"`
	Volume           int64           `json:"volume" yaml:"volume"`
}

// PerTickerFindings accumulates everything learned about a single ticker.
type PerTickerFindings struct {
	Ticker      string     `json:"ticker" yaml:"ticker"`
	RawEvidence string     `json:"raw_evidence,omitempty" yaml:"raw_evidence,omitempty"`
	Quote       *Quote     `json:"quote,omitempty" yaml:"quote,omitempty"`
	Sentiment   *Sentiment `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`
	Risk        *Risk      `json:"risk,omitempty" yaml:"risk,omitempty"`
}

// HasEvidence reports whether real evidence (not the sentinel) was gathered.
func (f *PerTickerFindings) HasEvidence() bool {
	if f == nil {
		return false
	}
	ev := strings.TrimSpace(f.RawEvidence)
	return ev != "" && ev != DataUnavailable
}

// SentimentScore returns the dashboard sentiment score; missing sentiment counts as neutral.
func (f *PerTickerFindings) SentimentScore() int {
	if f == nil || f.Sentiment == nil {
		return SentimentNeutral.Score()
	}
	return f.Sentiment.Label.Score()
}

// RiskScore returns the risk score; missing risk counts as unknown.
func (f *PerTickerFindings) RiskScore() int {
	if f == nil || f.Risk == nil {
		return UnknownRiskScore
	}
	return f.Risk.RiskScore
}

// ParseSentimentLabel normalizes free-form labels. Unknown values are rejected.
func ParseSentimentLabel(s string) (SentimentLabel, bool) {
	switch l := SentimentLabel(strings.ToLower(strings.TrimSpace(s))); l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return l, true
	}
	return "", false
}

// ParseDataQuality normalizes a data quality rating.
func ParseDataQuality(s string) (DataQuality, bool) {
	switch q := DataQuality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityHigh, QualityMedium, QualityLow:
		return q, true
	}
	return "", false
}

// ParseVolatility normalizes a volatility bucket.
func ParseVolatility(s string) (Volatility, bool) {
	switch v := Volatility(strings.ToLower(strings.TrimSpace(s))); v {
	case VolatilityHigh, VolatilityMedium, VolatilityLow:
		return v, true
	}
	return "", false
}

// ParseCompleteness normalizes a completeness rating.
func ParseCompleteness(s string) (Completeness, bool) {
	switch c := Completeness(strings.ToLower(strings.TrimSpace(s))); c {
	case CompletenessComplete, CompletenessPartial, CompletenessLimited:
		return c, true
	}
	return "", false
}
