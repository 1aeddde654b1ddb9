package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/oracle"
)

const sentimentSystem = "You are a market news analyst. Judge the tone of recent news about a stock " +
	"using only the evidence provided."

var sentimentSchema = &oracle.Schema{
	Name: "sentiment",
	Fields: []oracle.Field{
		{Name: "label", Type: oracle.TypeString, Enum: []string{"positive", "neutral", "negative"}, Description: "Overall news sentiment."},
		{Name: "notable_events", Type: oracle.TypeStringArray, Description: "Up to 5 specific recent events from the evidence."},
		{Name: "summary", Type: oracle.TypeString, Description: "Two or three sentences on the news picture."},
		{Name: "confidence", Type: oracle.TypeNumber, Description: "Confidence in the label between 0 and 1."},
		{Name: "data_quality", Type: oracle.TypeString, Enum: []string{"high", "medium", "low"}, Description: "How recent and specific the evidence is."},
	},
}

type sentimentDoc struct {
	Label         string   `json:"label"`
	NotableEvents []string `json:"notable_events"`
	Summary       string   `json:"summary"`
	Confidence    float64  `json:"confidence"`
	DataQuality   string   `json:"data_quality"`
}

func (d sentimentDoc) toModel() *model.Sentiment {
	label, ok := model.ParseSentimentLabel(d.Label)
	if !ok {
		label = model.SentimentNeutral
	}
	quality, ok := model.ParseDataQuality(d.DataQuality)
	if !ok {
		quality = model.QualityLow
	}
	events := make([]string, 0, len(d.NotableEvents))
	for _, e := range d.NotableEvents {
		if e = strings.TrimSpace(e); e != "" {
			events = append(events, e)
		}
	}
	return &model.Sentiment{
		Label:         label,
		NotableEvents: events,
		Summary:       strings.TrimSpace(d.Summary),
		Confidence:    clamp01(d.Confidence),
		DataQuality:   quality,
	}
}

// sentiment reads news tone for every ticker with evidence.
func (p *Pipeline) sentiment(ctx context.Context, st *model.PipelineState) *model.PipelineState {
	for _, f := range st.OrderedFindings() {
		p.analyzeSentiment(ctx, st, f)
	}
	return st
}

func (p *Pipeline) analyzeSentiment(ctx context.Context, st *model.PipelineState, f *model.PerTickerFindings) {
	if !f.HasEvidence() {
		st.Logf("%s: no data to analyze for sentiment", f.Ticker)
		return
	}

	var doc sentimentDoc
	g, err := oracle.GenerateInto(ctx, p.gen, oracle.GenerateRequest{
		System:    sentimentSystem,
		Prompt:    fmt.Sprintf("Analyze news sentiment for %s.\n\nEVIDENCE:\n%s", f.Ticker, f.RawEvidence),
		MaxTokens: 768,
		Schema:    sentimentSchema,
	}, &doc)
	addUsage(st, g)
	if err != nil {
		st.Errorf("sentiment analysis failed for %s: %v", f.Ticker, err)
		f.Sentiment = model.DefaultSentiment()
		return
	}

	s := doc.toModel()
	f.Sentiment = s
	st.Logf("%s sentiment: %s (confidence %.2f, data quality %s)", f.Ticker, s.Label, s.Confidence, s.DataQuality)

	if p.sentimentNeedsCheck(s) {
		p.selfCheck(ctx, st, f.Ticker, "sentiment", s.Summary+" Events: "+strings.Join(s.NotableEvents, "; "), f.RawEvidence)
	}
}

func (p *Pipeline) sentimentNeedsCheck(s *model.Sentiment) bool {
	return s.Confidence < p.cfg.ConfidenceThreshold ||
		s.DataQuality == model.QualityLow ||
		len(s.NotableEvents) == 0
}

// selfCheck scores an analysis against its evidence. The analysis is kept
// whatever the outcome; a low score or a scorer failure only adds a warning.
func (p *Pipeline) selfCheck(ctx context.Context, st *model.PipelineState, ticker, kind, output, evidence string) {
	score, err := p.faithfulness.Score(ctx, oracle.ScoreRequest{
		Input:     fmt.Sprintf("%s analysis of %s", kind, ticker),
		Output:    output,
		Context:   []string{evidence},
		Threshold: p.cfg.AnalysisFaithfulnessThreshold,
	})
	addJudgeUsage(st, score)
	switch {
	case err != nil:
		st.Logf("WARNING: could not verify %s analysis for %s: %v; keeping result", kind, ticker, err)
	case score.Value < p.cfg.AnalysisFaithfulnessThreshold:
		st.Logf("WARNING: %s analysis for %s scored %.2f faithfulness (threshold %.2f); keeping result",
			kind, ticker, score.Value, p.cfg.AnalysisFaithfulnessThreshold)
	default:
		st.Logf("%s analysis for %s verified (faithfulness %.2f)", kind, ticker, score.Value)
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
