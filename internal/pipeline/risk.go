package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/oracle"
)

const riskSystem = "You are a risk analyst for equity investors. Assess risk using only the evidence provided; " +
	"report beta as null when the evidence does not state it."

var riskSchema = &oracle.Schema{
	Name: "risk",
	Fields: []oracle.Field{
		{Name: "volatility", Type: oracle.TypeString, Enum: []string{"high", "medium", "low"}, Description: "Volatility bucket."},
		{Name: "beta", Type: oracle.TypeNumber, Nullable: true, Description: "Beta as stated in the evidence, or null."},
		{Name: "risk_factors", Type: oracle.TypeStringArray, Description: "Up to 5 specific risk factors."},
		{Name: "risk_score", Type: oracle.TypeNumber, Description: "Overall risk from 1 (lowest) to 10 (highest)."},
		{Name: "confidence", Type: oracle.TypeNumber, Description: "Confidence in the assessment between 0 and 1."},
		{Name: "completeness", Type: oracle.TypeString, Enum: []string{"complete", "partial", "limited"}, Description: "How much of the risk picture the evidence covers."},
	},
}

type riskDoc struct {
	Volatility   string   `json:"volatility"`
	Beta         *float64 `json:"beta"`
	RiskFactors  []string `json:"risk_factors"`
	RiskScore    float64  `json:"risk_score"`
	Confidence   float64  `json:"confidence"`
	Completeness string   `json:"completeness"`
}

func (d riskDoc) toModel() *model.Risk {
	vol, ok := model.ParseVolatility(d.Volatility)
	if !ok {
		vol = model.VolatilityMedium
	}
	comp, ok := model.ParseCompleteness(d.Completeness)
	if !ok {
		comp = model.CompletenessLimited
	}
	factors := make([]string, 0, len(d.RiskFactors))
	for _, rf := range d.RiskFactors {
		if rf = strings.TrimSpace(rf); rf != "" {
			factors = append(factors, rf)
		}
	}
	return &model.Risk{
		Volatility:   vol,
		Beta:         d.Beta,
		RiskFactors:  factors,
		RiskScore:    clampRiskScore(d.RiskScore),
		Confidence:   clamp01(d.Confidence),
		Completeness: comp,
	}
}

// clampRiskScore rounds to the nearest integer within 1..10.
func clampRiskScore(v float64) int {
	n := int(math.Round(v))
	switch {
	case n < 1:
		return 1
	case n > 10:
		return 10
	default:
		return n
	}
}

// risk assesses every ticker with evidence.
func (p *Pipeline) risk(ctx context.Context, st *model.PipelineState) *model.PipelineState {
	for _, f := range st.OrderedFindings() {
		p.assessRisk(ctx, st, f)
	}
	return st
}

func (p *Pipeline) assessRisk(ctx context.Context, st *model.PipelineState, f *model.PerTickerFindings) {
	if !f.HasEvidence() {
		st.Logf("%s: no data to analyze for risk", f.Ticker)
		return
	}

	var doc riskDoc
	g, err := oracle.GenerateInto(ctx, p.gen, oracle.GenerateRequest{
		System:    riskSystem,
		Prompt:    fmt.Sprintf("Assess investment risk for %s.\n\nEVIDENCE:\n%s", f.Ticker, f.RawEvidence),
		MaxTokens: 768,
		Schema:    riskSchema,
	}, &doc)
	addUsage(st, g)
	if err != nil {
		st.Errorf("risk assessment failed for %s: %v", f.Ticker, err)
		f.Risk = model.DefaultRisk()
		return
	}

	r := doc.toModel()
	f.Risk = r
	st.Logf("%s risk: %d/10, %s volatility (confidence %.2f, %s data)", f.Ticker, r.RiskScore, r.Volatility, r.Confidence, r.Completeness)

	if p.riskNeedsCheck(r) {
		p.selfCheck(ctx, st, f.Ticker, "risk", riskOutput(r), f.RawEvidence)
	}
}

func (p *Pipeline) riskNeedsCheck(r *model.Risk) bool {
	return r.Confidence < p.cfg.ConfidenceThreshold ||
		r.Completeness == model.CompletenessPartial ||
		r.Completeness == model.CompletenessLimited ||
		r.Beta == nil
}

func riskOutput(r *model.Risk) string {
	beta := "not stated"
	if r.Beta != nil {
		beta = fmt.Sprintf("%.2f", *r.Beta)
	}
	return fmt.Sprintf("Risk score %d/10, %s volatility, beta %s. Factors: %s",
		r.RiskScore, r.Volatility, beta, strings.Join(r.RiskFactors, "; "))
}
