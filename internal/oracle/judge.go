package oracle

import (
	"context"
	"fmt"
	"strings"
)

// Metric names a judged quality.
type Metric string

const (
	MetricFaithfulness Metric = "faithfulness"
	MetricRelevancy    Metric = "relevancy"
)

var verdictSchema = &Schema{
	Name: "verdict",
	Fields: []Field{
		{Name: "score", Type: TypeNumber, Description: "Grade between 0 and 1."},
		{Name: "reason", Type: TypeString, Description: "One sentence explaining the grade."},
	},
}

type verdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Judge is a Scorer that asks the generation oracle to grade text.
type Judge struct {
	gen    Generator
	metric Metric
}

// NewFaithfulnessJudge grades how well Output's claims are supported by Context.
func NewFaithfulnessJudge(gen Generator) *Judge {
	return &Judge{gen: gen, metric: MetricFaithfulness}
}

// NewRelevancyJudge grades how well Output answers Input.
func NewRelevancyJudge(gen Generator) *Judge {
	return &Judge{gen: gen, metric: MetricRelevancy}
}

// Score grades req. Passed uses an inclusive threshold.
func (j *Judge) Score(ctx context.Context, req ScoreRequest) (*Score, error) {
	var v verdict
	g, err := GenerateInto(ctx, j.gen, GenerateRequest{
		System:    "You are a strict evaluator of financial research text. Grade only what you are asked to grade.",
		Prompt:    j.prompt(req),
		MaxTokens: 512,
		Schema:    verdictSchema,
	}, &v)
	score := &Score{}
	if g != nil {
		score.Usage = g.Usage
	}
	if err != nil {
		return score, err
	}

	score.Value = clamp01(v.Score)
	score.Reason = strings.TrimSpace(v.Reason)
	score.Passed = score.Value >= req.Threshold
	return score, nil
}

func (j *Judge) prompt(req ScoreRequest) string {
	var b strings.Builder
	switch j.metric {
	case MetricFaithfulness:
		b.WriteString("Break the OUTPUT into factual claims. Score is the fraction of claims directly supported by the CONTEXT. ")
		b.WriteString("Claims that contradict or go beyond the CONTEXT count as unsupported.\n\n")
	case MetricRelevancy:
		b.WriteString("Score how completely and directly the OUTPUT addresses the INPUT request. ")
		b.WriteString("Off-topic or padded statements lower the score.\n\n")
	}
	fmt.Fprintf(&b, "INPUT:\n%s\n\nOUTPUT:\n%s\n", req.Input, req.Output)
	if j.metric == MetricFaithfulness {
		b.WriteString("\nCONTEXT:\n")
		for i, c := range req.Context {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
		}
	}
	return b.String()
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
