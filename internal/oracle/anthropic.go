package oracle

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/resilience"
	"github.com/sells-group/stock-researcher/pkg/anthropic"
)

// AnthropicGenerator adapts the Messages API to Generator.
type AnthropicGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicGenerator creates a Generator for model.
func NewAnthropicGenerator(client anthropic.Client, model string, maxTokens int64, temperature float64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicGenerator{client: client, model: model, maxTokens: maxTokens, temperature: temperature}
}

// Generate sends a single-turn message.
func (g *AnthropicGenerator) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	temp := g.temperature

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, classifyAnthropic(err)
	}

	gen := &Generation{
		Text: strings.TrimSpace(resp.Text()),
		Usage: model.Usage{
			InputTokens:     resp.Usage.InputTokens,
			OutputTokens:    resp.Usage.OutputTokens,
			GenerationCalls: 1,
		},
	}
	if gen.Text == "" {
		return gen, ErrEmptyResponse
	}
	return gen, nil
}

func classifyAnthropic(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		// 529 is Anthropic's overloaded status.
		if resilience.IsTransientStatus(apiErr.StatusCode) || apiErr.StatusCode == 529 {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
	}
	return eris.Wrap(err, "oracle: generate")
}
