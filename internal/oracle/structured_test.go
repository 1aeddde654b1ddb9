package oracle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/oracle"
	"github.com/sells-group/stock-researcher/internal/oracle/mocks"
)

var tickerSchema = &oracle.Schema{
	Name: "query",
	Fields: []oracle.Field{
		{Name: "tickers", Type: oracle.TypeStringArray},
		{Name: "is_comparison", Type: oracle.TypeBoolean},
	},
}

type tickerDoc struct {
	Tickers      []string `json:"tickers"`
	IsComparison bool     `json:"is_comparison"`
}

func TestDecodeObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		want    map[string]any
		wantErr bool
	}{
		{name: "plain", text: `{"a": 1}`, want: map[string]any{"a": float64(1)}},
		{name: "fenced", text: "```json\n{\"a\": 1}\n```", want: map[string]any{"a": float64(1)}},
		{name: "prose around", text: `Sure! Here it is: {"a": "x}"} hope that helps {`, want: map[string]any{"a": "x}"}},
		{name: "nested", text: `result: {"a": {"b": 2}} done`, want: map[string]any{"a": map[string]any{"b": float64(2)}}},
		{name: "empty", text: "   ", wantErr: true},
		{name: "no object", text: "no json here", wantErr: true},
		{name: "malformed", text: `{"a": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := oracle.DecodeObject(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateInto_Success(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r oracle.GenerateRequest) bool {
		return r.Schema == tickerSchema
	})).Return(&oracle.Generation{
		Text:  "```json\n{\"tickers\": [\"AAPL\", \"MSFT\"], \"is_comparison\": true}\n```",
		Usage: model.Usage{InputTokens: 10, OutputTokens: 5, GenerationCalls: 1},
	}, nil)

	var out tickerDoc
	g, err := oracle.GenerateInto(context.Background(), gen, oracle.GenerateRequest{
		Prompt: "Compare Apple and Microsoft",
		Schema: tickerSchema,
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, out.Tickers)
	assert.True(t, out.IsComparison)
	assert.Equal(t, int64(10), g.Usage.InputTokens)

	req := gen.Calls[0].Arguments.Get(1).(oracle.GenerateRequest)
	assert.Contains(t, req.Prompt, "Compare Apple and Microsoft")
	assert.Contains(t, req.Prompt, "Respond with a single JSON object")
}

func TestGenerateInto_SchemaMismatchKeepsUsage(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.Anything).Return(&oracle.Generation{
		Text:  `{"tickers": "AAPL"}`,
		Usage: model.Usage{OutputTokens: 3, GenerationCalls: 1},
	}, nil)

	var out tickerDoc
	g, err := oracle.GenerateInto(context.Background(), gen, oracle.GenerateRequest{Schema: tickerSchema}, &out)
	require.Error(t, err)
	require.NotNil(t, g)
	assert.Equal(t, 1, g.Usage.GenerationCalls)
}

func TestGenerateInto_OracleError(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	var out tickerDoc
	_, err := oracle.GenerateInto(context.Background(), gen, oracle.GenerateRequest{Schema: tickerSchema}, &out)
	assert.EqualError(t, err, "down")
}

func TestGenerateInto_RequiresSchema(t *testing.T) {
	t.Parallel()

	var out tickerDoc
	_, err := oracle.GenerateInto(context.Background(), mocks.NewMockGenerator(t), oracle.GenerateRequest{}, &out)
	assert.Error(t, err)
}
