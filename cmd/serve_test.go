package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/monitoring"
	"github.com/sells-group/stock-researcher/internal/pipeline"
	"github.com/sells-group/stock-researcher/internal/resilience"
	"github.com/sells-group/stock-researcher/internal/store"
	"github.com/sells-group/stock-researcher/internal/store/mocks"
)

// fakeResearcher returns a canned state for every query.
type fakeResearcher struct {
	queries []string
	err     error
	noState bool
}

func (f *fakeResearcher) Run(_ context.Context, raw string) (*pipeline.Result, error) {
	f.queries = append(f.queries, raw)
	if f.noState {
		return nil, f.err
	}
	st := model.NewPipelineState(raw)
	st.Query = model.NewQuery(raw, []string{"AAPL"})
	st.Findings["AAPL"] = &model.PerTickerFindings{Ticker: "AAPL", RawEvidence: "Market data for AAPL"}
	st.Narrative = "AAPL <b>looks</b> steady."
	st.Validation = &model.ValidationOutcome{Passed: true, FaithfulnessScore: 0.9, RelevancyScore: 0.8, Attempt: 1}
	st.Logf("parsed query: AAPL (single)")
	status := model.RunStatusComplete
	if f.err != nil {
		status = model.RunStatusFailed
	}
	return &pipeline.Result{
		RunID:   "run-1",
		State:   st,
		Status:  status,
		CostUSD: 0.02,
		Elapsed: 1500 * time.Millisecond,
	}, f.err
}

func serve(t *testing.T, h http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}})

	rr := serve(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Breakers)
}

func TestRouter_HealthReportsBreakers(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.BreakerConfig{Failures: 1, ResetTimeout: time.Hour})
	breakers.Get(oracleGeneration)
	search := breakers.Get(oracleSearch)
	_, err := resilience.Call(context.Background(), search, func(context.Context) (int, error) {
		return 0, errors.New("bad request")
	})
	require.Error(t, err)

	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}, Breakers: breakers})
	rr := serve(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{oracleGeneration: "closed", oracleSearch: "open"}, body.Breakers)
}

func TestRouter_IndexForm(t *testing.T) {
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}})

	rr := serve(t, h, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), `action="/research"`)
	assert.Contains(t, rr.Body.String(), `name="query"`)
}

func TestRouter_Metrics(t *testing.T) {
	monitoring.ObserveValidation("passed")
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}})

	rr := serve(t, h, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRouter_ResearchForm(t *testing.T) {
	res := &fakeResearcher{}
	h := buildRouter(serverDeps{Researcher: res})

	form := url.Values{"query": {"How is AAPL doing?"}}
	rr := serve(t, h, http.MethodPost, "/research", []byte(form.Encode()), "application/x-www-form-urlencoded")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	body := rr.Body.String()
	assert.Contains(t, body, `<pre style="white-space: pre-wrap">`)
	assert.Contains(t, body, "# Stock research: AAPL")
	// Narrative text is escaped, not interpreted.
	assert.Contains(t, body, "AAPL &lt;b&gt;looks&lt;/b&gt; steady.")
	assert.Equal(t, []string{"How is AAPL doing?"}, res.queries)
}

func TestRouter_ResearchForm_EmptyQuery(t *testing.T) {
	res := &fakeResearcher{}
	h := buildRouter(serverDeps{Researcher: res})

	rr := serve(t, h, http.MethodPost, "/research", []byte("query=+"), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, res.queries)
}

func TestRouter_ResearchAPI(t *testing.T) {
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}})

	rr := serve(t, h, http.MethodPost, "/api/research", []byte(`{"query":"How is AAPL doing?"}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code)

	var body researchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, model.RunStatusComplete, body.Status)
	assert.Equal(t, int64(1500), body.ElapsedMs)
	require.NotNil(t, body.State)
	assert.Equal(t, []string{"AAPL"}, body.State.Query.Tickers)
	assert.Contains(t, body.Markdown, "## Summary")
	assert.Empty(t, body.Error)
}

func TestRouter_ResearchAPI_BadRequests(t *testing.T) {
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}})

	rr := serve(t, h, http.MethodPost, "/api/research", []byte(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")

	rr = serve(t, h, http.MethodPost, "/api/research", []byte(`{"query":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "query is required")
}

func TestRouter_ResearchAPI_RunError(t *testing.T) {
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{err: errors.New("step limit exceeded")}})

	rr := serve(t, h, http.MethodPost, "/api/research", []byte(`{"query":"AAPL"}`), "application/json")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body researchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "step limit exceeded", body.Error)
	assert.NotNil(t, body.State)

	h = buildRouter(serverDeps{Researcher: &fakeResearcher{noState: true, err: errors.New("boom")}})
	rr = serve(t, h, http.MethodPost, "/api/research", []byte(`{"query":"AAPL"}`), "application/json")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "research failed")
}

func TestRouter_HistoryDisabled(t *testing.T) {
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}})

	for _, path := range []string{"/api/runs", "/api/runs/abc", "/api/stats"} {
		rr := serve(t, h, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}
}

func TestRouter_ListRuns(t *testing.T) {
	st := mocks.NewMockStore(t)
	now := time.Now().UTC()
	runs := []model.Run{{
		ID:        "run-1",
		Query:     "AAPL",
		Status:    model.RunStatusComplete,
		Result:    &model.RunResult{Tickers: []string{"AAPL"}, State: model.NewPipelineState("AAPL")},
		CreatedAt: now,
	}}
	st.On("ListRuns", mock.Anything, store.RunFilter{Status: model.RunStatusComplete, Ticker: "AAPL", Limit: 10}).
		Return(runs, nil)

	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}, Runs: st})

	rr := serve(t, h, http.MethodGet, "/api/runs?status=complete&ticker=AAPL&limit=10", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "run-1", got[0].ID)
	require.NotNil(t, got[0].Result)
	assert.Nil(t, got[0].Result.State)
	// The stored record is untouched.
	assert.NotNil(t, runs[0].Result.State)
}

func TestRouter_ListRuns_BadLimit(t *testing.T) {
	st := mocks.NewMockStore(t)
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}, Runs: st})

	rr := serve(t, h, http.MethodGet, "/api/runs?limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_GetRun(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.On("GetRun", mock.Anything, "run-1").Return(&model.Run{ID: "run-1", Query: "AAPL", Status: model.RunStatusComplete}, nil)
	st.On("ListStages", mock.Anything, "run-1").Return([]model.StageRecord{
		{RunID: "run-1", Step: 1, Name: "parse", Next: "gather"},
	}, nil)
	st.On("GetRun", mock.Anything, "missing").Return(nil, store.ErrNotFound)

	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}, Runs: st})

	rr := serve(t, h, http.MethodGet, "/api/runs/run-1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body["id"])
	stages, ok := body["stages"].([]any)
	require.True(t, ok)
	assert.Len(t, stages, 1)

	rr = serve(t, h, http.MethodGet, "/api/runs/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_Stats(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.On("ListRuns", mock.Anything, mock.AnythingOfType("store.RunFilter")).Return([]model.Run{
		{ID: "1", Status: model.RunStatusComplete, Result: &model.RunResult{Passed: true, Attempts: 1, CostUSD: 0.1}},
		{ID: "2", Status: model.RunStatusFailed},
	}, nil)

	h := buildRouter(serverDeps{
		Researcher:    &fakeResearcher{},
		Runs:          st,
		Stats:         monitoring.NewCollector(st),
		StatsLookback: 24,
	})

	rr := serve(t, h, http.MethodGet, "/api/stats?hours=0", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsFailed)

	rr = serve(t, h, http.MethodGet, "/api/stats?hours=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_CORS(t *testing.T) {
	h := buildRouter(serverDeps{Researcher: &fakeResearcher{}, AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/research", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost))
}
