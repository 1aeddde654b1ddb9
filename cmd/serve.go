package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/monitoring"
	"github.com/sells-group/stock-researcher/internal/pipeline"
	"github.com/sells-group/stock-researcher/internal/report"
	"github.com/sells-group/stock-researcher/internal/resilience"
	"github.com/sells-group/stock-researcher/internal/store"
)

// maxQueryBytes bounds request bodies on the research endpoints.
const maxQueryBytes = 16 << 10

var servePort int

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Start the research web server",
	Annotations: oracleAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var collector *monitoring.Collector
		if env.Store != nil {
			collector = monitoring.NewCollector(env.Store)
			if cfg.Monitoring.WebhookURL != "" {
				checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
				go checker.Run(ctx)
			}
		}

		router := buildRouter(serverDeps{
			Researcher:     env.Pipeline,
			Breakers:       env.Breakers,
			Runs:           env.Store,
			Stats:          collector,
			StatsLookback:  cfg.Monitoring.LookbackWindowHours,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// researcher runs one research request. *pipeline.Pipeline satisfies it.
type researcher interface {
	Run(ctx context.Context, raw string) (*pipeline.Result, error)
}

// runReader is the read side of the run history.
type runReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	ListStages(ctx context.Context, runID string) ([]model.StageRecord, error)
}

// serverDeps are the collaborators behind the HTTP routes. Runs and Stats
// may be nil when history is disabled.
type serverDeps struct {
	Researcher     researcher
	Breakers       *resilience.Breakers
	Runs           runReader
	Stats          *monitoring.Collector
	StatsLookback  int
	AllowedOrigins []string
}

// buildRouter registers every route on a chi router.
func buildRouter(d serverDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", handleIndex)
	r.Get("/health", handleHealth(d.Breakers))
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/research", handleResearchForm(d.Researcher))
	r.Route("/api", func(r chi.Router) {
		r.Post("/research", handleResearchAPI(d.Researcher))
		r.Get("/runs", handleListRuns(d.Runs))
		r.Get("/runs/{id}", handleGetRun(d.Runs))
		r.Get("/stats", handleStats(d.Stats, d.StatsLookback))
	})
	return r
}

const indexHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Stock researcher</title></head>
<body>
<h1>Stock researcher</h1>
<form method="post" action="/research">
<input type="text" name="query" size="60" placeholder="Compare AAPL and MSFT" autofocus>
<button type="submit">Research</button>
</form>
</body>
</html>
`

func handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

// handleResearchForm answers the HTML form with the Markdown report in a
// pre-wrapped block.
func handleResearchForm(res researcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		query := strings.TrimSpace(r.PostFormValue("query"))
		if query == "" {
			http.Error(w, "query is required", http.StatusBadRequest)
			return
		}

		result, err := res.Run(r.Context(), query)
		if result == nil || result.State == nil {
			zap.L().Error("research request failed", zap.String("query", query), zap.Error(err))
			http.Error(w, "research failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n<pre style=\"white-space: pre-wrap\">%s</pre>\n<p><a href=\"/\">New query</a></p>\n</body>\n</html>\n",
			html.EscapeString(report.Title(result.State)),
			html.EscapeString(report.Markdown(result.State)),
		)
	}
}

// researchResponse is the JSON body of POST /api/research.
type researchResponse struct {
	RunID     string               `json:"run_id,omitempty"`
	Status    model.RunStatus      `json:"status"`
	CostUSD   float64              `json:"cost_usd"`
	ElapsedMs int64                `json:"elapsed_ms"`
	State     *model.PipelineState `json:"state"`
	Markdown  string               `json:"markdown"`
	Error     string               `json:"error,omitempty"`
}

func handleResearchAPI(res researcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Query = strings.TrimSpace(req.Query)
		if req.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}

		result, err := res.Run(r.Context(), req.Query)
		if result == nil || result.State == nil {
			zap.L().Error("research request failed", zap.String("query", req.Query), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "research failed")
			return
		}

		body := researchResponse{
			RunID:     result.RunID,
			Status:    result.Status,
			CostUSD:   result.CostUSD,
			ElapsedMs: result.Elapsed.Milliseconds(),
			State:     result.State,
			Markdown:  report.Markdown(result.State),
		}
		status := http.StatusOK
		if err != nil {
			body.Error = err.Error()
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, body)
	}
}

// healthResponse reports liveness and each oracle breaker. Status is
// "degraded" while any breaker is open.
type healthResponse struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

func handleHealth(breakers *resilience.Breakers) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := healthResponse{Status: "ok"}
		if breakers != nil {
			body.Breakers = make(map[string]string)
			for name, state := range breakers.States() {
				body.Breakers[name] = state.String()
				if state == resilience.Open {
					body.Status = "degraded"
				}
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleListRuns(runs runReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runs == nil {
			writeError(w, http.StatusServiceUnavailable, "run history is disabled")
			return
		}

		q := r.URL.Query()
		filter := store.RunFilter{
			Status: model.RunStatus(q.Get("status")),
			Ticker: q.Get("ticker"),
			Limit:  50,
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			filter.Limit = n
		}
		if v := q.Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
				return
			}
			filter.Offset = n
		}

		list, err := runs.ListRuns(r.Context(), filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		// Summaries only; the full state is served per run.
		out := make([]model.Run, len(list))
		for i, run := range list {
			if run.Result != nil {
				summary := *run.Result
				summary.State = nil
				run.Result = &summary
			}
			out[i] = run
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetRun(runs runReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runs == nil {
			writeError(w, http.StatusServiceUnavailable, "run history is disabled")
			return
		}

		id := chi.URLParam(r, "id")
		run, err := runs.GetRun(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			zap.L().Error("get run failed", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load run")
			return
		}

		stages, err := runs.ListStages(r.Context(), id)
		if err != nil {
			zap.L().Warn("list stages failed", zap.String("run_id", id), zap.Error(err))
		}
		if stages == nil {
			stages = []model.StageRecord{}
		}

		writeJSON(w, http.StatusOK, struct {
			*model.Run
			Stages []model.StageRecord `json:"stages"`
		}{Run: run, Stages: stages})
	}
}

func handleStats(c *monitoring.Collector, lookback int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			writeError(w, http.StatusServiceUnavailable, "run history is disabled")
			return
		}

		hours := lookback
		if v := r.URL.Query().Get("hours"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "hours must be a non-negative integer")
				return
			}
			hours = n
		}

		snap, err := c.Collect(r.Context(), hours)
		if err != nil {
			zap.L().Error("collect stats failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to collect stats")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
