package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stock-researcher/internal/config"
	"github.com/sells-group/stock-researcher/internal/model"
)

func TestChecker_DefaultInterval(t *testing.T) {
	c := NewChecker(NewCollector(&fakeRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.Equal(t, 5*time.Minute, c.Interval())
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(&fakeRuns{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	now := time.Now().UTC()
	var runs []model.Run
	for i := 0; i < 6; i++ {
		runs = append(runs, model.Run{Status: model.RunStatusFailed, CreatedAt: now.Add(-time.Minute)})
	}

	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackWindowHours: 1, FailureRateThreshold: 0.2}
	checker := NewChecker(NewCollector(&fakeRuns{runs: runs}), NewAlerter(cfg), cfg)

	alerts, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{}
	checker := NewChecker(NewCollector(&fakeRuns{err: errors.New("db down")}), NewAlerter(cfg), cfg)

	_, err := checker.Check(context.Background())
	assert.Error(t, err)
}
