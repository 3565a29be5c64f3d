package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordOutcome("skipped", "launch_pool_source")
	m.RecordOutcome("skipped", "launch_pool_source")
	m.RecordTradeStored()
	m.RecordAlert(nil)
	m.RecordAlert(errors.New("telegram down"))
	m.RecordEnrichmentError("dexscreener")
	m.RecordJob("symbol_prune", nil)
	m.ObserveWebhook(http.StatusOK, "processed", 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TradeOutcomes.WithLabelValues("skipped", "launch_pool_source")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichmentErrors.WithLabelValues("dexscreener")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerJobRuns.WithLabelValues("symbol_prune", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOutcome("processed", "")
		m.RecordTradeStored()
		m.RecordAlert(nil)
		m.RecordEnrichmentError("rpc")
		m.RecordJob("x", errors.New("boom"))
		m.ObserveWebhook(http.StatusInternalServerError, "error", time.Second)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordTradeStored()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "swapwatch_trades_stored_total 1")
}
