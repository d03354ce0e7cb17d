package metrics

import (
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

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.DocumentIngested(true)
	m.DocumentIngested(false)
	m.DocumentIngested(true)
	m.Extracted(5, 2, 1)
	m.Synthesis(OutcomeGenerated)
	m.StoreSize(7, 3)
	m.ObserveRetrieval(ModeVector, 10*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/stats", http.StatusOK, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocumentsIngested.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsIngested.WithLabelValues("failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsExtracted.WithLabelValues("question")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsExtracted.WithLabelValues("association")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SynthesisTotal.WithLabelValues(OutcomeGenerated)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.StoreQuestions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/stats", "200")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DocumentIngested(true)
		m.Extracted(1, 1, 1)
		m.Synthesis(OutcomeFailed)
		m.StoreSize(1, 1)
		m.ObserveRetrieval(ModeSubject, time.Second)
		m.ObserveRequest("GET", "/", 200, time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.Synthesis(OutcomeTooShort)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `examprep_synthesis_total{outcome="too_short"} 1`)
}
