package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	ready := false
	m := New("test", func() bool { return ready })

	m.ObserveRequest("/embed", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest("/embed", http.StatusOK, 30*time.Millisecond)
	m.ObserveRequest("/embed", http.StatusServiceUnavailable, time.Millisecond)
	m.AddEmbedded("cls", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/embed", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/embed", "503")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.textsEmbedded.WithLabelValues("cls")))
}

func TestMetrics_Handler(t *testing.T) {
	ready := false
	m := New("test", func() bool { return ready })
	m.AddEmbedded("mean", 2)

	scrape := func() string {
		w := httptest.NewRecorder()
		m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, w.Code)
		return w.Body.String()
	}

	body := scrape()
	assert.Contains(t, body, `lexembed_texts_embedded_total{method="mean",service="test"} 2`)
	assert.Contains(t, body, `lexembed_model_ready{service="test"} 0`)

	ready = true
	assert.True(t, strings.Contains(scrape(), `lexembed_model_ready{service="test"} 1`))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/", http.StatusOK, time.Second)
	m.AddEmbedded("cls", 1)
}
