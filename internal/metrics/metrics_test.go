package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedash/internal/apperr"
)

func TestGinMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/invoices/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/api/invoices/1", "/api/invoices/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/invoices/:id", "GET", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(unmatchedRoute, "GET", "404")))
}

func TestObserveExtractionOutcomes(t *testing.T) {
	m := New()
	m.ObserveExtraction("gemini", time.Second, nil)
	m.ObserveExtraction("gemini", time.Second, apperr.New(apperr.ConfigurationError, "GEMINI_API_KEY not configured"))
	m.ObserveExtraction("groq", time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues("gemini", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues("gemini", "configuration_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues("groq", apperr.Unexpected.String())))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveUpload(1024)
	m.ObserveExtraction("groq", 10*time.Millisecond, nil)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "invoicedash_upload_size_bytes_count 1")
	assert.Contains(t, string(body), `invoicedash_extractions_total{outcome="success",provider="groq"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRegistryGathersOnlyObservedSeries(t *testing.T) {
	m := New()
	n, err := testutil.GatherAndCount(m.Registry(), "invoicedash_extractions_total", "invoicedash_upload_size_bytes")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m.ObserveUpload(2048)
	m.ObserveExtraction("gemini", time.Second, nil)
	m.ObserveExtraction("groq", time.Second, apperr.New(apperr.ConfigurationError, "GROQ_API_KEY not configured"))

	n, err = testutil.GatherAndCount(m.Registry(), "invoicedash_extractions_total", "invoicedash_upload_size_bytes")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveUpload(1)
	m.ObserveExtraction("gemini", time.Second, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
