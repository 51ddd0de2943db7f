package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/quick"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/metrics"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
}

func setupTestRouter(m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics(m))
	return router
}

// For any status code, one request adds exactly one sample under its status class.
func TestProperty_HTTPRequestMetricsIncrement(t *testing.T) {
	m := newTestMetrics()
	router := setupTestRouter(m)

	var status int
	router.GET("/api/pipeline/deals/:dealId", func(c *gin.Context) {
		c.Status(status)
	})

	property := func(code uint16) bool {
		status = 200 + int(code)%400

		class := map[int]string{2: "2xx", 3: "3xx", 4: "4xx", 5: "5xx"}[status/100]
		counter := m.HTTPRequestsTotal.WithLabelValues("GET", "/api/pipeline/deals/:dealId", class)
		before := testutil.ToFloat64(counter)

		req := httptest.NewRequest(http.MethodGet, "/api/pipeline/deals/42", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		return w.Code == status && testutil.ToFloat64(counter) == before+1
	}

	if err := quick.Check(property, &quick.Config{MaxCount: 100}); err != nil {
		t.Errorf("Property test failed: %v", err)
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	m := newTestMetrics()
	router := setupTestRouter(m)
	router.POST("/api/pipeline/deals/:dealId/files", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodPost, "/api/pipeline/deals/"+id+"/files", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("POST", "/api/pipeline/deals/:dealId/files", "2xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestMetricsMiddleware_ExcludedEndpoints(t *testing.T) {
	m := newTestMetrics()
	router := setupTestRouter(m)

	excludedPaths := []string{
		"/metrics",
		"/health",
		"/ready",
		"/api/pipeline/health",
		"/api/pipeline/board/ws",
	}
	for _, path := range excludedPaths {
		router.GET(path, func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	}

	for _, path := range excludedPaths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}

	assert.Zero(t, testutil.CollectAndCount(m.HTTPRequestsTotal))
}

func TestMetricsMiddleware_ErrorStatusCodes(t *testing.T) {
	m := newTestMetrics()
	router := setupTestRouter(m)
	router.GET("/api/pipeline/clients/:clientId", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})
	router.PUT("/api/pipeline/board/move", func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})
	router.GET("/api/pipeline/deals/export", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	testCases := []struct {
		name     string
		method   string
		path     string
		endpoint string
		class    string
	}{
		{"404 Not Found", "GET", "/api/pipeline/clients/x", "/api/pipeline/clients/:clientId", "4xx"},
		{"409 Conflict", "PUT", "/api/pipeline/board/move", "/api/pipeline/board/move", "4xx"},
		{"500 Server Error", "GET", "/api/pipeline/deals/export", "/api/pipeline/deals/export", "5xx"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			router.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, 1.0, testutil.ToFloat64(
				m.HTTPRequestsTotal.WithLabelValues(tc.method, tc.endpoint, tc.class)))
		})
	}
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	m := newTestMetrics()
	router := setupTestRouter(m)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/pipeline/nope/123", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "4xx")))
}

func TestMetricsMiddleware_NilMetrics(t *testing.T) {
	router := setupTestRouter(nil)
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
