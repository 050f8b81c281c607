package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMiddleware_LabelsByRoute(t *testing.T) {
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/api/v1/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	route := requestTotal.WithLabelValues(http.MethodGet, "/api/v1/users/:id", "200")
	before := testutil.ToFloat64(route)

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/"+id, nil))
	}
	assert.Equal(t, before+3, testutil.ToFloat64(route))

	health := requestTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	before = testutil.ToFloat64(health)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, before, testutil.ToFloat64(health))

	failures := errorRate.WithLabelValues(http.MethodGet, "/fail", "500")
	before = testutil.ToFloat64(failures)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(failures))

	unmatched := requestTotal.WithLabelValues(http.MethodGet, unmatchedPath, "404")
	before = testutil.ToFloat64(unmatched)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}

func TestRecordUserOperation(t *testing.T) {
	c := userOperations.WithLabelValues("create", "conflict")
	before := testutil.ToFloat64(c)

	RecordUserOperation("create", "conflict")
	RecordUserOperation("create", "conflict")

	assert.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestShouldCollectMetrics(t *testing.T) {
	assert.True(t, shouldCollectMetrics("/api/v1/users"))
	assert.False(t, shouldCollectMetrics("/healthz"))
	assert.False(t, shouldCollectMetrics("/ready"))
	assert.False(t, shouldCollectMetrics("/metrics"))
}
