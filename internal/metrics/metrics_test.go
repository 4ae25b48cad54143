package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartalks/backend/internal/apperror"
)

func TestCollector_Counters(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.MessageSent()
	c.MessageSent()
	c.SendRejected(apperror.CodeBlocked)
	c.SendRejected(apperror.CodeBlocked)
	c.SendRejected(apperror.CodeInvalidMessage)
	c.SummaryFailed()
	c.NotifyFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sent))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rejected.WithLabelValues(string(apperror.CodeBlocked))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues(string(apperror.CodeInvalidMessage))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.summaryFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifyFailed))
}

func TestCollector_MiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := New(nil)

	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/api/conversations/:id", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(c.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversations/AB12CD_XY34YZ", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "cartalks_http_request_duration_seconds_count")
	assert.True(t, strings.Contains(body, `route="/api/conversations/:id"`))
	assert.NotContains(t, body, "AB12CD_XY34YZ")
}
