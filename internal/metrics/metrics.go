// Package metrics exposes Prometheus counters for the send pipeline and the
// HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartalks/backend/internal/apperror"
)

const namespace = "cartalks"

type Collector struct {
	gatherer prometheus.Gatherer

	sent          prometheus.Counter
	rejected      *prometheus.CounterVec
	summaryFailed prometheus.Counter
	notifyFailed  prometheus.Counter
	requests      *prometheus.HistogramVec
}

// New registers every metric on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,
		sent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages accepted and persisted.",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Send attempts that ended without a delivered message, by error code.",
		}, []string{"code"}),
		summaryFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_update_failures_total",
			Help:      "Delivered messages whose conversation summary was not updated.",
		}),
		notifyFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Push notifications the dispatcher could not hand off.",
		}),
		requests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (c *Collector) MessageSent() { c.sent.Inc() }

func (c *Collector) SendRejected(code apperror.Code) {
	c.rejected.WithLabelValues(string(code)).Inc()
}

func (c *Collector) SummaryFailed() { c.summaryFailed.Inc() }

func (c *Collector) NotifyFailed() { c.notifyFailed.Inc() }

// Middleware records one latency sample per request, labelled with the
// matched route so path parameters do not explode cardinality.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.requests.
			WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
