// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry and the reward counters. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	clicks      prometheus.Counter
	commissions *prometheus.CounterVec
	withdrawals *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		clicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coinclicker",
			Name:      "clicks_total",
			Help:      "Clicks durably applied to account balances.",
		}),
		commissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coinclicker",
			Name:      "commissions_total",
			Help:      "Referral commission attempts by result.",
		}, []string{"result"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coinclicker",
			Name:      "withdrawals_total",
			Help:      "Withdrawal requests and resolutions by result.",
		}, []string{"result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coinclicker",
			Name:      "version_conflicts_total",
			Help:      "Optimistic version conflicts by operation.",
		}, []string{"op"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coinclicker",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path", "status"}),
	}

	r.registry.MustRegister(
		r.clicks,
		r.commissions,
		r.withdrawals,
		r.conflicts,
		r.httpLatency,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return r
}

func (r *Recorder) Click() {
	if r == nil {
		return
	}
	r.clicks.Inc()
}

// Commission counts a commission outcome: credited, skipped, failed,
// dispatch_failed or redispatched.
func (r *Recorder) Commission(result string) {
	if r == nil {
		return
	}
	r.commissions.WithLabelValues(result).Inc()
}

// Withdrawal counts requested, insufficient, completed, rejected, failed.
func (r *Recorder) Withdrawal(result string) {
	if r == nil {
		return
	}
	r.withdrawals.WithLabelValues(result).Inc()
}

func (r *Recorder) Conflict(op string) {
	if r == nil {
		return
	}
	r.conflicts.WithLabelValues(op).Inc()
}

// Registry returns the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware observes request latency by route pattern.
func (r *Recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r == nil || c.Path() == "/metrics" {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			r.httpLatency.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
