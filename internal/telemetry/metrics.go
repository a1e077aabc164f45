package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the service. All metrics are
// registered on a private registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	SignupsTotal    prometheus.Counter
	LoginsTotal     *prometheus.CounterVec
	LogoutsTotal    prometheus.Counter
	SessionsSwept   prometheus.Counter
	UploadsTotal    prometheus.Counter
	UploadBytes     prometheus.Histogram
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all instruments.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SignupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chronocam_signups_total",
			Help: "Total number of accounts created via signup.",
		}),

		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chronocam_logins_total",
			Help: "Total number of login attempts by method and result.",
		}, []string{"method", "result"}),

		LogoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chronocam_logouts_total",
			Help: "Total number of logouts.",
		}),

		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chronocam_sessions_swept_total",
			Help: "Total number of expired sessions removed by the sweeper.",
		}),

		UploadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chronocam_uploads_total",
			Help: "Total number of images uploaded.",
		}),

		UploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronocam_upload_bytes",
			Help:    "Size distribution of uploaded images.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chronocam_request_duration_seconds",
			Help:    "HTTP request duration by method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SignupsTotal,
		m.LoginsTotal,
		m.LogoutsTotal,
		m.SessionsSwept,
		m.UploadsTotal,
		m.UploadBytes,
		m.RequestDuration,
	)

	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// Middleware records request duration by method and status.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			m.RequestDuration.
				WithLabelValues(r.Method, strconv.Itoa(sw.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}
