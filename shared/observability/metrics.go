package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the service's Prometheus collectors. Instruments recorded through
// OpenTelemetry are bridged into the same registry. Recording methods are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	mints          *prometheus.CounterVec
	chatReplies    *prometheus.CounterVec
	activeSessions prometheus.Gauge
	directoryReads *prometheus.CounterVec

	pinnedBytes otelmetric.Int64Counter
	pinLatency  otelmetric.Float64Histogram
}

// NewMetrics registers all collectors on a fresh registry
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		mints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "character_mints_total",
			Help: "Mint attempts by outcome.",
		}, []string{"outcome"}),
		chatReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_replies_total",
			Help: "Chat turns by outcome (reply or error category).",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Open chat sessions.",
		}),
		directoryReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_records_total",
			Help: "Character records served by the directory, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.mints, m.chatReplies, m.activeSessions, m.directoryReads)

	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	m.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	meter := m.provider.Meter(ServiceName)

	if m.pinnedBytes, err = meter.Int64Counter("pinning.uploaded_bytes",
		otelmetric.WithDescription("Bytes pinned to IPFS."),
		otelmetric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.pinLatency, err = meter.Float64Histogram("pinning.duration",
		otelmetric.WithDescription("Pinning request latency."),
		otelmetric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request count and latency per matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// MintFinished counts a mint attempt; outcome is "success" or an error code
func (m *Metrics) MintFinished(outcome string) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(outcome).Inc()
}

// ChatReply counts a chat turn; outcome is "reply" or the error category
func (m *Metrics) ChatReply(outcome string) {
	if m == nil {
		return
	}
	m.chatReplies.WithLabelValues(outcome).Inc()
}

// SessionOpened increments the open session gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the open session gauge
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// DirectoryRecord counts a served record; kind is "resolved" or "placeholder"
func (m *Metrics) DirectoryRecord(kind string) {
	if m == nil {
		return
	}
	m.directoryReads.WithLabelValues(kind).Inc()
}

// Pinned records one pinning request
func (m *Metrics) Pinned(ctx context.Context, kind string, size int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("ok", err == nil),
	)
	if err == nil {
		m.pinnedBytes.Add(ctx, int64(size), attrs)
	}
	m.pinLatency.Record(ctx, elapsed.Seconds(), attrs)
}

// Shutdown stops the OpenTelemetry meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
