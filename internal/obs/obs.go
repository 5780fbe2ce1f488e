// Package obs implements the Observability sink (spec §6): an
// append-only log of structured provider-call records, plus the
// Prometheus counters/histograms that make call volume and latency
// queryable.
//
// Grounded on the teacher's zap-based logging throughout (e.g.
// internal/waterfall/executor.go's zap.L().Warn(...) call sites) and
// on NERVsystems-osmmcp's cmd/osmmcp/main.go, which wires
// prometheus/client_golang/prometheus/promhttp for a similar
// geocoding-adjacent service.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

// CallRecord is one structured call-log entry, per spec §6.
type CallRecord struct {
	Timestamp       time.Time
	Provider        model.ProviderName
	URL             string
	Status          model.Status
	DurationMS      int64
	Error           string
	ResponseSummary string
}

// Sink receives one CallRecord per outbound provider call. Implementations
// must be safe for concurrent use — many workers call Record concurrently.
type Sink interface {
	Record(CallRecord)
}

// Metrics holds the Prometheus collectors registered for the
// orchestrator's provider calls.
type Metrics struct {
	CallsTotal      *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec
	PrecisionTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers the orchestrator's collectors
// against reg. Pass prometheus.NewRegistry() for an isolated registry
// in tests, or prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geo_orchestrator",
			Name:      "provider_calls_total",
			Help:      "Total geocoding calls issued per provider and outcome status.",
		}, []string{"provider", "status"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "geo_orchestrator",
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of outbound provider geocoding calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		PrecisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geo_orchestrator",
			Name:      "result_precision_total",
			Help:      "Final selected precision level per completed row.",
		}, []string{"precision_level"}),
	}
	reg.MustRegister(m.CallsTotal, m.CallDuration, m.PrecisionTotal)
	return m
}

// Observe records one completed provider call's status and duration.
func (m *Metrics) Observe(provider model.ProviderName, status model.Status, d time.Duration) {
	m.CallsTotal.WithLabelValues(string(provider), string(status)).Inc()
	m.CallDuration.WithLabelValues(string(provider)).Observe(d.Seconds())
}

// ObservePrecision records the precision level finally selected
// for a row (or "absent" when none was found).
func (m *Metrics) ObservePrecision(level model.PrecisionLevel, set bool) {
	if !set {
		m.PrecisionTotal.WithLabelValues("absent").Inc()
		return
	}
	m.PrecisionTotal.WithLabelValues(string(level)).Inc()
}

// ZapSink is a Sink that writes each CallRecord as a structured zap
// log line, matching the teacher's logging idiom throughout.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps logger (use zap.L() for the global logger configured
// by internal/config.InitLogger).
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Record(rec CallRecord) {
	fields := []zap.Field{
		zap.Time("timestamp", rec.Timestamp),
		zap.String("provider", string(rec.Provider)),
		zap.String("url", rec.URL),
		zap.String("status", string(rec.Status)),
		zap.Int64("duration_ms", rec.DurationMS),
	}
	if rec.Error != "" {
		fields = append(fields, zap.String("error", rec.Error))
	}
	if rec.ResponseSummary != "" {
		fields = append(fields, zap.String("response_summary", rec.ResponseSummary))
	}
	s.logger.Debug("geocode: provider call", fields...)
}

// MultiSink fans one CallRecord out to several sinks, e.g. a ZapSink
// for audit logging plus a MetricsSink for aggregate counters.
type MultiSink []Sink

func (m MultiSink) Record(rec CallRecord) {
	for _, sink := range m {
		sink.Record(rec)
	}
}

// MetricsSink adapts Metrics to the Sink interface.
type MetricsSink struct {
	metrics *Metrics
}

func NewMetricsSink(metrics *Metrics) *MetricsSink {
	return &MetricsSink{metrics: metrics}
}

func (s *MetricsSink) Record(rec CallRecord) {
	s.metrics.Observe(rec.Provider, rec.Status, time.Duration(rec.DurationMS)*time.Millisecond)
}
