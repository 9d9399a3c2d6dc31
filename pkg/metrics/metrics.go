package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline bundles the collectors reported by an embedded logging pipeline.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	EntriesWritten *prometheus.CounterVec
	EntriesDropped *prometheus.CounterVec
	RemoteFlushes  *prometheus.CounterVec
	FileRotations  prometheus.Counter
	Uploads        *prometheus.CounterVec
}

func NewPipeline(registry prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		EntriesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applog_entries_written_total",
			Help: "Total number of log entries handed to each sink.",
		}, []string{"sink"}),
		EntriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applog_entries_dropped_total",
			Help: "Total number of log entries or triggers dropped, by reason.",
		}, []string{"reason"}),
		RemoteFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applog_remote_flushes_total",
			Help: "Total number of remote batch flush attempts.",
		}, []string{"result"}),
		FileRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "applog_file_rotations_total",
			Help: "Total number of size-triggered log file rotations.",
		}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applog_uploads_total",
			Help: "Total number of bulk log upload operations.",
		}, []string{"format", "result"}),
	}

	registry.MustRegister(
		m.EntriesWritten,
		m.EntriesDropped,
		m.RemoteFlushes,
		m.FileRotations,
		m.Uploads,
	)

	return m
}

func (m *Pipeline) ObserveEntry(sink string) {
	if m == nil {
		return
	}
	m.EntriesWritten.WithLabelValues(sink).Inc()
}

func (m *Pipeline) ObserveDrop(reason string) {
	if m == nil {
		return
	}
	m.EntriesDropped.WithLabelValues(reason).Inc()
}

func (m *Pipeline) ObserveFlush(ok bool) {
	if m == nil {
		return
	}
	m.RemoteFlushes.WithLabelValues(result(ok)).Inc()
}

func (m *Pipeline) ObserveRotation() {
	if m == nil {
		return
	}
	m.FileRotations.Inc()
}

func (m *Pipeline) ObserveUpload(format string, ok bool) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(format, result(ok)).Inc()
}

// Collector bundles the collectors exposed by the log collector server.
type Collector struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	LogsIngested       *prometheus.CounterVec
	ParseErrors        prometheus.Counter
	RateLimitDropped   prometheus.Counter
	StorageErrors      prometheus.Counter
}

func NewCollector(registry prometheus.Registerer) *Collector {
	m := &Collector{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_requests_total",
			Help: "Total number of collector HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collector_request_duration_seconds",
			Help:    "Collector request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		LogsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_logs_ingested_total",
			Help: "Total number of log records stored, by payload source.",
		}, []string{"source"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_parse_errors_total",
			Help: "Total number of uploaded lines that were not valid JSON.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_ratelimit_dropped_total",
			Help: "Total number of requests dropped by the rate limiter.",
		}),
		StorageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_storage_errors_total",
			Help: "Total number of failed storage writes.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.LogsIngested,
		m.ParseErrors,
		m.RateLimitDropped,
		m.StorageErrors,
	)

	return m
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
