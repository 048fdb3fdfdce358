package core

import (
	"time"

	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	rowsImported = "imported"
	rowsFailed   = "failed"
)

// Metrics are the import counters exposed on /metrics. A nil *Metrics
// records nothing.
type Metrics struct {
	imports       *prometheus.CounterVec
	rows          *prometheus.CounterVec
	parseDuration *prometheus.HistogramVec
}

// NewMetrics creates the import metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raceresults",
			Name:      "imports_total",
			Help:      "Finished imports by detected format and terminal status.",
		}, []string{"format", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raceresults",
			Name:      "import_rows_total",
			Help:      "Result rows processed by imports, by outcome.",
		}, []string{"outcome"}),
		parseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "raceresults",
			Name:      "parse_duration_seconds",
			Help:      "Time spent parsing an import file, by format.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"format"}),
	}
	reg.MustRegister(m.imports, m.rows, m.parseDuration)
	return m
}

// RecordImport counts one finished import.
func (m *Metrics) RecordImport(format results.Format, status ImportPhase) {
	if m == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	m.imports.WithLabelValues(string(format), string(status)).Inc()
}

// AddRows counts n rows with the given outcome.
func (m *Metrics) AddRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(outcome).Add(float64(n))
}

// ObserveParse records how long a parse took.
func (m *Metrics) ObserveParse(format results.Format, d time.Duration) {
	if m == nil {
		return
	}
	m.parseDuration.WithLabelValues(string(format)).Observe(d.Seconds())
}
