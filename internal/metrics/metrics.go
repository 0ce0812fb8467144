package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the fetch pipeline reports into. Outcome is "ok", "cached"
// or an error kind such as "auth" or "parse".
type Recorder interface {
	ObservePage(outcome string)
	AddRecords(n int)
	ObserveRequest(d time.Duration)
	ObserveRun(records, filtered int)
}

type Metrics struct {
	registry        *prometheus.Registry
	pagesTotal      *prometheus.CounterVec
	recordsTotal    prometheus.Counter
	filteredTotal   prometheus.Counter
	runsTotal       prometheus.Counter
	requestDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		pagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tmall_crawler_pages_total",
			Help: "Review pages attempted, by outcome",
		}, []string{"outcome"}),
		recordsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tmall_crawler_records_total",
			Help: "Review records collected",
		}),
		filteredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tmall_crawler_filtered_total",
			Help: "Rows removed by the empty-review filter",
		}),
		runsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tmall_crawler_runs_total",
			Help: "Completed fetch runs",
		}),
		requestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tmall_crawler_request_duration_seconds",
			Help:    "Round trip time of review list requests",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObservePage(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.pagesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddRecords(n int) {
	if n > 0 {
		m.recordsTotal.Add(float64(n))
	}
}

func (m *Metrics) ObserveRequest(d time.Duration) {
	m.requestDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRun(records, filtered int) {
	m.runsTotal.Inc()
	if filtered > 0 {
		m.filteredTotal.Add(float64(filtered))
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type noop struct{}

func (noop) ObservePage(string)           {}
func (noop) AddRecords(int)               {}
func (noop) ObserveRequest(time.Duration) {}
func (noop) ObserveRun(int, int)          {}

// Noop discards everything.
var Noop Recorder = noop{}

var defaultMetrics = New()

// Default is the process-wide recorder served on /metrics.
func Default() *Metrics { return defaultMetrics }
