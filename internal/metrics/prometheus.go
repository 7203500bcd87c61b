package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Case metrics
	casesTotal    *prometheus.CounterVec
	caseDurations *prometheus.HistogramVec

	// Filter processor metrics
	scriptsTotal    *prometheus.CounterVec
	scriptDurations *prometheus.HistogramVec

	// Injection metrics
	messagesInjectedTotal *prometheus.CounterVec

	// Service metrics
	serviceOperationsTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		casesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailproc_harness_cases_total",
			Help: "Total number of test cases run.",
		}, []string{"protocol", "result"}),
		caseDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailproc_harness_case_duration_seconds",
			Help:    "Wall-clock duration of test cases, including setup and teardown.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"protocol"}),

		scriptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailproc_harness_scripts_total",
			Help: "Total number of filter processor invocations.",
		}, []string{"protocol", "result"}),
		scriptDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailproc_harness_script_duration_seconds",
			Help:    "Duration of filter processor invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"protocol"}),

		messagesInjectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailproc_harness_messages_injected_total",
			Help: "Total number of fixture messages handed to the injection transport.",
		}, []string{"transport", "result"}),

		serviceOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailproc_harness_service_operations_total",
			Help: "Total number of service start and stop operations.",
		}, []string{"service", "operation", "result"}),
	}

	// Register all metrics
	reg.MustRegister(
		c.casesTotal,
		c.caseDurations,
		c.scriptsTotal,
		c.scriptDurations,
		c.messagesInjectedTotal,
		c.serviceOperationsTotal,
	)

	return c
}

// CaseCompleted increments the case counter and observes the case duration.
func (c *PrometheusCollector) CaseCompleted(protocol string, result string, duration time.Duration) {
	c.casesTotal.WithLabelValues(protocol, result).Inc()
	c.caseDurations.WithLabelValues(protocol).Observe(duration.Seconds())
}

// ScriptCompleted increments the script counter and observes its duration.
func (c *PrometheusCollector) ScriptCompleted(protocol string, result string, duration time.Duration) {
	c.scriptsTotal.WithLabelValues(protocol, result).Inc()
	c.scriptDurations.WithLabelValues(protocol).Observe(duration.Seconds())
}

// MessageInjected increments the injected message counter.
func (c *PrometheusCollector) MessageInjected(transport string, result string) {
	c.messagesInjectedTotal.WithLabelValues(transport, result).Inc()
}

// ServiceOperation increments the service operation counter.
func (c *PrometheusCollector) ServiceOperation(service string, op string, result string) {
	c.serviceOperationsTotal.WithLabelValues(service, op, result).Inc()
}

// TextfileExporter writes all gathered metrics to a file in the Prometheus
// text format, for pickup by the node exporter textfile collector.
type TextfileExporter struct {
	path     string
	gatherer prometheus.Gatherer
}

// NewTextfileExporter creates an exporter writing g to path.
func NewTextfileExporter(path string, g prometheus.Gatherer) *TextfileExporter {
	return &TextfileExporter{path: path, gatherer: g}
}

// Export writes the metrics file atomically.
func (e *TextfileExporter) Export() error {
	return prometheus.WriteToTextfile(e.path, e.gatherer)
}
