package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "solvmetria"

// Metrics holds the service's prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	samples           prometheus.Gauge
	municipalities    prometheus.Gauge
	avgScore          prometheus.Gauge
	municipalityScore *prometheus.GaugeVec
	tierCount         *prometheus.GaugeVec
	stateCount        *prometheus.GaugeVec
	loadFailures      prometheus.Counter
	adjustments       prometheus.Counter
	alerts            *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dataset_samples",
			Help: "Soil samples in the loaded dataset.",
		}),
		municipalities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dataset_municipalities",
			Help: "Distinct municipalities in the loaded dataset.",
		}),
		avgScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "icd_average",
			Help: "Mean ICD across municipalities under the default parameters.",
		}),
		municipalityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "icd_score",
			Help: "ICD of a municipality under the default parameters.",
		}, []string{"region", "municipality"}),
		tierCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "icd_tier_municipalities",
			Help: "Municipalities per ICD tier.",
		}, []string{"tier"}),
		stateCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "diagnosis_state_municipalities",
			Help: "Municipalities per diagnosis state.",
		}, []string{"state"}),
		loadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dataset_load_failures_total",
			Help: "Quality checks that found the dataset unavailable.",
		}),
		adjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "param_adjustments_total",
			Help: "Accepted expert parameter adjustments.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_total",
			Help: "Quality alerts raised, by type.",
		}, []string{"type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.samples, m.municipalities, m.avgScore, m.municipalityScore,
		m.tierCount, m.stateCount, m.loadFailures, m.adjustments,
		m.alerts, m.requests, m.requestDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records a quality snapshot. Per-municipality series are replaced
// wholesale so municipalities that left the dataset disappear.
func (m *Metrics) Observe(snap *QualitySnapshot) {
	if m == nil || snap == nil {
		return
	}
	if snap.LoadError != "" {
		m.loadFailures.Inc()
	}
	m.samples.Set(float64(snap.Samples))
	m.municipalities.Set(float64(snap.Municipalities))
	m.avgScore.Set(snap.AvgScore)

	m.municipalityScore.Reset()
	for _, r := range snap.Results {
		m.municipalityScore.WithLabelValues(r.Region, r.Municipality).Set(float64(r.Score))
	}
	m.tierCount.Reset()
	for tier, n := range snap.TierCounts {
		m.tierCount.WithLabelValues(string(tier)).Set(float64(n))
	}
	m.stateCount.Reset()
	for state, n := range snap.StateCounts {
		m.stateCount.WithLabelValues(string(state)).Set(float64(n))
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveAdjustment counts an accepted parameter adjustment.
func (m *Metrics) ObserveAdjustment() {
	if m == nil {
		return
	}
	m.adjustments.Inc()
}

// ObserveAlert counts a raised alert.
func (m *Metrics) ObserveAlert(t AlertType) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(string(t)).Inc()
}
