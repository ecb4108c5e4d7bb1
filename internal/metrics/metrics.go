package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the header service.
type Metrics struct {
	// Resolution metrics
	ResolutionsTotal    *prometheus.CounterVec
	HeadersEmittedTotal *prometheus.CounterVec
	NoncesIssuedTotal   prometheus.Counter
	ResolutionDuration  prometheus.Histogram

	// CSP violation report metrics
	ReportsTotal       *prometheus.CounterVec
	ReportsStoredTotal prometheus.Counter
	ReportStoreErrors  prometheus.Counter

	// Report forwarding metrics
	ForwardsTotal   *prometheus.CounterVec
	ForwardRetries  prometheus.Counter
	ForwardDuration prometheus.Histogram

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Policy lifecycle
	PolicyReloadsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shieldstack_resolutions_total",
				Help: "Total number of header resolutions",
			},
			[]string{"transport"},
		),
		HeadersEmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shieldstack_headers_emitted_total",
				Help: "Total headers emitted, by header name",
			},
			[]string{"header"},
		),
		NoncesIssuedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shieldstack_nonces_issued_total",
				Help: "Total CSP nonces minted for requests",
			},
		),
		ResolutionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shieldstack_resolution_duration_seconds",
				Help:    "Time taken to resolve the header set for a request",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
			},
		),
		ReportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shieldstack_csp_reports_total",
				Help: "Total CSP violation reports received",
			},
			[]string{"outcome"},
		),
		ReportsStoredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shieldstack_csp_reports_stored_total",
				Help: "Total CSP violation reports persisted",
			},
		),
		ReportStoreErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shieldstack_csp_report_store_errors_total",
				Help: "Total failures persisting CSP violation reports",
			},
		),
		ForwardsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shieldstack_report_forwards_total",
				Help: "Total CSP report webhook forwards, by outcome",
			},
			[]string{"outcome"},
		),
		ForwardRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shieldstack_report_forward_retries_total",
				Help: "Total retry attempts while forwarding CSP reports",
			},
		),
		ForwardDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shieldstack_report_forward_duration_seconds",
				Help:    "Time taken to deliver a forwarded CSP report",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shieldstack_rate_limit_hits_total",
				Help: "Total requests rejected by rate limiting",
			},
			[]string{"scope"},
		),
		PolicyReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shieldstack_policy_reloads_total",
				Help: "Total policy reloads, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveResolution records one header resolution.
func (m *Metrics) ObserveResolution(secure bool, headers map[string]string, nonceIssued bool, duration time.Duration) {
	if m == nil {
		return
	}
	transport := "insecure"
	if secure {
		transport = "secure"
	}
	m.ResolutionsTotal.WithLabelValues(transport).Inc()
	for name := range headers {
		m.HeadersEmittedTotal.WithLabelValues(name).Inc()
	}
	if nonceIssued {
		m.NoncesIssuedTotal.Inc()
	}
	m.ResolutionDuration.Observe(duration.Seconds())
}

// ObserveReport records one ingested CSP violation report.
func (m *Metrics) ObserveReport(outcome string) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(outcome).Inc()
}

// ObserveReportStored records the outcome of persisting one report.
func (m *Metrics) ObserveReportStored(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ReportStoreErrors.Inc()
		return
	}
	m.ReportsStoredTotal.Inc()
}

// ObserveForward records one report forwarding attempt chain.
func (m *Metrics) ObserveForward(outcome string, retries int, duration time.Duration) {
	if m == nil {
		return
	}
	m.ForwardsTotal.WithLabelValues(outcome).Inc()
	m.ForwardRetries.Add(float64(retries))
	m.ForwardDuration.Observe(duration.Seconds())
}

// ObserveRateLimitHit records one rate-limited request.
func (m *Metrics) ObserveRateLimitHit(scope string) {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.WithLabelValues(scope).Inc()
}

// ObservePolicyReload records a policy reload attempt.
func (m *Metrics) ObservePolicyReload(ok bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	m.PolicyReloadsTotal.WithLabelValues(outcome).Inc()
}
