package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	passDuration    *prom.HistogramVec
	passDiagnostics *prom.CounterVec
	rebuilds        *prom.HistogramVec
	contextFailures *prom.CounterVec
	disposeFailures *prom.CounterVec
}

// NewPrometheusRecorder constructs the build metrics and registers them with reg, or with a new registry if reg is
// nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.passDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "extbuild",
		Name:      "pass_duration_seconds",
		Help:      "Duration of build passes, including watch-triggered rebuilds",
		Buckets:   prom.DefBuckets,
	}, []string{"profile", "result"})
	pr.passDiagnostics = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "extbuild",
		Name:      "diagnostics_total",
		Help:      "Diagnostics reported by build passes",
	}, []string{"profile", "kind"})
	pr.rebuilds = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "extbuild",
		Name:      "rebuild_duration_seconds",
		Help:      "Duration of one-shot rebuilds requested by the orchestrator",
		Buckets:   prom.DefBuckets,
	}, []string{"profile", "result"})
	pr.contextFailures = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "extbuild",
		Name:      "context_failures_total",
		Help:      "Build contexts that could not be created",
	}, []string{"profile"})
	pr.disposeFailures = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "extbuild",
		Name:      "dispose_failures_total",
		Help:      "Build contexts that failed to dispose cleanly",
	}, []string{"profile"})
	reg.MustRegister(pr.passDuration, pr.passDiagnostics, pr.rebuilds, pr.contextFailures, pr.disposeFailures)
	return pr
}

// Registry returns the registry holding the metrics.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

// Handler serves the metrics in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) ObservePass(profile string, d time.Duration, errors, warnings int) {
	if p == nil {
		return
	}
	result := OutcomeSuccess
	if errors > 0 {
		result = OutcomeFailed
	}
	p.passDuration.WithLabelValues(profile, string(result)).Observe(d.Seconds())
	p.passDiagnostics.WithLabelValues(profile, "error").Add(float64(errors))
	p.passDiagnostics.WithLabelValues(profile, "warning").Add(float64(warnings))
}

func (p *PrometheusRecorder) ObserveRebuild(profile string, d time.Duration, outcome Outcome) {
	if p == nil {
		return
	}
	p.rebuilds.WithLabelValues(profile, string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncContextFailure(profile string) {
	if p == nil {
		return
	}
	p.contextFailures.WithLabelValues(profile).Inc()
}

func (p *PrometheusRecorder) IncDisposeFailure(profile string) {
	if p == nil {
		return
	}
	p.disposeFailures.WithLabelValues(profile).Inc()
}
