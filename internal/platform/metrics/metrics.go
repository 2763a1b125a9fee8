// Package metrics holds the Prometheus collectors shared by the launcher and the
// evaluator. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mlops"

type Metrics struct {
	registry *prometheus.Registry

	launches        *prometheus.CounterVec
	launchDuration  prometheus.Histogram
	evaluations     *prometheus.CounterVec
	endpointLatency *prometheus.HistogramVec
	evaluationRMSE  *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		launches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Training launches by terminal outcome and error kind.",
		}, []string{"outcome", "kind"}),
		launchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "launch_duration_seconds",
			Help:      "Wall-clock duration of one launcher invocation.",
			Buckets:   prometheus.DefBuckets,
		}),
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Endpoint evaluations by outcome.",
		}, []string{"outcome"}),
		endpointLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "endpoint_invocation_seconds",
			Help:      "Latency of single-row endpoint invocations.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		evaluationRMSE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluation_rmse",
			Help:      "RMSE of the last completed evaluation per endpoint.",
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveLaunch(outcome string, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(outcome, kind).Inc()
	m.launchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveInvocation(endpoint string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.endpointLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveEvaluation(endpoint string, outcome string, rmse float64) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.evaluationRMSE.WithLabelValues(endpoint).Set(rmse)
	}
}
