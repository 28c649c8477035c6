package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects core counters for the build workflow.
type Metrics struct {
	triggers    *prometheus.CounterVec
	completions *prometheus.CounterVec
	polls       *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	triggers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jenkinsflow_builds_triggered_total",
		Help: "Total builds triggered by job name.",
	}, []string{"job"})
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jenkinsflow_builds_completed_total",
		Help: "Total completed builds by terminal result.",
	}, []string{"result"})
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jenkinsflow_poll_attempts_total",
		Help: "Total poll attempts by kind (queue, status, external).",
	}, []string{"kind"})

	triggers = registerCounterVec(registerer, triggers)
	completions = registerCounterVec(registerer, completions)
	polls = registerCounterVec(registerer, polls)

	return &Metrics{
		triggers:    triggers,
		completions: completions,
		polls:       polls,
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) IncTrigger(job string) {
	if m == nil || m.triggers == nil {
		return
	}
	m.triggers.WithLabelValues(job).Inc()
}

func (m *Metrics) IncCompletion(result string) {
	if m == nil || m.completions == nil {
		return
	}
	m.completions.WithLabelValues(result).Inc()
}

func (m *Metrics) IncPoll(kind string) {
	if m == nil || m.polls == nil {
		return
	}
	m.polls.WithLabelValues(kind).Inc()
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}
