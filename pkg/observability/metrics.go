package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestration Prometheus collectors.
type Metrics struct {
	TasksDispatched   *prometheus.CounterVec
	TaskRetries       *prometheus.CounterVec
	CooldownWaits     prometheus.Counter
	PlannerIterations prometheus.Counter
	DispatchDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers the orchestration collectors.
// Pass prometheus.DefaultRegisterer or a private registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_tasks_dispatched_total",
			Help: "Tasks dispatched to remote agents, by agent and outcome.",
		}, []string{"agent", "outcome"}),
		TaskRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_task_retries_total",
			Help: "Rate-limit resubmissions, by agent.",
		}, []string{"agent"}),
		CooldownWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_cooldown_waits_total",
			Help: "Dispatches delayed by an active agent cooldown.",
		}),
		PlannerIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_planner_iterations_total",
			Help: "Planning loop iterations executed.",
		}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleet_dispatch_duration_seconds",
			Help:    "Remote agent dispatch duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"agent"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TasksDispatched,
			m.TaskRetries,
			m.CooldownWaits,
			m.PlannerIterations,
			m.DispatchDuration,
		)
	}
	return m
}

// ObserveDispatch records one dispatch outcome.
func (m *Metrics) ObserveDispatch(agent, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TasksDispatched.WithLabelValues(agent, outcome).Inc()
	m.DispatchDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

// ObserveRetry records one rate-limit resubmission.
func (m *Metrics) ObserveRetry(agent string) {
	if m == nil {
		return
	}
	m.TaskRetries.WithLabelValues(agent).Inc()
}

// ObserveCooldownWait records one cooldown-delayed dispatch.
func (m *Metrics) ObserveCooldownWait() {
	if m == nil {
		return
	}
	m.CooldownWaits.Inc()
}

// ObservePlannerIteration records one planning loop iteration.
func (m *Metrics) ObservePlannerIteration() {
	if m == nil {
		return
	}
	m.PlannerIterations.Inc()
}
