package queue

import "github.com/prometheus/client_golang/prometheus"

type queueMetrics struct {
	enqueued  *prometheus.CounterVec
	completed *prometheus.CounterVec
	retried   *prometheus.CounterVec
	failed    *prometheus.CounterVec
	active    *prometheus.GaugeVec
}

func newQueueMetrics(reg prometheus.Registerer) *queueMetrics {
	m := &queueMetrics{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindvault_queue_jobs_enqueued_total",
			Help: "Jobs accepted per stage queue",
		}, []string{"stage"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindvault_queue_jobs_completed_total",
			Help: "Jobs completed per stage queue",
		}, []string{"stage"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindvault_queue_jobs_retried_total",
			Help: "Jobs re-enqueued after a transient failure",
		}, []string{"stage"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindvault_queue_jobs_failed_total",
			Help: "Jobs moved to dead letters per stage queue",
		}, []string{"stage"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mindvault_queue_jobs_active",
			Help: "Jobs currently executing per stage queue",
		}, []string{"stage"}),
	}

	if reg != nil {
		reg.MustRegister(m.enqueued, m.completed, m.retried, m.failed, m.active)
	}
	return m
}
