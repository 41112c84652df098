package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue gauges, labeled by queue name.
	PendingJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qcore_pending_jobs",
			Help: "Number of jobs currently pending, by queue",
		},
		[]string{"queue"},
	)

	RunningJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qcore_running_jobs",
			Help: "Number of jobs currently running (allocated or reserved), by queue",
		},
		[]string{"queue"},
	)

	BlockedJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qcore_blocked_jobs",
			Help: "Number of jobs blocked on topology, by queue",
		},
		[]string{"queue"},
	)

	ReservedJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qcore_reserved_jobs",
			Help: "Number of jobs currently holding a future reservation, by queue",
		},
		[]string{"queue"},
	)

	// Lifetime counters, labeled by queue name.
	JobsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qcore_jobs_rejected_total",
			Help: "Total number of jobs rejected, by queue",
		},
		[]string{"queue"},
	)

	JobsCanceledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qcore_jobs_canceled_total",
			Help: "Total number of jobs canceled, by queue",
		},
		[]string{"queue"},
	)

	JobsAllocatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qcore_jobs_allocated_total",
			Help: "Total number of jobs allocated, by queue",
		},
		[]string{"queue"},
	)

	// Sched loop timing.
	SchedLoopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qcore_sched_loop_duration_seconds",
			Help:    "Duration of one scheduling loop pass, by queue",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// Planner gauges, labeled by resource type.
	PlannerActiveSpans = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qcore_planner_active_spans",
			Help: "Number of active spans on a planner, by resource type",
		},
		[]string{"resource_type"},
	)

	PlannerAvailTimeQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qcore_planner_avail_time_queries_total",
			Help: "Total availability queries issued against a planner, by resource type",
		},
		[]string{"resource_type"},
	)
)

func init() {
	prometheus.MustRegister(PendingJobs)
	prometheus.MustRegister(RunningJobs)
	prometheus.MustRegister(BlockedJobs)
	prometheus.MustRegister(ReservedJobs)
	prometheus.MustRegister(JobsRejectedTotal)
	prometheus.MustRegister(JobsCanceledTotal)
	prometheus.MustRegister(JobsAllocatedTotal)
	prometheus.MustRegister(SchedLoopDuration)
	prometheus.MustRegister(PlannerActiveSpans)
	prometheus.MustRegister(PlannerAvailTimeQueries)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
