package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cycletrack",
		Subsystem: "ingest",
		Name:      "jobs_started_total",
		Help:      "Collector runs launched, by kind.",
	}, []string{"kind"})
	jobsSucceeded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cycletrack",
		Subsystem: "ingest",
		Name:      "jobs_succeeded_total",
		Help:      "Collector runs that exited cleanly, by kind.",
	}, []string{"kind"})
	jobsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cycletrack",
		Subsystem: "ingest",
		Name:      "jobs_failed_total",
		Help:      "Collector runs that failed to spawn or exited non-zero, by kind.",
	}, []string{"kind"})
	registrations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cycletrack",
		Subsystem: "api",
		Name:      "registrations_total",
		Help:      "Accounts created through the register endpoint.",
	})
)

func init() {
	prometheus.MustRegister(jobsStarted, jobsSucceeded, jobsFailed, registrations)
}

// RecordJobStarted counts a launched collector run.
func RecordJobStarted(kind string) {
	jobsStarted.WithLabelValues(kind).Inc()
}

// RecordJobSucceeded counts a clean collector exit.
func RecordJobSucceeded(kind string) {
	jobsSucceeded.WithLabelValues(kind).Inc()
}

// RecordJobFailed counts a spawn failure or non-zero exit.
func RecordJobFailed(kind string) {
	jobsFailed.WithLabelValues(kind).Inc()
}

// RecordRegistration counts a successful registration.
func RecordRegistration() {
	registrations.Inc()
}
