package analytics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	viewsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_views_ingested_total",
		Help: "View events by ingest outcome (recorded, not_found, failed, dropped).",
	}, []string{"result"})

	viewQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blog_view_queue_depth",
		Help: "View events waiting in the ingest queue.",
	})

	aggregationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_job_runs_total",
		Help: "Analytics job runs by job and result.",
	}, []string{"job", "result"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_job_duration_seconds",
		Help:    "Analytics job duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	eventsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_views_swept_total",
		Help: "Raw view events deleted by the retention sweep.",
	})
)

// ObserveJob records the outcome and duration of one analytics job run.
func ObserveJob(job string, seconds float64, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInFlight):
		result = "skipped"
	default:
		result = "error"
	}
	aggregationRuns.WithLabelValues(job, result).Inc()
	aggregationDuration.WithLabelValues(job).Observe(seconds)
}
