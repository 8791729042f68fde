package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for deal processing metrics
	dealProcessingLabels = []string{"context", "status"}
	// Labels for step metrics
	stepLabels = []string{"step", "status"}
	// Labels for external API call metrics
	externalCallLabels = []string{"service", "operation", "outcome"}
	// Labels for DB operation metrics
	dbOperationLabels = []string{"operation", "table", "outcome"}

	// PollingCyclesTotal counts completed polling cycles by outcome.
	PollingCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_service_polling_cycles_total",
			Help: "Total number of polling cycles run, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	// PollingCycleDurationSeconds observes full-cycle durations.
	PollingCycleDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "onboarding_service_polling_cycle_duration_seconds",
			Help:    "Histogram of polling cycle durations.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5min
		},
	)

	// DealsDetectedTotal counts deals returned by detection.
	DealsDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "onboarding_service_deals_detected_total",
			Help: "Total number of new won deals detected.",
		},
	)

	// DealsSkippedTotal counts deals skipped during detection, labeled by reason.
	DealsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_service_deals_skipped_total",
			Help: "Total number of candidate deals skipped during detection, labeled by reason.",
		},
		[]string{"reason"},
	)

	// DealsProcessedTotal counts manager outcomes per deal, labeled by
	// processing context (new_deal, retry) and final record status.
	DealsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_service_deals_processed_total",
			Help: "Total number of deals processed by the onboarding manager, labeled by context and final status.",
		},
		dealProcessingLabels,
	)

	// PipelineStepsTotal counts step executions by terminal status.
	PipelineStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_service_pipeline_steps_total",
			Help: "Total number of pipeline step executions, labeled by step and terminal status.",
		},
		stepLabels,
	)

	// ExternalCallDurationSeconds observes remote API call durations.
	ExternalCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onboarding_service_external_call_duration_seconds",
			Help:    "Histogram of external API call durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		externalCallLabels,
	)

	// DbOperationDurationSeconds observes repository operation durations.
	DbOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onboarding_service_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		dbOperationLabels,
	)

	// AdminNotificationsTotal counts admin emails, labeled by kind and outcome.
	AdminNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_service_admin_notifications_total",
			Help: "Total number of admin notification emails attempted, labeled by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// InitMetrics initializes the Prometheus metrics if enabled.
// Call this function during application startup.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncPollingCycle increments the polling cycle counter.
func IncPollingCycle(outcome string) {
	if !metricsEnabled {
		return
	}
	PollingCyclesTotal.WithLabelValues(outcome).Inc()
}

// ObservePollingCycleDuration records one cycle's duration.
func ObservePollingCycleDuration(d time.Duration) {
	if !metricsEnabled {
		return
	}
	PollingCycleDurationSeconds.Observe(d.Seconds())
}

// IncDealsDetected adds to the detected-deals counter.
func IncDealsDetected(n int) {
	if !metricsEnabled {
		return
	}
	DealsDetectedTotal.Add(float64(n))
}

// IncDealSkipped increments the skipped-deals counter for a reason.
func IncDealSkipped(reason string) {
	if !metricsEnabled {
		return
	}
	DealsSkippedTotal.WithLabelValues(reason).Inc()
}

// IncDealProcessed increments the processed-deals counter.
func IncDealProcessed(context, status string) {
	if !metricsEnabled {
		return
	}
	DealsProcessedTotal.WithLabelValues(context, status).Inc()
}

// IncPipelineStep increments the step counter for a terminal status.
func IncPipelineStep(step, status string) {
	if !metricsEnabled {
		return
	}
	PipelineStepsTotal.WithLabelValues(step, status).Inc()
}

// ObserveExternalCallDuration records one remote call's duration.
func ObserveExternalCallDuration(service, operation string, d time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ExternalCallDurationSeconds.WithLabelValues(service, operation, outcome).Observe(d.Seconds())
}

// ObserveDbOperationDuration records one repository operation's duration.
func ObserveDbOperationDuration(operation, table string, d time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DbOperationDurationSeconds.WithLabelValues(operation, table, outcome).Observe(d.Seconds())
}

// IncAdminNotification increments the admin notification counter.
func IncAdminNotification(kind string, err error) {
	if !metricsEnabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	AdminNotificationsTotal.WithLabelValues(kind, outcome).Inc()
}
