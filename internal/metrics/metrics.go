package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricNameBuildInfo          = "janitor_build_info"
	MetricNameNotifications      = "janitor_notifications_total"
	MetricNameParsingErrors      = "janitor_parsing_errors_total"
	MetricNameTransitions        = "janitor_transitions_total"
	MetricNameHookFailures       = "janitor_hook_failures_total"
	MetricNameCycleDuration      = "janitor_cycle_duration_seconds"
	MetricNameProviderErrors     = "janitor_provider_errors_total"
	MetricNameSweepPromotions    = "janitor_sweep_promotions_total"
	MetricNameLastCycleTimestamp = "janitor_last_cycle_timestamp_seconds"

	MetricLabelVersion    = "version"
	MetricLabelCommit     = "commit"
	MetricLabelDate       = "date"
	MetricLabelProvider   = "provider"
	MetricLabelOperation  = "operation"
	MetricLabelResult     = "result"
	MetricLabelTransition = "transition"
	MetricLabelHook       = "hook"
	MetricLabelErrorType  = "error_type"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameBuildInfo,
			Help: "Build information of the janitor",
		},
		[]string{MetricLabelVersion, MetricLabelCommit, MetricLabelDate},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameNotifications,
			Help: "Notifications applied, by provider, operation and result",
		},
		[]string{MetricLabelProvider, MetricLabelOperation, MetricLabelResult},
	)

	ParsingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameParsingErrors,
			Help: "Notifications that could not be classified or extracted",
		},
		[]string{MetricLabelProvider},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameTransitions,
			Help: "Maintenance lifecycle transitions that fired hooks",
		},
		[]string{MetricLabelTransition},
	)

	HookFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHookFailures,
			Help: "Hook invocations that returned an error or panicked",
		},
		[]string{MetricLabelHook, MetricLabelTransition},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameProviderErrors,
			Help: "Provider passes that failed before processing messages",
		},
		[]string{MetricLabelProvider, MetricLabelErrorType},
	)

	SweepPromotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSweepPromotions,
			Help: "Maintenances promoted by the time-based sweeps",
		},
		[]string{MetricLabelTransition},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameCycleDuration,
			Help:    "Duration of a full processing cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	LastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameLastCycleTimestamp,
			Help: "Unix time of the last completed cycle",
		},
	)
)
