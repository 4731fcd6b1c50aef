package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry *prometheus.Registry

	// Forecast source calls by outcome. Watch for: one source stuck on error.
	ForecastFetchTotal *prometheus.CounterVec

	// Forecast source latency. Watch for: sources approaching the per-source timeout.
	ForecastFetchDuration *prometheus.HistogramVec

	// Hazardous upcoming hours per source in the last run.
	HazardWindows *prometheus.GaugeVec

	// Accuracy of each source as persisted by the last run.
	SourceAccuracyPercent *prometheus.GaugeVec

	// Station history calls by outcome.
	ObservationFetchTotal *prometheus.CounterVec

	// Snapshot writes by outcome (success, conflict, error, unchanged).
	SnapshotWritesTotal *prometheus.CounterVec

	// Notification deliveries by outcome (sent, skipped, failed).
	NotificationsTotal *prometheus.CounterVec

	// Wall time of one run.
	RunDuration prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	ForecastFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastFetchTotal",
			Help: "Total number of forecast source fetches",
		},
		[]string{"source", "status"},
	)
	ForecastFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastFetchDurationSeconds",
			Help:    "Forecast source latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"source"},
	)
	HazardWindows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hazardWindows",
			Help: "Upcoming hazardous forecast timesteps per source",
		},
		[]string{"source"},
	)
	SourceAccuracyPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sourceAccuracyPercent",
			Help: "Accuracy percentage per forecast source",
		},
		[]string{"source"},
	)
	ObservationFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observationFetchTotal",
			Help: "Total number of station history fetches",
		},
		[]string{"status"},
	)
	SnapshotWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotWritesTotal",
			Help: "Total number of accuracy snapshot writes",
		},
		[]string{"status"},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notificationsTotal",
			Help: "Total number of notification deliveries per outcome",
		},
		[]string{"status"},
	)
	RunDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runDurationSeconds",
			Help: "Duration of the last alert run in seconds",
		},
	)

	registry.MustRegister(
		ForecastFetchTotal, ForecastFetchDuration,
		HazardWindows, SourceAccuracyPercent,
		ObservationFetchTotal, SnapshotWritesTotal,
		NotificationsTotal, RunDuration,
	)
}
