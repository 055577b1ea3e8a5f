package driftwatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSamplesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftwatch_samples_processed_total",
		Help: "Total number of samples accepted and classified",
	})

	metricAnomaliesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftwatch_anomalies_detected_total",
		Help: "Total number of samples flagged as anomalous",
	})

	metricSamplesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftwatch_samples_dropped_total",
		Help: "Total number of samples dropped because the detector was not running",
	})

	metricSamplesInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftwatch_samples_invalid_total",
		Help: "Total number of non-finite samples rejected",
	})

	metricSensitivity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftwatch_sensitivity",
		Help: "Current anomaly sensitivity threshold in standard deviations",
	})

	metricWindowMean = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftwatch_window_mean",
		Help: "Current window mean",
	})

	metricWindowStdDev = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftwatch_window_stddev",
		Help: "Current window standard deviation",
	})
)
