package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EndpointResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "endpoint_responses_total",
		Help: "The total number of endpoint responses",
	}, []string{"endpoint", "status_code"})

	// Execution Context Metrics
	HandleCreations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_handle_creations_total",
		Help: "Total number of lazily created vendor library contexts by library",
	}, []string{"library"})

	DeviceBinds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_device_binds_total",
		Help: "Total number of device binding calls by device",
	}, []string{"device"})

	SynchronizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backend_synchronize_duration_seconds",
		Help:    "Time spent waiting for the default execution stream to drain",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12), // 1us to ~16s
	})

	FlagToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_flag_toggles_total",
		Help: "Total number of execution-mode flag writes by flag",
	}, []string{"flag"})

	// Backend Manager Metrics
	ManagedContexts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_managed_contexts",
		Help: "Number of device execution contexts currently managed",
	})

	DeviceCapabilityMajor = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backend_device_capability_major",
		Help: "Compute capability major version by device",
	}, []string{"device"})
)
