// Package metrics provides Prometheus metrics for the supervised backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	supervisorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sidecar",
		Subsystem: "supervisor",
		Name:      "state",
		Help:      "1 for the supervisor's current state, 0 otherwise",
	}, []string{"state"})

	serverPort = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sidecar",
		Subsystem: "server",
		Name:      "port",
		Help:      "Port announced by the backend, 0 until known",
	})

	outputLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidecar",
		Subsystem: "server",
		Name:      "output_lines_total",
		Help:      "Lines read from the backend's output streams",
	}, []string{"stream"})

	processErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidecar",
		Subsystem: "server",
		Name:      "process_errors_total",
		Help:      "Failures observing the backend, by stream (empty for reaping)",
	}, []string{"stream"})

	readinessSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sidecar",
		Subsystem: "server",
		Name:      "readiness_seconds",
		Help:      "Time from spawn to the readiness announcement",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	exits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidecar",
		Subsystem: "server",
		Name:      "exits_total",
		Help:      "Backend exits by exit code",
	}, []string{"code"})

	navigations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidecar",
		Subsystem: "notifier",
		Name:      "navigations_total",
		Help:      "Navigation directives by outcome",
	}, []string{"result"})
)

// SetState marks state as current and clears every other known state.
func SetState(state string, known []string) {
	for _, s := range known {
		v := 0.0
		if s == state {
			v = 1
		}
		supervisorState.WithLabelValues(s).Set(v)
	}
}

// SetPort records the discovered backend port.
func SetPort(port uint16) {
	serverPort.Set(float64(port))
}

// IncOutputLine counts one line of backend output.
func IncOutputLine(stream string) {
	outputLines.WithLabelValues(stream).Inc()
}

// IncProcessError counts a failure reading a stream or reaping the backend.
func IncProcessError(stream string) {
	processErrors.WithLabelValues(stream).Inc()
}

// ObserveReadiness records how long the backend took to announce its port.
func ObserveReadiness(d time.Duration) {
	readinessSeconds.Observe(d.Seconds())
}

// IncExit counts a backend exit.
func IncExit(code int) {
	exits.WithLabelValues(strconv.Itoa(code)).Inc()
}

// IncNavigation counts a navigation attempt; delivered reports the outcome.
func IncNavigation(delivered bool) {
	result := "dropped"
	if delivered {
		result = "delivered"
	}
	navigations.WithLabelValues(result).Inc()
}

// HTTPHandler returns the Prometheus metrics HTTP handler.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
