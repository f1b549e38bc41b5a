package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request handling time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	roomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active",
			Help: "Number of live rooms",
		},
	)

	sessionCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_commands_total",
			Help: "Total number of session commands by type",
		},
		[]string{"command"},
	)

	sessionCommandErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_command_errors_total",
			Help: "Total number of rejected session commands by type",
		},
		[]string{"command"},
	)
)

// RecordHTTPMetrics records metrics for a single HTTP request.
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func SetRoomsActive(count int) {
	roomsActive.Set(float64(count))
}

func RecordCommand(command string) {
	sessionCommandsTotal.WithLabelValues(command).Inc()
}

func RecordCommandError(command string) {
	sessionCommandErrorsTotal.WithLabelValues(command).Inc()
}
