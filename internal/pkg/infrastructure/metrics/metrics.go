package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacemonitor_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	BroadcastsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spacemonitor_broadcasts_total",
			Help: "Number of latest value broadcasts sent to connected clients",
		},
	)

	BroadcastErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spacemonitor_broadcast_errors_total",
			Help: "Number of broadcast ticks skipped because latest values could not be read",
		},
	)

	ClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spacemonitor_websocket_clients_dropped_total",
			Help: "Number of websocket clients dropped because their send buffer was full",
		},
	)

	ReadingsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacemonitor_readings_recorded_total",
			Help: "Number of sensor readings recorded",
		},
		[]string{"source"},
	)

	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacemonitor_alerts_raised_total",
			Help: "Number of threshold alerts raised",
		},
		[]string{"kind"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
