package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_sessions_active",
		Help: "Open websocket chat sessions",
	})
	framesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_frames_received_total",
		Help: "Inbound websocket frames by event",
	}, []string{"event"})
)

func init() {
	prometheus.MustRegister(activeSessions, framesReceived)
}
