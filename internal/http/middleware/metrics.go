// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Requests are
// labelled with the registered Gin route (falling back to the raw path when
// nothing matched) and with the channel the route serves:
//
//   - api:      the versioned REST API
//   - whatsapp: the Twilio WhatsApp webhook
//   - voice:    the Twilio voice webhook
//   - web:      the websocket upgrade and the static web client
//   - tts:      synthesized audio fetched by Twilio
//   - ops:      health, docs and dev helpers
//
// Scrapes of /metrics itself are not recorded.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"channel", "method", "path", "status"},
	)

	// Webhook replies wait on the model, so buckets reach well past the
	// default 10s.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"channel", "method", "path"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
		[]string{"channel"},
	)

	// TwiML and JSON replies are small; synthesized audio is not.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 9), // 128B..8MiB
		},
		[]string{"channel", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// Channel labels.
const (
	ChannelAPI      = "api"
	ChannelWhatsApp = "whatsapp"
	ChannelVoice    = "voice"
	ChannelWeb      = "web"
	ChannelTTS      = "tts"
	ChannelOps      = "ops"
)

// ChannelOf classifies a request path. apiBase is the REST prefix, such as
// "/api/v1".
func ChannelOf(path, apiBase string) string {
	switch {
	case path == "/webhook/whatsapp":
		return ChannelWhatsApp
	case path == "/process_voice":
		return ChannelVoice
	case strings.HasPrefix(path, "/tts/"):
		return ChannelTTS
	case apiBase != "" && apiBase != "/" && strings.HasPrefix(path, apiBase+"/"):
		return ChannelAPI
	case path == "/health", path == "/metrics", strings.HasPrefix(path, "/swagger/"), strings.HasPrefix(path, "/dev/"):
		return ChannelOps
	default:
		return ChannelWeb
	}
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
//	r.Use(middleware.Metrics("/api/v1"))
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics(apiBase string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		channel := ChannelOf(c.Request.URL.Path, apiBase)
		inflight := httpInflight.WithLabelValues(channel)
		inflight.Inc()
		defer inflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(channel, method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(channel, method, path).Observe(time.Since(start).Seconds())
		// Size is -1 for hijacked websocket connections.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(channel, path).Observe(float64(size))
		}
	}
}
