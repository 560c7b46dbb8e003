// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// setup for the chat client.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	EventsPublished      = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_events_published_total", Help: "Events published to the app event bus"})
	ChatMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_received_total", Help: "Inbound chat messages decoded from EventSub"})
	SendsSucceeded       = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_sends_succeeded_total", Help: "Outbound chat sends that succeeded"})
	SendsFailed          = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_sends_failed_total", Help: "Outbound chat sends that failed"})
	AuthAttempts         = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_auth_attempts_total", Help: "Credential acquisition attempts across all strategies"})
	AuthFailures         = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_auth_failures_total", Help: "Credential acquisition attempts that failed"})

	// Frames by envelope kind (session_welcome, notification, session_keepalive, ...)
	WSFrames = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_ws_frames_total", Help: "Inbound EventSub frames by envelope kind"}, []string{"kind"})

	// Histograms (seconds)
	SendDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_send_duration_seconds", Help: "Outbound send duration seconds", Buckets: prometheus.DefBuckets})
)

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}
