package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vllm-relay/internal/upstream"
)

const (
	modeBlocking = "blocking"
	modeStream   = "stream"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_generate_requests_total", Help: "Generate requests by mode and outcome"},
		[]string{"mode", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "relay_generate_duration_seconds", Help: "End-to-end generate request durations"},
		[]string{"mode"},
	)
	streamChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "relay_stream_chunks_total", Help: "Chunks relayed to streaming clients"},
	)
	streamDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "relay_stream_dropped_lines_total", Help: "Upstream stream lines dropped as malformed or empty"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, streamChunksTotal, streamDroppedTotal)
}

func observeRequest(mode string, success bool, start time.Time) {
	outcome := "error"
	if success {
		outcome = "ok"
	}
	requestsTotal.WithLabelValues(mode, outcome).Inc()
	requestDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func recordStream(stats upstream.DecodeStats) {
	streamChunksTotal.Add(float64(stats.Events))
	streamDroppedTotal.Add(float64(stats.Dropped))
}
