// Package metrics exposes the core's internal Prometheus instrumentation:
// error-taxonomy counters, sequencer drops, hub fan-out, pipe depth/resend
// rate, and query completion. This is ambient observability, not the
// admin/telemetry dashboard (out of scope) that consumes it.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabric",
		Name:      "errors_total",
		Help:      "Recoverable errors by taxonomy kind.",
	}, []string{"kind"})

	framesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabric",
		Name:      "sequencer_frames_dropped_total",
		Help:      "Frames dropped by the sequencer, by reason.",
	}, []string{"channel", "code", "reason"})

	hubForwards = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabric",
		Name:      "hub_forwards_total",
		Help:      "Frames forwarded by the hub to another channel.",
	}, []string{"code"})

	pipeDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fabric",
		Name:      "pipe_depth",
		Help:      "Unacknowledged items in a lossless pipe (nextPut - nextAck, modular).",
	}, []string{"code", "consumer"})

	pipeResends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabric",
		Name:      "pipe_resends_total",
		Help:      "Items resent by a lossless pipe.",
	}, []string{"code", "consumer"})

	queriesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabric",
		Name:      "queries_completed_total",
		Help:      "Queries completed by terminal state.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(errorsTotal, framesDropped, hubForwards, pipeDepth, pipeResends, queriesCompleted)
}

func IncError(kind string) { errorsTotal.WithLabelValues(kind).Inc() }

func IncFrameDropped(channel, code, reason string) {
	framesDropped.WithLabelValues(channel, code, reason).Inc()
}

func IncHubForward(code string) { hubForwards.WithLabelValues(code).Inc() }

func SetPipeDepth(code, consumer string, n float64) {
	pipeDepth.WithLabelValues(code, consumer).Set(n)
}

func IncPipeResend(code, consumer string) { pipeResends.WithLabelValues(code, consumer).Inc() }

func IncQueryCompleted(state string) { queriesCompleted.WithLabelValues(state).Inc() }
