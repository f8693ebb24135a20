// Package metrics exposes the bridge's Prometheus metrics: per-buffer
// occupancy gauges, per-endpoint state gauges, overflow counters, MQTT
// publish-acknowledgement latency, and per-CAN-channel read/write/error
// counters.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "hapcanbridge"

var (
	BufferCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffer_count",
		Help:      "Current element count of a bounded buffer.",
	}, []string{"endpoint", "buffer"})

	BufferCapacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffer_capacity",
		Help:      "Configured capacity of a bounded buffer.",
	}, []string{"endpoint", "buffer"})

	BufferOverflows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "buffer_overflows_total",
		Help:      "Count of drop-head overflow events.",
	}, []string{"endpoint", "buffer"})

	EndpointState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "endpoint_state",
		Help:      "Endpoint connection state: 0=DISCONNECTED, 1=CONNECTED.",
	}, []string{"endpoint"})

	MQTTPublishAckLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mqtt_publish_ack_latency_seconds",
		Help:      "Time from publish to broker acknowledgement (or timeout).",
		Buckets:   prometheus.DefBuckets,
	})

	MQTTPublishTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mqtt_publish_timeouts_total",
		Help:      "Count of publish acknowledgements that exhausted all retries.",
	})

	// CANFramesRead/Written/Errors are supplemented from canbuf.c's
	// per-channel int counters (frames read, frames written, errors
	// seen), kept distinct per channel label.
	CANFramesRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "can_frames_read_total",
		Help:      "Frames read per CAN channel.",
	}, []string{"channel"})

	CANFramesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "can_frames_written_total",
		Help:      "Frames written per CAN channel.",
	}, []string{"channel"})

	CANErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "can_errors_total",
		Help:      "Error-flagged frames observed per CAN channel.",
	}, []string{"channel"})

	// BufferPoolSize reports buffer.Pool.Len(): how many of the 30
	// available buffer slots are currently registered.
	BufferPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffer_pool_size",
		Help:      "Number of buffers currently registered in the process-wide pool.",
	})
)

// Register adds every metric to reg. cmd/hapcanbridge calls this once
// against prometheus.NewRegistry() at startup (not the global
// DefaultRegisterer, so tests can construct independent registries).
func Register(reg *prometheus.Registry) {
	reg.MustRegister(
		BufferCount, BufferCapacity, BufferOverflows,
		EndpointState,
		MQTTPublishAckLatency, MQTTPublishTimeouts,
		CANFramesRead, CANFramesWritten, CANErrors,
		BufferPoolSize,
	)
}
