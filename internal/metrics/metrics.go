package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequestsTotal tracks outbound provider API calls.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pit_provider_requests_total",
			Help: "Total number of provider API requests made (by provider and status).",
		},
		[]string{"provider", "status"},
	)

	// ProviderRequestDuration measures the duration of outbound provider calls.
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pit_provider_request_duration_seconds",
			Help:    "Duration of provider API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"provider"},
	)

	// EnvelopeItemsTotal counts items returned to callers by source.
	EnvelopeItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pit_envelope_items_total",
			Help: "Number of data items returned in envelopes by source.",
		},
		[]string{"source", "mode"}, // mode = "pit" | "open"
	)

	// EnvelopeGapsTotal counts gaps emitted by source and gap type.
	EnvelopeGapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pit_envelope_gaps_total",
			Help: "Number of gaps emitted in envelopes by source and type.",
		},
		[]string{"source", "type"},
	)

	// GateVerdictsTotal counts gate decisions by decision and code.
	GateVerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pit_gate_verdicts_total",
			Help: "Gate verdicts by decision (allow|block) and block code.",
		},
		[]string{"decision", "code"},
	)

	// FiscalCacheAccess tracks fiscal cache hits and misses.
	FiscalCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pit_fiscal_cache_access_total",
			Help: "Fiscal resolver cache hits/misses by cache.",
		},
		[]string{"cache", "result"}, // cache = fye|periods, result = hit|miss
	)

	// NATSMessageCount tracks published audit events by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)
)

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

// IncProviderRequest increments the provider request counter.
func IncProviderRequest(provider, status string) {
	ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
}

// AddEnvelope records the items and gaps of one adapter invocation.
func AddEnvelope(source, mode string, items int, gapTypes []string) {
	EnvelopeItemsTotal.WithLabelValues(source, mode).Add(float64(items))
	for _, t := range gapTypes {
		EnvelopeGapsTotal.WithLabelValues(source, t).Inc()
	}
}

// IncVerdict increments the gate verdict counter.
func IncVerdict(decision, code string) {
	GateVerdictsTotal.WithLabelValues(decision, code).Inc()
}

// IncFiscalCache increments the fiscal cache access counter.
func IncFiscalCache(cache, result string) {
	FiscalCacheAccess.WithLabelValues(cache, result).Inc()
}

// IncNATSMessage increments the NATS publish counter.
func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}
