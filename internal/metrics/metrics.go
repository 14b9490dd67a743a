package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "partychat"

var (
	ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "connection_status",
		Help:      "Connection status: 0 disconnected, 1 connecting, 2 connected.",
	})

	ReconnectsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "reconnects_scheduled_total",
		Help:      "Counter of reconnect attempts scheduled, automatic or manual.",
	})

	RetriesExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "retries_exhausted_total",
		Help:      "Counter of disconnects that found the retry budget spent.",
	})

	Rejoins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "rejoins_total",
		Help:      "Counter of rejoin attempts after reconnect, by result.",
	}, []string{"result"})

	InboundEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "inbound_events_total",
		Help:      "Counter of decoded inbound frames by kind.",
	}, []string{"kind"})

	OutboundSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "outbound_sends_total",
		Help:      "Counter of outbound requests by kind and result.",
	}, []string{"kind", "result"})

	TranscriptRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transcript",
		Name:      "rows_total",
		Help:      "Counter of archived message rows by outcome.",
	}, []string{"outcome"})

	TranscriptFlushSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "transcript",
		Name:      "flush_seconds",
		Help:      "Latency of transcript batch flushes.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(ConnectionStatus)
	prometheus.MustRegister(ReconnectsScheduled)
	prometheus.MustRegister(RetriesExhausted)
	prometheus.MustRegister(Rejoins)
	prometheus.MustRegister(InboundEvents)
	prometheus.MustRegister(OutboundSends)
	prometheus.MustRegister(TranscriptRows)
	prometheus.MustRegister(TranscriptFlushSeconds)
}

// Result labels a request outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
