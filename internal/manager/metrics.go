package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	gateWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vlmd",
		Subsystem: "device",
		Name:      "gate_wait_seconds",
		Help:      "Time spent waiting for the device admission gate",
		Buckets:   prometheus.DefBuckets,
	})

	gateBusy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vlmd",
		Subsystem: "device",
		Name:      "gate_busy",
		Help:      "1 while a request occupies the accelerator",
	})

	sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vlmd",
		Subsystem: "engine",
		Name:      "sessions_created_total",
		Help:      "Total inference sessions constructed (bounded by worker count)",
	})

	generatedTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vlmd",
		Subsystem: "engine",
		Name:      "generated_tokens_total",
		Help:      "Total tokens produced by decode steps",
	})

	generationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vlmd",
		Subsystem: "engine",
		Name:      "generations_total",
		Help:      "Completed generations by mode and outcome",
	}, []string{"mode", "outcome"})
)

func init() {
	prometheus.MustRegister(gateWait, gateBusy, sessionsCreated, generatedTokens, generationsTotal)
}
