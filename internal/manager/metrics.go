package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "a9d",
			Subsystem: "evaluator",
			Name:      "evaluations_total",
			Help:      "Evaluations by result",
		},
		[]string{"result"},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "a9d",
			Subsystem: "evaluator",
			Name:      "evaluation_duration_seconds",
			Help:      "Time from admission request to output snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "a9d",
			Subsystem: "loader",
			Name:      "loads_total",
			Help:      "Network and aux module loads by result",
		},
		[]string{"component", "result"},
	)

	backpressureTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "a9d",
			Name:      "backpressure_total",
			Help:      "Evaluations rejected because the queue was full or the wait expired",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "a9d",
			Subsystem: "evaluator",
			Name:      "queued",
			Help:      "Evaluations holding a queue slot on the current handle",
		},
	)
)

func init() {
	prometheus.MustRegister(evaluationsTotal, evaluationDuration, loadsTotal, backpressureTotal, queueDepth)
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
