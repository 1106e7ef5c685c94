package scorer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scorer's Prometheus collectors.
type Metrics struct {
	verdicts      *prometheus.CounterVec
	parseFailures prometheus.Counter
	cacheHits     prometheus.Counter
	predictTime   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfs_scorer_verdicts_total",
				Help: "Verdicts returned, by label",
			},
			[]string{"label"},
		),
		parseFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nfs_scorer_parse_failures_total",
				Help: "Samples that could not be parsed as PE images",
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nfs_scorer_cache_hits_total",
				Help: "Verdicts served from the verdict cache",
			},
		),
		predictTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nfs_scorer_predict_seconds",
				Help:    "Time spent scoring one sample",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.verdicts, m.parseFailures, m.cacheHits, m.predictTime)
	}
	return m
}

func (m *Metrics) observe(v Verdict, seconds float64) {
	if m == nil {
		return
	}
	label := "benign"
	if v.Label == LabelMalicious {
		label = "malicious"
	}
	m.verdicts.WithLabelValues(label).Inc()
	if v.ParseFailed {
		m.parseFailures.Inc()
	}
	if v.Cached {
		m.cacheHits.Inc()
	}
	m.predictTime.Observe(seconds)
}
