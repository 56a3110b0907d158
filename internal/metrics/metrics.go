// Package metrics exports workflow timings and outcomes to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/token-transfer/internal/failure"
)

const namespace = "transfer"

// Collector implements workflow.Observer.
type Collector struct {
	stepDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	selected     prometheus.Histogram
}

// NewCollector registers the workflow metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of each transfer workflow step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Transfer workflow runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End to end duration of transfer workflow runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		selected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "selected_holdings",
			Help:      "Number of holdings selected to fund a transfer.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
	}

	for _, col := range []prometheus.Collector{c.stepDuration, c.runs, c.runDuration, c.selected} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveStep(step string, d time.Duration, err error) {
	c.stepDuration.WithLabelValues(step, outcome(err)).Observe(d.Seconds())
}

func (c *Collector) ObserveRun(d time.Duration, selected int, err error) {
	c.runs.WithLabelValues(outcome(err)).Inc()
	c.runDuration.Observe(d.Seconds())
	c.selected.Observe(float64(selected))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return failure.KindOf(err)
}
