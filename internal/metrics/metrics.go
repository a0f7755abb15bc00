// Package metrics exposes Prometheus counters for update runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts update runs by outcome
type Recorder struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	coupons  prometheus.Counter
	newPosts prometheus.Counter
	duration prometheus.Histogram
}

// NewRecorder creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests rely on.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "couponwatcher",
			Name:      "runs_total",
			Help:      "Update runs by final state.",
		}, []string{"state"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "couponwatcher",
			Name:      "failures_total",
			Help:      "Failed update runs by error type.",
		}, []string{"type"}),
		coupons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "couponwatcher",
			Name:      "coupons_found_total",
			Help:      "Runs that found a coupon code.",
		}),
		newPosts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "couponwatcher",
			Name:      "new_posts_total",
			Help:      "Runs whose latest post differed from the stored one.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "couponwatcher",
			Name:      "run_duration_seconds",
			Help:      "Wall time of update runs.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
		}),
	}
	if reg != nil {
		reg.MustRegister(r.runs, r.failures, r.coupons, r.newPosts, r.duration)
	}
	return r
}

// ObserveRun records one finished run. errType is empty for successful runs.
func (r *Recorder) ObserveRun(state, errType string, couponFound, isNew bool, elapsed time.Duration) {
	r.runs.WithLabelValues(state).Inc()
	if errType != "" {
		r.failures.WithLabelValues(errType).Inc()
	}
	if couponFound {
		r.coupons.Inc()
	}
	if isNew {
		r.newPosts.Inc()
	}
	r.duration.Observe(elapsed.Seconds())
}
