package merge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	unitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Subsystem: "merge",
		Name:      "unit_duration_seconds",
		Help:      "Time spent reconciling one (term, subject) unit.",
	})

	unitFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Subsystem: "merge",
		Name:      "unit_failures_total",
		Help:      "Reconciliation units that aborted.",
	})

	rowChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Subsystem: "merge",
		Name:      "row_changes_total",
		Help:      "Catalog rows changed by reconciliation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(unitDuration, unitFailures, rowChanges)
}

func observeUnit(result UnitResult, elapsed time.Duration) {
	unitDuration.Observe(elapsed.Seconds())

	if result.Err != nil {
		unitFailures.Inc()
		return
	}

	rowChanges.WithLabelValues("create").Add(float64(result.Created))
	rowChanges.WithLabelValues("update").Add(float64(result.Updated))
	rowChanges.WithLabelValues("delete").Add(float64(result.Deleted))
}
