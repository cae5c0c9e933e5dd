// Package metrics exposes Prometheus collectors for workflow transitions.
package metrics

import (
	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Transitions counts workflow operations by outcome. outcome is "ok",
	// the failure kind, or "error" for infrastructure failures.
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "coordhub", Name: "transitions_total", Help: "Workflow operations by operation and outcome."},
		[]string{"operation", "outcome"},
	)

	CascadeRejections = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "coordhub", Name: "cascade_rejections_total", Help: "Pending requests rejected because their applicant was accepted elsewhere."},
	)

	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "coordhub", Name: "notifications_dropped_total", Help: "Events dropped because the notification queue was full."},
	)

	NotificationsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "coordhub", Name: "notifications_failed_total", Help: "Events the notifier backend failed to deliver."},
	)
)

// RegisterCollectors registers the package collectors with reg.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Transitions)
	reg.MustRegister(CascadeRejections)
	reg.MustRegister(NotificationsDropped)
	reg.MustRegister(NotificationsFailed)
}

// Outcome labels err for the transitions counter.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := errs.KindOf(err); k != errs.KindUnknown {
		return k.String()
	}
	return "error"
}

// Observe records one operation and returns err unchanged.
func Observe(operation string, err error) error {
	Transitions.WithLabelValues(operation, Outcome(err)).Inc()
	return err
}
