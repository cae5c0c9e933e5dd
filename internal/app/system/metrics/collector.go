package metrics

import (
	"context"
	"time"

	metricsstore "github.com/dalemusser/coordhub/internal/app/store/metrics"
	"github.com/dalemusser/coordhub/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus"
)

// CountsFunc loads the workflow totals at scrape time.
type CountsFunc func(ctx context.Context, now time.Time) metricsstore.Counts

// CountsCollector exports workflow totals as gauges, computed on scrape.
type CountsCollector struct {
	fetch   CountsFunc
	timeout time.Duration

	actors    *prometheus.Desc
	offerings *prometheus.Desc
	slots     *prometheus.Desc
	requests  *prometheus.Desc
}

func NewCountsCollector(fetch CountsFunc, timeout time.Duration) *CountsCollector {
	return &CountsCollector{
		fetch:     fetch,
		timeout:   timeout,
		actors:    prometheus.NewDesc("coordhub_actors", "Actors by role.", []string{"role"}, nil),
		offerings: prometheus.NewDesc("coordhub_open_offerings", "Offerings whose window contains now.", nil, nil),
		slots:     prometheus.NewDesc("coordhub_committed_slots", "Offering slots held by approved requests.", nil, nil),
		requests:  prometheus.NewDesc("coordhub_requests", "Coordination requests by status.", []string{"status"}, nil),
	}
}

func (c *CountsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.actors
	ch <- c.offerings
	ch <- c.slots
	ch <- c.requests
}

func (c *CountsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts := c.fetch(ctx, time.Now().UTC())

	ch <- prometheus.MustNewConstMetric(c.actors, prometheus.GaugeValue, float64(counts.Sponsors), models.RoleSponsor)
	ch <- prometheus.MustNewConstMetric(c.actors, prometheus.GaugeValue, float64(counts.Applicants), models.RoleApplicant)
	ch <- prometheus.MustNewConstMetric(c.offerings, prometheus.GaugeValue, float64(counts.OpenOfferings))
	ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(counts.CommittedSlots))

	for _, s := range []models.RequestStatus{
		models.RequestPending,
		models.RequestApproved,
		models.RequestRejected,
		models.RequestDocumentPending,
		models.RequestCompleted,
	} {
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.GaugeValue, float64(counts.RequestsByStatus[s]), string(s))
	}
}
