// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// StatusRefresher is the part of the offering manager the refresh job needs.
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context) (int64, error)
}

// OfferingStatusJob rewrites stored offering statuses whose window position
// has changed. Reads recompute status anyway; this keeps the stored value
// usable for queries and reports.
func OfferingStatusJob(mgr StatusRefresher, logger *zap.Logger, interval time.Duration) Job {
	if interval <= 0 {
		interval = time.Minute
	}
	return Job{
		Name:     "offering-status-refresh",
		Interval: interval,
		Run: func(ctx context.Context) error {
			count, err := mgr.RefreshStatuses(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("refreshed offering statuses", zap.Int64("count", count))
			}
			return nil
		},
	}
}
