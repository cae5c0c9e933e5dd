// internal/app/system/workers/periodic.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/coordhub/internal/app/system/tasks"
	"go.uber.org/zap"
)

// Periodic runs each job on its own ticker until stopped.
type Periodic struct {
	jobs    []tasks.Job
	log     *zap.Logger
	timeout time.Duration
	stopCh  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewPeriodic creates a worker for jobs. timeout bounds a single run of a
// job; zero means the job's interval.
func NewPeriodic(logger *zap.Logger, timeout time.Duration, jobs ...tasks.Job) *Periodic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Periodic{
		jobs:    jobs,
		log:     logger,
		timeout: timeout,
		stopCh:  make(chan struct{}),
	}
}

// Start begins one loop per job.
func (w *Periodic) Start() {
	for _, j := range w.jobs {
		if j.Interval <= 0 || j.Run == nil {
			w.log.Warn("skipping job without interval or body", zap.String("job", j.Name))
			continue
		}
		w.wg.Add(1)
		go w.run(j)
		w.log.Info("background job started",
			zap.String("job", j.Name),
			zap.Duration("interval", j.Interval))
	}
}

// Stop signals every loop to stop and waits for in-flight runs to finish.
// It is safe to call more than once.
func (w *Periodic) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("background jobs stopped")
}

func (w *Periodic) run(j tasks.Job) {
	defer w.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(j)
		}
	}
}

// runOnce runs a single iteration of j.
func (w *Periodic) runOnce(j tasks.Job) {
	timeout := w.timeout
	if timeout <= 0 {
		timeout = j.Interval
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		w.log.Error("background job failed",
			zap.String("job", j.Name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
	}
}
