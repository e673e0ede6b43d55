// Package sched drives periodic ingestion runs on a fixed interval.
package sched

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/ingest"
)

// DefaultInterval applies when the scheduler is built without one.
const DefaultInterval = 15 * time.Minute

// Runner is the operation the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (*ingest.RunStats, error)
}

// Scheduler triggers the runner immediately on start and then once per
// interval until its context is canceled. A failing run is logged and the
// schedule continues.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   log.Logger
}

// New creates a scheduler for the given runner.
func New(runner Runner, interval time.Duration, logger log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Nop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info(ctx, "scheduler started", "interval", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error(ctx, err, "scheduled ingestion run failed")
	}
}
