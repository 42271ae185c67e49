package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/pkg/errors"
)

// passRunner is the part of the sync service the scheduler drives
type passRunner interface {
	Platforms() []domain.Platform
	SyncPlatform(ctx context.Context, platform domain.Platform) (*SyncReport, error)
	TriggerAll(ctx context.Context) (*TriggerResult, error)
}

// Scheduler triggers a sync of every platform on a fixed interval
type Scheduler struct {
	runner   passRunner
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(runner passRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, logger: logger.Named("scheduler")}
}

// Run triggers immediately and then on every tick until ctx is done. A zero
// interval disables periodic syncs.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("Periodic sync disabled")
		<-ctx.Done()
		return nil
	}

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	result, err := s.runner.TriggerAll(ctx)
	if err != nil {
		s.logger.Warn("Scheduled sync not started", zap.Error(err))
		return
	}
	s.logger.Info("Scheduled sync triggered",
		zap.Any("accepted", result.Accepted),
		zap.Any("already_running", result.AlreadyRunning),
	)
}

// RunOnce syncs every platform concurrently and waits for all passes. A
// platform whose pass is already running is skipped. Every pass runs to
// completion; their errors are joined.
func (s *Scheduler) RunOnce(ctx context.Context) ([]*SyncReport, error) {
	platforms := s.runner.Platforms()
	reports := make([]*SyncReport, len(platforms))
	errs := make([]error, len(platforms))

	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := s.runner.SyncPlatform(ctx, platform)
			reports[i] = report
			if err != nil && !errors.Is(err, ErrSyncAlreadyInProgress) {
				errs[i] = err
			}
		}()
	}
	wg.Wait()

	out := reports[:0]
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, errors.Join(errs...)
}
