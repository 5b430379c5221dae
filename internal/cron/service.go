package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/logger"
	"github.com/tiketahq/tiketa-backend/pkg/metrics"
)

const defaultInterval = time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LockFactory builds the distributed lock guarding one job's runs.
type LockFactory func(jobName string) (Lock, error)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
}

// Service runs each registered job on its own cadence. Every job gets an
// immediate first run, then ticks at its declared interval; a per-job Redis
// lock keeps multiple worker instances from sweeping the same rows.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
	}, nil
}

// Run starts one loop per registered job and blocks until the context is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	jobs := s.registry.Jobs()
	var wg sync.WaitGroup
	for _, job := range jobs {
		lock, err := s.locks(job.Name())
		if err != nil {
			return fmt.Errorf("build lock for %s: %w", job.Name(), err)
		}
		wg.Add(1)
		go func(job Job, lock Lock) {
			defer wg.Done()
			s.runLoop(ctx, job, lock)
		}(job, lock)
	}
	wg.Wait()
	s.logg.Info(ctx, "cron service stopped")
	return ctx.Err()
}

func (s *Service) runLoop(ctx context.Context, job Job, lock Lock) {
	interval := job.Interval()
	if interval <= 0 {
		interval = defaultInterval
	}

	s.runJob(ctx, job, lock)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, job, lock)
		}
	}
}

func (s *Service) runJob(ctx context.Context, job Job, lock Lock) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire failed", err)
		s.recordFailure(job.Name())
		return
	}
	if !locked {
		s.logg.Info(jobCtx, "another worker holds the lock; skipping this run")
		return
	}
	defer func() {
		if relErr := lock.Release(jobCtx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = job.Run(jobCtx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(job.Name())
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}
