package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tiketahq/tiketa-backend/pkg/logger"
)

const defaultStaleInterval = time.Hour

// StaleConfirmationJobParams configure the stuck-confirmation sweeper.
type StaleConfirmationJobParams struct {
	Logger   *logger.Logger
	Sweeper  staleSweeper
	Interval time.Duration
}

type staleSweeper interface {
	CancelStale(ctx context.Context) (int, error)
}

// NewStaleConfirmationJob builds the job that cancels transactions left in
// the confirmation queue past the staleness window.
func NewStaleConfirmationJob(params StaleConfirmationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("transaction sweeper required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultStaleInterval
	}
	return &staleConfirmationJob{
		logg:     params.Logger,
		sweeper:  params.Sweeper,
		interval: interval,
	}, nil
}

type staleConfirmationJob struct {
	logg     *logger.Logger
	sweeper  staleSweeper
	interval time.Duration
}

func (j *staleConfirmationJob) Name() string { return "transaction-stale" }

func (j *staleConfirmationJob) Interval() time.Duration { return j.interval }

func (j *staleConfirmationJob) Run(ctx context.Context) error {
	count, err := j.sweeper.CancelStale(ctx)
	if err != nil {
		return fmt.Errorf("cancel stale transactions: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "stale confirmation sweep complete")
	return nil
}
