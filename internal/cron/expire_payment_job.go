package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tiketahq/tiketa-backend/pkg/logger"
)

const defaultExpireInterval = 5 * time.Minute

// ExpirePaymentJobParams configure the unpaid-transaction sweeper.
type ExpirePaymentJobParams struct {
	Logger   *logger.Logger
	Sweeper  overdueSweeper
	Interval time.Duration
}

type overdueSweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// NewExpirePaymentJob builds the job that expires transactions whose payment
// deadline has passed.
func NewExpirePaymentJob(params ExpirePaymentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("transaction sweeper required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultExpireInterval
	}
	return &expirePaymentJob{
		logg:     params.Logger,
		sweeper:  params.Sweeper,
		interval: interval,
	}, nil
}

type expirePaymentJob struct {
	logg     *logger.Logger
	sweeper  overdueSweeper
	interval time.Duration
}

func (j *expirePaymentJob) Name() string { return "transaction-expire" }

func (j *expirePaymentJob) Interval() time.Duration { return j.interval }

func (j *expirePaymentJob) Run(ctx context.Context) error {
	count, err := j.sweeper.ExpireOverdue(ctx)
	if err != nil {
		return fmt.Errorf("expire overdue transactions: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "payment expiration sweep complete")
	return nil
}
