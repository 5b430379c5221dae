package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tiketahq/tiketa-backend/pkg/logger"
)

type fakeSweeper struct {
	expired int
	stale   int
	err     error

	expireCalls int
	staleCalls  int
}

func (f *fakeSweeper) ExpireOverdue(ctx context.Context) (int, error) {
	f.expireCalls++
	return f.expired, f.err
}

func (f *fakeSweeper) CancelStale(ctx context.Context) (int, error) {
	f.staleCalls++
	return f.stale, f.err
}

func TestExpirePaymentJobRunsSweeper(t *testing.T) {
	sweeper := &fakeSweeper{expired: 3}
	job, err := NewExpirePaymentJob(ExpirePaymentJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewExpirePaymentJob: %v", err)
	}

	if job.Name() != "transaction-expire" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if job.Interval() != 5*time.Minute {
		t.Fatalf("unexpected default interval %s", job.Interval())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.expireCalls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.expireCalls)
	}
}

func TestExpirePaymentJobPropagatesErrors(t *testing.T) {
	job, err := NewExpirePaymentJob(ExpirePaymentJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: &fakeSweeper{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewExpirePaymentJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStaleConfirmationJobRunsSweeper(t *testing.T) {
	sweeper := &fakeSweeper{stale: 2}
	job, err := NewStaleConfirmationJob(StaleConfirmationJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Sweeper:  sweeper,
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewStaleConfirmationJob: %v", err)
	}

	if job.Name() != "transaction-stale" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if job.Interval() != time.Hour {
		t.Fatalf("unexpected interval %s", job.Interval())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.staleCalls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.staleCalls)
	}
}

func TestStaleConfirmationJobRequiresSweeper(t *testing.T) {
	_, err := NewStaleConfirmationJob(StaleConfirmationJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err == nil {
		t.Fatal("expected error without sweeper")
	}
}
