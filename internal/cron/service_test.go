package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tiketahq/tiketa-backend/pkg/logger"
)

type fakeLock struct {
	mu       sync.Mutex
	acquired bool
	deny     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	if f.deny || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = false
	return nil
}

type testJob struct {
	mu       sync.Mutex
	name     string
	interval time.Duration
	err      error
	runs     int
	done     chan struct{}
}

func (t *testJob) Name() string            { return t.name }
func (t *testJob) Interval() time.Duration { return t.interval }

func (t *testJob) Run(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	if t.done != nil && t.runs == 1 {
		close(t.done)
	}
	return t.err
}

func (t *testJob) runCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

func singleLockFactory(lock Lock) LockFactory {
	return func(string) (Lock, error) { return lock, nil }
}

func TestServiceRunsEveryJobImmediately(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	okJob := &testJob{name: "success", interval: time.Hour, done: make(chan struct{})}
	failJob := &testJob{name: "fail", interval: time.Hour, err: errors.New("boom"), done: make(chan struct{})}
	registry := NewRegistry(okJob, failJob)

	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    singleLockFactory(&fakeLock{}),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- service.Run(ctx) }()

	for _, job := range []*testJob{okJob, failJob} {
		select {
		case <-job.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("job %s never ran", job.name)
		}
	}
	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancel")
	}

	if okJob.runCount() < 1 || failJob.runCount() < 1 {
		t.Fatalf("expected both jobs to run, got %d and %d", okJob.runCount(), failJob.runCount())
	}
}

func TestServiceSkipsJobWhenLockHeld(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job := &testJob{name: "guarded", interval: time.Hour}
	lock := &fakeLock{deny: true}

	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Locks:    singleLockFactory(lock),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	service.runJob(context.Background(), job, lock)
	if job.runCount() != 0 {
		t.Fatalf("job must not run while lock is held, ran %d times", job.runCount())
	}
	if lock.acquires != 1 {
		t.Fatalf("expected one acquire attempt, got %d", lock.acquires)
	}
}
