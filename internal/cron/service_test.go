package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souqly/souqly-backend/pkg/logger"
)

type fakeLock struct {
	available bool
	acquired  int
	released  int
	err       error
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	f.acquired++
	if f.err != nil {
		return false, f.err
	}
	return f.available, nil
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released++
	return nil
}

type fakeJob struct {
	name string
	runs int
	err  error
}

func (f *fakeJob) Name() string { return f.name }

func (f *fakeJob) Run(ctx context.Context) error {
	f.runs++
	return f.err
}

func newCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Interval: time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func TestRunCycleExecutesJobs(t *testing.T) {
	lock := &fakeLock{available: true}
	first := &fakeJob{name: "first"}
	second := &fakeJob{name: "second", err: errors.New("boom")}
	svc := newCronService(t, lock, first, second)

	require.NoError(t, svc.runCycle(context.Background()))

	// A failing job does not stop the cycle.
	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 1, second.runs)
	assert.Equal(t, 1, lock.released)
}

func TestRunCycleSkipsWithoutLock(t *testing.T) {
	lock := &fakeLock{available: false}
	job := &fakeJob{name: "only"}
	svc := newCronService(t, lock, job)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.released)
}

func TestRunCyclePropagatesLockError(t *testing.T) {
	lock := &fakeLock{err: errors.New("redis down")}
	svc := newCronService(t, lock, &fakeJob{name: "only"})

	require.Error(t, svc.runCycle(context.Background()))
}

func TestRegistryIgnoresNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &fakeJob{name: "kept"})
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "kept", jobs[0].Name())
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "test"})})
	require.Error(t, err, "lock is required")
}
