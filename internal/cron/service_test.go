package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/mdelarosa/tallypos-backend/pkg/logger"
)

type recordingJob struct {
	name string
	runs int
	err  error
}

func (r *recordingJob) Name() string { return r.name }

func (r *recordingJob) Run(context.Context) error {
	r.runs++
	return r.err
}

type stubLock struct {
	acquired bool
	releases int
}

func (s *stubLock) Acquire(context.Context) (bool, error) { return s.acquired, nil }

func (s *stubLock) Release(context.Context) error {
	s.releases++
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestRunCycleExecutesJobs(t *testing.T) {
	job := &recordingJob{name: "job-a"}
	failing := &recordingJob{name: "job-b", err: errors.New("boom")}
	lock := &stubLock{acquired: true}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job, failing),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d/%d", job.runs, failing.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock release, got %d", lock.releases)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &recordingJob{name: "job-a"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &stubLock{acquired: false},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("jobs must not run without the lock, got %d runs", job.runs)
	}
}

func TestRegistrySkipsNilAndCopies(t *testing.T) {
	registry := NewRegistry(nil, &recordingJob{name: "a"})
	registry.Register(nil)
	jobs := registry.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("Jobs must return a copy")
	}
}
