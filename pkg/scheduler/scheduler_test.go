package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	s, err := NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	t.Cleanup(func() { _ = s.Shutdown() })

	return s
}

// waitFor 轮询直到 cond 成立或超时.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", what)
}

func TestAddAndRemove(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()
	noop := func(context.Context) error { return nil }

	if err := s.AddInterval(ctx, "bad", 0, noop); err == nil {
		t.Fatal("zero interval accepted")
	}

	if err := s.AddInterval(ctx, "gc.scan", time.Minute, noop); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	if err := s.AddInterval(ctx, "gc.scan", time.Minute, noop); err == nil {
		t.Fatal("duplicate name accepted")
	}

	if err := s.AddCron(ctx, "nightly", "0 3 * * *", noop); err != nil {
		t.Fatalf("AddCron: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 2 || jobs[0].Name != "gc.scan" || jobs[1].Name != "nightly" {
		t.Fatalf("jobs = %+v", jobs)
	}

	if jobs[0].Status != StatusScheduled || jobs[0].Schedule != "@every 1m0s" {
		t.Fatalf("info = %+v", jobs[0])
	}

	if err := s.Remove("gc.scan"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := s.Get("gc.scan"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("Get after remove err = %v", err)
	}

	if err := s.RunNow("gc.scan"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("RunNow after remove err = %v", err)
	}
}

func TestJobResultsAreRecorded(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	var runs atomic.Int32

	if err := s.AddInterval(ctx, "tick", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	if err := s.AddInterval(ctx, "fail", 10*time.Millisecond, func(context.Context) error {
		return errors.New("blob store offline")
	}); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	if err := s.AddInterval(ctx, "boom", 10*time.Millisecond, func(context.Context) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	s.Start()

	waitFor(t, "tick to succeed", func() bool {
		info, _ := s.Get("tick")
		return runs.Load() > 0 && !info.LastSuccess.IsZero()
	})

	waitFor(t, "fail to be marked", func() bool {
		info, _ := s.Get("fail")
		return info.Status == StatusError && info.Error == "blob store offline" && info.Failures > 0
	})

	waitFor(t, "panic to be marked", func() bool {
		info, _ := s.Get("boom")
		return info.Status == StatusError && info.Error == "panic: boom"
	})
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32

	if err := s.AddInterval(context.Background(), "gc.cleanup", time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	s.Start()

	if err := s.RunNow("gc.cleanup"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	waitFor(t, "manual run", func() bool { return runs.Load() > 0 })

	info, err := s.Get("gc.cleanup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if info.NextRun.IsZero() {
		t.Fatal("next run not reported")
	}
}
