package cron

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/flemzord/utsuwa/internal/telemetry"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)

	err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"})
	if err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}

	err = s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"})
	if err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"})

	err := s.Start()
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		ok   bool
	}{
		{"*/10 * * * *", true},
		{"0 3 * * *", true},
		{"@daily", true},
		{"@every 1h", true},
		{"0 0 3 * * *", false},
		{"61 * * * *", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, err := ParseSchedule(tt.expr); (err == nil) != tt.ok {
			t.Errorf("ParseSchedule(%q) error = %v, want ok=%v", tt.expr, err, tt.ok)
		}
	}
}

func TestScheduler_StartAcceptsDescriptors(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{name: "autosave", schedule: "@daily"})
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_ = s.Stop(t.Context())
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_NilLogger(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil) // should not panic
	if s.logger == nil {
		t.Fatal("logger should default to slog.Default()")
	}
}

func TestScheduler_NoParallelExecution(t *testing.T) {
	t.Parallel()

	var concurrent, maxConcurrent atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{
		name:     "slow",
		schedule: "* * * * *",
		runFunc: func(_ context.Context) error {
			c := concurrent.Add(1)
			for {
				old := maxConcurrent.Load()
				if c <= old || maxConcurrent.CompareAndSwap(old, c) {
					break
				}
			}
			close(started)
			<-release
			concurrent.Add(-1)
			return nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- s.RunNow(t.Context(), "slow") }()
	<-started

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			if err := s.RunNow(t.Context(), "slow"); !errors.Is(err, ErrJobBusy) {
				t.Errorf("overlapping RunNow = %v, want ErrJobBusy", err)
			}
		})
	}
	wg.Wait()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if maxConcurrent.Load() > 1 {
		t.Errorf("max concurrent = %d, want <= 1", maxConcurrent.Load())
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	job := &simpleJob{name: "once", schedule: "@daily", runFunc: func(context.Context) error { return boom }}
	s := NewScheduler(slog.Default(), telemetry.NewMetrics())
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow(t.Context(), "once"); !errors.Is(err, boom) {
		t.Errorf("RunNow = %v, want job error", err)
	}
	if err := s.RunNow(t.Context(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(missing) = %v, want ErrUnknownJob", err)
	}
	if job.calls != 1 {
		t.Errorf("calls = %d, want 1", job.calls)
	}
}

func TestScheduler_Jobs(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil)
	_ = s.RegisterJob(&simpleJob{name: "b", schedule: "* * * * *"})
	_ = s.RegisterJob(&simpleJob{name: "a", schedule: "* * * * *"})

	if got := s.Jobs(); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("Jobs = %v", got)
	}
}

func TestScheduler_JobError(t *testing.T) {
	t.Parallel()

	// Verify that job errors don't crash the scheduler.
	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{
		name:     "failing",
		schedule: "* * * * *",
		runFunc: func(_ context.Context) error {
			return errors.New("job failed")
		},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// The scheduler should still be running after a job error.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)
	// Stop without Start should not panic.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
