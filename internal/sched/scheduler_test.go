package sched

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"amuguard/internal/detect"
	"amuguard/internal/logging"
)

func countingJob(name string, runs *atomic.Int64) Job {
	return Job{
		Name:  name,
		Every: time.Hour,
		Run: func(ctx context.Context) (detect.Summary, error) {
			runs.Add(1)
			return detect.Summary{FarmsChecked: 1, AlertsCreated: 1}, nil
		},
	}
}

func TestRegisterValidation(t *testing.T) {
	s := New(logging.Discard(), false)
	if err := s.Register(Job{Name: "", Every: time.Hour, Run: func(context.Context) (detect.Summary, error) { return detect.Summary{}, nil }}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if err := s.Register(Job{Name: "j", Every: 0, Run: func(context.Context) (detect.Summary, error) { return detect.Summary{}, nil }}); err == nil {
		t.Fatal("expected error for zero cadence")
	}
	var runs atomic.Int64
	if err := s.Register(countingJob("j", &runs)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register(countingJob("j", &runs)); err == nil {
		t.Fatal("expected error for duplicate name")
	}
}

func TestTrigger(t *testing.T) {
	s := New(logging.Discard(), false)
	var runs atomic.Int64
	if err := s.Register(countingJob("detect_usage", &runs)); err != nil {
		t.Fatalf("register: %v", err)
	}

	sum, err := s.Trigger(context.Background(), "detect_usage")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if sum.FarmsChecked != 1 || runs.Load() != 1 {
		t.Fatalf("summary = %+v runs = %d", sum, runs.Load())
	}

	if _, err := s.Trigger(context.Background(), "nope"); err == nil || !strings.Contains(err.Error(), "unknown job") {
		t.Fatalf("err = %v, want unknown job", err)
	}
}

func TestTriggerWrapsJobError(t *testing.T) {
	s := New(logging.Discard(), false)
	boom := errors.New("boom")
	err := s.Register(Job{
		Name:  "failing",
		Every: time.Hour,
		Run:   func(context.Context) (detect.Summary, error) { return detect.Summary{}, boom },
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Trigger(context.Background(), "failing"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestNamesSorted(t *testing.T) {
	s := New(logging.Discard(), false)
	var runs atomic.Int64
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.Register(countingJob(name, &runs)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	names := s.Names()
	if len(names) != 3 || names[0] != "alpha" || names[2] != "zeta" {
		t.Fatalf("names = %v", names)
	}
}

func TestStartRunOnStartAndShutdown(t *testing.T) {
	s := New(logging.Discard(), true)
	var runs atomic.Int64
	if err := s.Register(countingJob("startup", &runs)); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("run-on-start never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
