package jury

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerFiresDueDeadlines(t *testing.T) {
	t.Parallel()

	fired := make(chan int64, 4)
	s := NewScheduler(func(_ context.Context, caseID int64) {
		fired <- caseID
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	defer func() {
		if err := s.Stop(context.Background()); err != nil {
			t.Fatalf("stop scheduler: %v", err)
		}
	}()

	now := time.Now()
	s.Schedule(2, now.Add(30*time.Millisecond))
	s.Schedule(1, now.Add(10*time.Millisecond))
	s.Schedule(3, now.Add(24*time.Hour))

	var got []int64
	for len(got) < 2 {
		select {
		case id := <-fired:
			got = append(got, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for deadlines, got %v", got)
		}
	}
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("deadlines fired out of order: %v", got)
	}

	select {
	case id := <-fired:
		t.Fatalf("far deadline fired early: %d", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerPastDeadlineFiresImmediately(t *testing.T) {
	t.Parallel()

	fired := make(chan int64, 1)
	s := NewScheduler(func(_ context.Context, caseID int64) {
		fired <- caseID
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	defer s.Stop(context.Background())

	s.Schedule(7, time.Now().Add(-time.Minute))

	select {
	case id := <-fired:
		if id != 7 {
			t.Fatalf("fired case %d, want 7", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("past deadline never fired")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewScheduler(func(context.Context, int64) {})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
