package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type testComponent struct {
	name      string
	startErr  error
	stopErr   error
	events    *[]string
	startCall int
	stopCall  int
}

func (c *testComponent) Start(ctx context.Context) error {
	_ = ctx
	c.startCall++
	if c.events != nil {
		*c.events = append(*c.events, "start:"+c.name)
	}
	return c.startErr
}

func (c *testComponent) Stop(ctx context.Context) error {
	_ = ctx
	c.stopCall++
	if c.events != nil {
		*c.events = append(*c.events, "stop:"+c.name)
	}
	return c.stopErr
}

func TestRuntimeStartStopOrder(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 6)
	scheduler := &testComponent{name: "scheduler", events: &events}
	metrics := &testComponent{name: "metrics", events: &events}

	runtime := NewRuntime(scheduler)
	runtime.Register(metrics)
	runtime.Register(nil)

	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("start runtime: %v", err)
	}
	if err := runtime.Stop(context.Background()); err != nil {
		t.Fatalf("stop runtime: %v", err)
	}

	expected := []string{
		"start:scheduler",
		"start:metrics",
		"stop:metrics",
		"stop:scheduler",
	}
	if !reflect.DeepEqual(events, expected) {
		t.Fatalf("unexpected order: got %v want %v", events, expected)
	}
}

func TestRuntimeStartFailureStopsStartedComponents(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 4)
	startErr := errors.New("boom")
	first := &testComponent{name: "first", events: &events}
	failing := &testComponent{name: "failing", events: &events, startErr: startErr}
	never := &testComponent{name: "never", events: &events}

	runtime := NewRuntime(first, failing, never)
	err := runtime.Start(context.Background())
	if !errors.Is(err, startErr) {
		t.Fatalf("start error = %v, want %v", err, startErr)
	}

	if first.stopCall != 1 {
		t.Fatalf("started component stopped %d times, want 1", first.stopCall)
	}
	if failing.stopCall != 0 || never.stopCall != 0 {
		t.Fatalf("unexpected stop calls: failing=%d never=%d", failing.stopCall, never.stopCall)
	}
}

func TestRuntimeStopJoinsErrors(t *testing.T) {
	t.Parallel()

	firstErr := errors.New("first stop failed")
	secondErr := errors.New("second stop failed")
	runtime := NewRuntime(
		&testComponent{name: "a", stopErr: firstErr},
		&testComponent{name: "b", stopErr: secondErr},
	)

	err := runtime.Stop(context.Background())
	if !errors.Is(err, firstErr) || !errors.Is(err, secondErr) {
		t.Fatalf("joined stop error = %v, want both failures", err)
	}
}
