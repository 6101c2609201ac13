package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
		FailureRatio:     0.9,
		MinRequests:      100,
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []State
	cb := New(testConfig(), nil, func(name string, state State) {
		transitions = append(transitions, state)
	})
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(ctx, func() (interface{}, error) { return nil, boom }); err != boom {
			t.Fatalf("expected wrapped error, got %v", err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("expected open state, got %q", cb.GetState())
	}
	if len(transitions) == 0 || transitions[len(transitions)-1] != StateOpen {
		t.Errorf("state hook did not observe the open transition: %v", transitions)
	}

	_, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	if !IsOpenErr(err) {
		t.Errorf("open breaker should reject calls, got %v", err)
	}
}

func TestExecuteWithFallbackOnOpenCircuit(t *testing.T) {
	cb := New(testConfig(), nil, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, func() (interface{}, error) { return nil, boom })
	}

	result, err := cb.ExecuteWithFallback(ctx,
		func() (interface{}, error) { return nil, errors.New("unreachable") },
		func(error) (interface{}, error) { return "fallback", nil })
	if err != nil {
		t.Fatalf("fallback should succeed, got %v", err)
	}
	if result != "fallback" {
		t.Errorf("expected fallback result, got %v", result)
	}
}

func TestExecuteWithFallbackPassesThroughCallErrors(t *testing.T) {
	cb := New(testConfig(), nil, nil)
	boom := errors.New("boom")

	_, err := cb.ExecuteWithFallback(context.Background(),
		func() (interface{}, error) { return nil, boom },
		func(error) (interface{}, error) { return "fallback", nil })
	if err != boom {
		t.Errorf("a closed-circuit failure must not hit the fallback, got %v", err)
	}
}

func TestExecuteHonorsContext(t *testing.T) {
	cb := New(testConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestManagerGetOrCreate(t *testing.T) {
	m := NewManager(nil, nil)

	a := m.GetOrCreate("store", DefaultConfig("store"))
	b := m.GetOrCreate("store", DefaultConfig("store"))
	if a != b {
		t.Error("same name must return the same breaker")
	}

	c := m.GetOrCreate("broker", DefaultConfig("broker"))
	if a == c {
		t.Error("distinct names must return distinct breakers")
	}

	all := m.All()
	if len(all) != 2 {
		t.Errorf("expected 2 breakers, got %d", len(all))
	}
}
