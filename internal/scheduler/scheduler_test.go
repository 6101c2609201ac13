package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobImmediately(t *testing.T) {
	s := New(nil)
	ran := make(chan struct{})

	var once atomic.Bool
	s.Register(Job{
		Name:     "billing",
		Interval: time.Hour,
		Run: func(ctx context.Context) (any, error) {
			if once.CompareAndSwap(false, true) {
				close(ran)
			}
			return nil, nil
		},
	})

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestSchedulerPublishesPayloads(t *testing.T) {
	s := New(nil)
	results := s.Subscribe(4)

	s.Register(Job{
		Name:     "orders",
		Interval: time.Hour,
		Run: func(ctx context.Context) (any, error) {
			return "payload", nil
		},
	})

	s.Start()
	defer s.Stop()

	select {
	case res := <-results:
		if res.Job != "orders" {
			t.Errorf("expected job orders, got %q", res.Job)
		}
		if res.Payload != "payload" {
			t.Errorf("unexpected payload: %v", res.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestSchedulerSkipsNilPayloads(t *testing.T) {
	s := New(nil)
	results := s.Subscribe(4)
	done := make(chan struct{})

	var once atomic.Bool
	s.Register(Job{
		Name:     "metrics",
		Interval: time.Hour,
		Run: func(ctx context.Context) (any, error) {
			if once.CompareAndSwap(false, true) {
				defer close(done)
			}
			return nil, nil
		},
	})

	s.Start()
	<-done
	s.Stop()

	// Stop closes subscriber channels; a published result would arrive
	// before the close.
	if res, ok := <-results; ok {
		t.Errorf("nil payload must not publish, got %+v", res)
	}
}

func TestSchedulerCountsFailures(t *testing.T) {
	s := New(nil)
	done := make(chan struct{})

	var once atomic.Bool
	s.Register(Job{
		Name:     "billing",
		Interval: time.Hour,
		Run: func(ctx context.Context) (any, error) {
			if once.CompareAndSwap(false, true) {
				defer close(done)
			}
			return nil, errors.New("tick failed")
		},
	})

	s.Start()
	<-done
	s.Stop()

	stats := s.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected stats for 1 job, got %d", len(stats))
	}
	if stats[0].Runs < 1 || stats[0].Failures < 1 {
		t.Errorf("expected at least one run and one failure: %+v", stats[0])
	}
}

func TestSchedulerStopClosesSubscribers(t *testing.T) {
	s := New(nil)
	results := s.Subscribe(1)

	s.Register(Job{
		Name:     "noop",
		Interval: time.Hour,
		Run:      func(ctx context.Context) (any, error) { return nil, nil },
	})

	s.Start()
	s.Stop()

	select {
	case _, ok := <-results:
		if ok {
			t.Error("expected closed channel after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed")
	}
}
