package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/carelogic/go-hde/pkg/circuitbreaker"
)

type flakyStore struct {
	failing bool
}

func (f *flakyStore) Read(context.Context, string) ([]json.RawMessage, error) {
	if f.failing {
		return nil, errors.New("backend down")
	}
	return []json.RawMessage{json.RawMessage(`{"a":1}`)}, nil
}

func (f *flakyStore) Write(context.Context, string, []json.RawMessage) error {
	if f.failing {
		return errors.New("backend down")
	}
	return nil
}

func trippyConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             "store",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
		FailureRatio:     0.9,
		MinRequests:      100,
	}
}

func TestBreakerStorePassesThroughWhenClosed(t *testing.T) {
	inner := &flakyStore{}
	st := WithBreaker(inner, circuitbreaker.New(trippyConfig(), nil, nil), nil)
	ctx := context.Background()

	records, err := st.Read(ctx, "c")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
	if err := st.Write(ctx, "c", records); err != nil {
		t.Errorf("write failed: %v", err)
	}
}

func TestBreakerStoreDegradesReadsWhenOpen(t *testing.T) {
	inner := &flakyStore{failing: true}
	st := WithBreaker(inner, circuitbreaker.New(trippyConfig(), nil, nil), nil)
	ctx := context.Background()

	// Trip the breaker.
	st.Read(ctx, "c")
	st.Read(ctx, "c")

	records, err := st.Read(ctx, "c")
	if err != nil {
		t.Fatalf("open-circuit read must degrade, got error %v", err)
	}
	if len(records) != 0 {
		t.Errorf("degraded read must be empty, got %d records", len(records))
	}
}

func TestBreakerStoreWritesFailFastWhenOpen(t *testing.T) {
	inner := &flakyStore{failing: true}
	st := WithBreaker(inner, circuitbreaker.New(trippyConfig(), nil, nil), nil)
	ctx := context.Background()

	st.Read(ctx, "c")
	st.Read(ctx, "c")

	if err := st.Write(ctx, "c", nil); err == nil {
		t.Error("open-circuit write must fail")
	}
}
