package backend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHealth struct {
	calls    atomic.Int32
	failures int32
	ok       bool
}

func (f *fakeHealth) GetHealth(ctx context.Context) (*Health, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("connection refused")
	}
	return &Health{OK: f.ok}, nil
}

func TestWaitHealthy(t *testing.T) {
	cfg := ProbeConfig{Attempts: 3, Timeout: time.Second, Delay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		hc := &fakeHealth{failures: 2, ok: true}
		if err := WaitHealthy(context.Background(), hc, cfg); err != nil {
			t.Fatalf("WaitHealthy() error = %v", err)
		}
		if got := hc.calls.Load(); got != 3 {
			t.Errorf("calls = %d, want 3", got)
		}
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		hc := &fakeHealth{failures: 10, ok: true}
		err := WaitHealthy(context.Background(), hc, cfg)
		if !errors.Is(err, ErrUnhealthy) {
			t.Fatalf("WaitHealthy() error = %v, want ErrUnhealthy", err)
		}
		if got := hc.calls.Load(); got != 3 {
			t.Errorf("calls = %d, want 3", got)
		}
	})

	t.Run("not ok counts as failure", func(t *testing.T) {
		hc := &fakeHealth{ok: false}
		if err := WaitHealthy(context.Background(), hc, cfg); !errors.Is(err, ErrUnhealthy) {
			t.Fatalf("WaitHealthy() error = %v, want ErrUnhealthy", err)
		}
	})
}
