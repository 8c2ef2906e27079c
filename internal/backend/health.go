package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// HealthChecker is implemented by Client.
type HealthChecker interface {
	GetHealth(ctx context.Context) (*Health, error)
}

// ProbeConfig bounds the pre-flight health probe.
type ProbeConfig struct {
	// Attempts is the total number of tries (default: 3)
	Attempts uint
	// Timeout bounds each attempt (default: 3s)
	Timeout time.Duration
	// Delay is the initial backoff between attempts (default: 500ms)
	Delay  time.Duration
	Logger *slog.Logger
}

func (c ProbeConfig) withDefaults() ProbeConfig {
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.Delay <= 0 {
		c.Delay = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// WaitHealthy probes the backend until it reports healthy or the attempts run
// out. The returned error wraps ErrUnhealthy.
func WaitHealthy(ctx context.Context, hc HealthChecker, cfg ProbeConfig) error {
	cfg = cfg.withDefaults()

	err := retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			h, err := hc.GetHealth(attemptCtx)
			if err != nil {
				return err
			}
			if !h.Healthy() {
				return errors.New("backend reported not ok")
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(8*cfg.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			cfg.Logger.Warn("health probe failed", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrUnhealthy, cfg.Attempts, err)
	}
	return nil
}
