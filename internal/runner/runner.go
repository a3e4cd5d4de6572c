// Package runner executes scheduled tasks under the retry policy and
// raises alerts when a task burns through its final retry.
package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

// Policy controls retry behavior. The zero value runs tasks exactly
// once and propagates their error unchanged.
type Policy struct {
	Enabled             bool
	MaxRetries          int
	RetryDelay          time.Duration
	BackoffFactor       float64
	AlertOnFinalFailure bool
}

// DefaultPolicy matches the documented operational defaults. Retry
// stays opt-in.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:             false,
		MaxRetries:          3,
		RetryDelay:          60 * time.Second,
		BackoffFactor:       2,
		AlertOnFinalFailure: true,
	}
}

// Alert describes a task that failed after its final retry.
type Alert struct {
	Task     string
	FailedAt time.Time
	Retries  int
	Reason   string
}

// Alerter delivers final-failure notifications. Delivery failures
// must never propagate into the task result.
type Alerter interface {
	Alert(ctx context.Context, a Alert)
}

// Runner wraps task execution with the retry policy.
type Runner struct {
	policy  Policy
	alerter Alerter
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// New builds a Runner. alerter may be nil when no transport is
// configured; the zap error line still fires on final failure.
func New(policy Policy, alerter Alerter, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		policy:  policy,
		alerter: alerter,
		logger:  logger,
		sleep:   sleepCtx,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run executes task under the policy. With retry disabled the task
// runs exactly once and its error comes back untouched. With retry
// enabled the task runs up to MaxRetries+1 times, waiting
// RetryDelay * BackoffFactor^n before retry n.
func (r *Runner) Run(ctx context.Context, name string, task func(context.Context) error) error {
	if !r.policy.Enabled {
		return task(ctx)
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = task(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("task recovered after retry",
					zap.String("task", name),
					zap.Int("attempt", attempt+1),
				)
			}
			return nil
		}
		if attempt >= r.policy.MaxRetries {
			break
		}
		delay := r.delayFor(attempt)
		r.logger.Warn("task failed, scheduling retry",
			zap.String("task", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return pulse.Errorf(pulse.KindInternal, "task %s aborted during retry wait: %w", name, sleepErr)
		}
	}

	r.logger.Error("task failed after final retry",
		zap.String("task", name),
		zap.Int("retries", r.policy.MaxRetries),
		zap.Error(err),
	)
	if r.policy.AlertOnFinalFailure && r.alerter != nil {
		r.alerter.Alert(ctx, Alert{
			Task:     name,
			FailedAt: r.now(),
			Retries:  r.policy.MaxRetries,
			Reason:   pulse.TruncateError(err.Error()),
		})
	}
	return err
}

func (r *Runner) delayFor(attempt int) time.Duration {
	delay := r.policy.RetryDelay
	if delay <= 0 {
		delay = 60 * time.Second
	}
	factor := r.policy.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
