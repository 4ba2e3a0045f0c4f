// Package supervisor owns a set of named long-running tasks, restarts the
// ones that fail recoverably with bounded exponential backoff, and
// cancels every peer the moment any task ends terminally.
//
// Tasks are fanned out and torn down through a single shared cancellation
// signal, built on golang.org/x/sync/errgroup so the first real task
// failure and the shared cancellation both fall out of one Wait call
// instead of manual bookkeeping.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/diegopy/order-aggregator/internal/backoff"
)

// TaskFunc is a supervised task body. It must return promptly once ctx is
// cancelled (cancellation races every long wait a task might be blocked
// on), and must return nil, not an error, for the expected clean-shutdown
// paths: ctx cancellation and downstream closure.
type TaskFunc func(ctx context.Context) error

// BackoffConfig configures the retry schedule for a supervised-with-backoff
// task.
type BackoffConfig struct {
	Retries int
	Min     time.Duration
	Max     time.Duration
	Jitter  time.Duration
}

type registeredTask struct {
	name    string
	fn      TaskFunc
	backoff *BackoffConfig // nil means single-shot
}

// Outcome describes how one registered task finished.
type Outcome struct {
	Task string
	Err  error // nil on clean exit (success, downstream closure, or cancellation)
}

// Supervisor owns a set of named tasks and the single cancellation signal
// shared by all of them.
type Supervisor struct {
	logger *zap.Logger
	tasks  []registeredTask
}

// New returns an empty Supervisor. A nil logger is replaced with a no-op
// logger so callers never need a nil check.
func New(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{logger: logger}
}

// Supervise registers a supervised-with-backoff task: fn is re-invoked up
// to cfg.Retries times, with delays drawn from the bounded exponential
// schedule in cfg, whenever it returns a non-nil error.
func (s *Supervisor) Supervise(name string, cfg BackoffConfig, fn TaskFunc) {
	c := cfg
	s.tasks = append(s.tasks, registeredTask{name: name, fn: fn, backoff: &c})
}

// Once registers a single-shot task: any termination of fn, successful or
// not, triggers global cancellation of every peer task.
func (s *Supervisor) Once(name string, fn TaskFunc) {
	s.tasks = append(s.tasks, registeredTask{name: name, fn: fn})
}

// Run starts every registered task and blocks until all of them have
// finished. The moment any one task completes, for any reason, the
// shared cancellation signal fires so the rest drain. It returns the
// per-task outcomes and a non-nil error iff some task was declared dead
// (backoff exhausted) or a single-shot task failed; that is the only
// condition that should translate into a non-zero process exit code.
func (s *Supervisor) Run(parent context.Context) ([]Outcome, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	outcomes := make([]Outcome, len(s.tasks))
	var g errgroup.Group

	for i, t := range s.tasks {
		i, t := i, t
		g.Go(func() error {
			defer cancel() // any task ending fans cancellation out to peers

			var err error
			if t.backoff != nil {
				err = s.runWithBackoff(ctx, t)
			} else {
				err = t.fn(ctx)
			}
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			outcomes[i] = Outcome{Task: t.name, Err: err}

			if err == nil {
				return nil
			}
			return newTaskError(t.name, err)
		})
	}

	return outcomes, g.Wait()
}

// runWithBackoff re-invokes fn until it succeeds, ctx is cancelled, or the
// configured retry budget is exhausted.
func (s *Supervisor) runWithBackoff(ctx context.Context, t registeredTask) error {
	sched := backoff.NewExponential(t.backoff.Min, t.backoff.Max, t.backoff.Jitter)

	for attempt := 0; ; attempt++ {
		err := t.fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= t.backoff.Retries {
			s.logger.Error("task exhausted retries, declaring it dead",
				zap.String("task", t.name),
				zap.Int("retries", t.backoff.Retries),
				zap.Error(err),
			)
			return fmt.Errorf("exhausted %d retries: %w", t.backoff.Retries, err)
		}

		delay := sched.NextDuration()
		s.logger.Warn("task failed, retrying with backoff",
			zap.String("task", t.name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
