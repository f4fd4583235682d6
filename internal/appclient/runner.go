package appclient

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattjperez/micro-rdk/internal/lib/backoff"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
)

// Runner drives periodic tasks. Each task runs in its own goroutine and is
// never invoked again before its previous invocation returned.
type Runner struct {
	log     *slog.Logger
	client  Client
	tasks   []PeriodicTask
	backoff *backoff.Exponential
}

func NewRunner(log *slog.Logger, client Client, tasks ...PeriodicTask) *Runner {
	return &Runner{
		log:     log,
		client:  client,
		tasks:   tasks,
		backoff: backoff.NewExponential(time.Second, 5*time.Minute),
	}
}

// WithBackoff replaces the retry policy applied after a failed invocation.
func (r *Runner) WithBackoff(b *backoff.Exponential) *Runner {
	r.backoff = b
	return r
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range r.tasks {
		task := task
		g.Go(func() error {
			r.run(ctx, task)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) run(ctx context.Context, task PeriodicTask) {
	log := r.log.With(slog.String("task", task.Name()))
	log.Info("periodic task scheduled", slog.Duration("period", task.DefaultPeriod()))

	delay := task.DefaultPeriod()
	failures := 0
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		next, err := task.Invoke(ctx, r.client)
		if err != nil {
			delay = r.backoff.NextDelay(failures)
			failures++
			log.Warn("periodic task failed",
				slog.Int("failures", failures),
				slog.Duration("retry_in", delay),
				sl.Err(err),
			)
			continue
		}

		failures = 0
		delay = next
		if delay <= 0 {
			delay = task.DefaultPeriod()
		}
	}
}
