package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/metrics"
)

// Stats summarizes one drain of the outbox.
type Stats struct {
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Worker claims committed tasks from the outbox and runs their handlers.
// Delivery is at least once; handlers recompute from current state.
type Worker struct {
	outbox      directory.Outbox
	handlers    map[directory.TaskKind]Handler
	batchSize   int
	maxAttempts int
	interval    time.Duration
	maxBackoff  time.Duration
	lease       time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithBatchSize sets the number of tasks claimed per poll.
func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithMaxAttempts sets the number of failures after which a task is parked.
func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithInterval sets the poll interval used by Run.
func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMaxBackoff caps the delay before a failed task is retried.
func WithMaxBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d >= 0 {
			w.maxBackoff = d
		}
	}
}

// WithLease sets how long a claimed task may stay running before another
// worker may take it over.
func WithLease(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lease = d
		}
	}
}

// NewWorker creates a worker over outbox.
func NewWorker(outbox directory.Outbox, opts ...WorkerOption) *Worker {
	w := &Worker{
		outbox:      outbox,
		handlers:    make(map[directory.TaskKind]Handler),
		batchSize:   constants.WorkerBatchSize,
		maxAttempts: constants.MaxTaskAttempts,
		interval:    constants.WorkerPollInterval,
		maxBackoff:  constants.TaskMaxBackoff,
		lease:       constants.TaskLease,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register sets the handler for a task kind.
func (w *Worker) Register(kind directory.TaskKind, h Handler) {
	w.handlers[kind] = h
}

// RunOnce processes tasks until the outbox has no pending work. When ctx is
// cancelled, claimed tasks that have not been started go back to pending.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	for {
		claimed, err := w.outbox.ClaimTasks(ctx, w.batchSize, w.lease)
		if err != nil {
			return stats, err
		}
		if len(claimed) == 0 {
			return stats, nil
		}
		for i, task := range claimed {
			if ctx.Err() != nil {
				w.release(ctx, claimed[i:])
				return stats, ctx.Err()
			}
			if err := w.process(ctx, task); err != nil {
				stats.Failed++
				if ctx.Err() != nil {
					w.release(ctx, claimed[i+1:])
					return stats, ctx.Err()
				}
				continue
			}
			stats.Succeeded++
		}
	}
}

func (w *Worker) release(ctx context.Context, tasks []directory.Task) {
	if len(tasks) == 0 {
		return
	}
	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	if err := w.outbox.ReleaseTasks(context.WithoutCancel(ctx), ids...); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Ints64("task_ids", ids).Msg("Failed to release claimed tasks")
	}
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	logger := logging.Ctx(ctx)
	logger.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		stats, err := w.RunOnce(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Info().Msg("Worker stopped")
			return nil
		case err != nil:
			logger.Warn().Err(err).Msg("Worker poll failed")
		case stats.Succeeded+stats.Failed > 0:
			logger.Info().Int("succeeded", stats.Succeeded).Int("failed", stats.Failed).Msg("Processed tasks")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("Worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) process(ctx context.Context, task directory.Task) error {
	ctx = logging.WithFields(ctx, map[string]any{
		"task_id":    task.ID,
		"task_kind":  string(task.Kind),
		"subject_id": task.SubjectID,
	})
	logger := logging.Ctx(ctx)
	start := time.Now()

	handler, ok := w.handlers[task.Kind]
	var err error
	if !ok {
		err = fmt.Errorf("no handler registered for task kind %q", task.Kind)
	} else {
		err = handler.Handle(ctx, task)
	}

	if err == nil {
		metrics.RecordTask(string(task.Kind), metrics.OutcomeSuccess, time.Since(start).Seconds())
		if cerr := w.outbox.CompleteTask(context.WithoutCancel(ctx), task.ID); cerr != nil {
			logger.Warn().Err(cerr).Msg("Failed to mark task done")
		}
		return nil
	}

	outcome := metrics.OutcomeFailure
	if task.Attempts+1 >= w.maxAttempts {
		outcome = metrics.OutcomeParked
	}
	metrics.RecordTask(string(task.Kind), outcome, time.Since(start).Seconds())
	logger.Error().Err(err).Int("attempt", task.Attempts+1).Msg("Task failed")

	// Record the failure even if ctx was cancelled mid-handler.
	retryAfter := retryDelay(task.Attempts+1, w.maxBackoff)
	if ferr := w.outbox.FailTask(context.WithoutCancel(ctx), task.ID, err, retryAfter, w.maxAttempts); ferr != nil {
		logger.Warn().Err(ferr).Msg("Failed to record task failure")
	}
	return err
}

// retryDelay doubles from one second per attempt, capped at max, with up
// to a quarter of the delay added as jitter.
func retryDelay(attempts int, max time.Duration) time.Duration {
	if attempts <= 0 || max <= 0 {
		return 0
	}
	d := time.Second
	for i := 1; i < attempts && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	if jitter := int64(d / 4); jitter > 0 {
		d += time.Duration(rand.Int64N(jitter))
	}
	return d
}
