package tasks

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/store/memory"
	"github.com/agentstation/orgsync/internal/store/sqlite"
	"github.com/agentstation/orgsync/internal/store/storetest"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
)

func enqueue(t *testing.T, store directory.Store, subjects ...int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, func(tx directory.Tx) error {
		for _, id := range subjects {
			if err := ScheduleDirectoryUpdate(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestScheduleDirectoryUpdate_RolledBackWithMutation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	err := store.Update(ctx, func(tx directory.Tx) error {
		p := &directory.Person{Username: "gburdell3"}
		if err := tx.SavePerson(ctx, p); err != nil {
			return err
		}
		if err := ScheduleDirectoryUpdate(ctx, tx, p.ID); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	tasks, err := store.Tasks(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := &directory.Person{Username: "gburdell3"}
	storetest.Seed(t, store, []*directory.Person{p}, nil)
	enqueue(t, store, p.ID, p.ID, p.ID)

	var seen []int64
	w := NewWorker(store, WithBatchSize(2))
	w.Register(directory.TaskKindDirectoryUpdate, HandlerFunc(func(_ context.Context, task directory.Task) error {
		seen = append(seen, task.SubjectID)
		return nil
	}))

	stats, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Succeeded: 3}, stats)
	assert.Equal(t, []int64{p.ID, p.ID, p.ID}, seen)

	done, err := store.Tasks(ctx, directory.TaskDone)
	require.NoError(t, err)
	assert.Len(t, done, 3)
}

func TestWorker_FailedTasksAreDelayed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	enqueue(t, store, 42)

	var calls atomic.Int32
	w := NewWorker(store, WithMaxAttempts(3))
	w.Register(directory.TaskKindDirectoryUpdate, HandlerFunc(func(context.Context, directory.Task) error {
		calls.Add(1)
		return errors.New("workspace down")
	}))

	stats, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1}, stats)
	assert.Equal(t, int32(1), calls.Load(), "a failed task must not be retried within the same drain")

	pending, err := store.Tasks(ctx, directory.TaskPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "workspace down", pending[0].LastError)
	assert.True(t, pending[0].AvailableAt.After(time.Now()))
}

func TestWorker_ParksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	enqueue(t, store, 42)

	w := NewWorker(store, WithMaxAttempts(2), WithMaxBackoff(0))
	w.Register(directory.TaskKindDirectoryUpdate, HandlerFunc(func(context.Context, directory.Task) error {
		return errors.New("workspace down")
	}))

	// With no backoff the task is claimable again in the same drain.
	stats, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 2}, stats)

	failed, err := store.Tasks(ctx, directory.TaskFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Attempts)
}

func TestWorker_UnknownKindFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	enqueue(t, store, 7)

	stats, err := NewWorker(store).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1}, stats)

	pending, err := store.Tasks(ctx, directory.TaskPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0].LastError, "no handler registered")
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := memory.New()
	enqueue(t, store, 1)

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(store, WithInterval(10*time.Millisecond))
	w.Register(directory.TaskKindDirectoryUpdate, HandlerFunc(func(context.Context, directory.Task) error {
		cancel()
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_CancelReleasesClaimedTasks(t *testing.T) {
	stores := map[string]func(t *testing.T) directory.Store{
		"memory": func(*testing.T) directory.Store { return memory.New() },
		"sqlite": func(t *testing.T) directory.Store {
			store, err := sqlite.New(filepath.Join(t.TempDir(), "orgsync.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			p := &directory.Person{Username: "gburdell3"}
			storetest.Seed(t, store, []*directory.Person{p}, nil)
			enqueue(t, store, p.ID, p.ID, p.ID)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			w := NewWorker(store, WithBatchSize(10))
			w.Register(directory.TaskKindDirectoryUpdate, HandlerFunc(func(context.Context, directory.Task) error {
				cancel()
				return nil
			}))

			stats, err := w.RunOnce(ctx)
			require.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, Stats{Succeeded: 1}, stats)

			done, err := store.Tasks(context.Background(), directory.TaskDone)
			require.NoError(t, err)
			assert.Len(t, done, 1, "a task finished before shutdown is recorded")

			running, err := store.Tasks(context.Background(), directory.TaskRunning)
			require.NoError(t, err)
			assert.Empty(t, running)

			pending, err := store.Tasks(context.Background(), directory.TaskPending)
			require.NoError(t, err)
			assert.Len(t, pending, 2)
			for _, task := range pending {
				assert.Zero(t, task.Attempts)
			}

			// A fresh worker picks up where the old one stopped.
			next := NewWorker(store)
			next.Register(directory.TaskKindDirectoryUpdate, HandlerFunc(func(context.Context, directory.Task) error {
				return nil
			}))
			stats, err = next.RunOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Stats{Succeeded: 2}, stats)
		})
	}
}

func TestWorker_ReclaimsExpiredClaims(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	enqueue(t, store, 42)

	// A worker that claimed the task and died.
	claimed, err := store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	var calls atomic.Int32
	handler := HandlerFunc(func(context.Context, directory.Task) error {
		calls.Add(1)
		return nil
	})

	w := NewWorker(store)
	w.Register(directory.TaskKindDirectoryUpdate, handler)
	stats, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats, "a live claim belongs to its worker")

	time.Sleep(5 * time.Millisecond)
	w = NewWorker(store, WithLease(time.Millisecond))
	w.Register(directory.TaskKindDirectoryUpdate, handler)
	stats, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Succeeded: 1}, stats)
	assert.Equal(t, int32(1), calls.Load())

	done, err := store.Tasks(ctx, directory.TaskDone)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func TestRetryDelay(t *testing.T) {
	assert.Zero(t, retryDelay(0, time.Minute))
	assert.Zero(t, retryDelay(3, 0))

	first := retryDelay(1, time.Minute)
	assert.GreaterOrEqual(t, first, time.Second)
	assert.Less(t, first, 1250*time.Millisecond)

	third := retryDelay(3, time.Minute)
	assert.GreaterOrEqual(t, third, 4*time.Second)
	assert.Less(t, third, 5*time.Second)

	capped := retryDelay(30, time.Minute)
	assert.GreaterOrEqual(t, capped, time.Minute)
	assert.Less(t, capped, 75*time.Second)
}
