// Package memory provides an in-memory implementation of directory.Store.
// Each Update works on a private copy of the directory which replaces the
// shared state only when the callback returns nil, so a failed unit of work
// leaves no trace. It backs tests and dry runs.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
)

// Ensure Store implements directory.Store.
var _ directory.Store = (*Store)(nil)

// Store is a concurrency-safe in-memory directory.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

type state struct {
	people    map[int64]*directory.Person
	positions map[int64]*directory.Position
	tasks     []directory.Task

	nextPersonID   int64
	nextPositionID int64
	nextTaskID     int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		state: &state{
			people:    make(map[int64]*directory.Person),
			positions: make(map[int64]*directory.Position),
		},
		now: time.Now,
	}
}

// View runs fn against a consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(r directory.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{state: s.state})
}

// Update runs fn in a unit of work and commits it if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(t directory.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(&tx{state: staged, now: s.now}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// ClaimTasks marks up to limit available tasks as running, including tasks
// whose lease has expired.
func (s *Store) ClaimTasks(ctx context.Context, limit int, lease time.Duration) ([]directory.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var claimed []directory.Task
	for i := range s.state.tasks {
		if len(claimed) >= limit {
			break
		}
		t := &s.state.tasks[i]
		ready := t.Status == directory.TaskPending && !t.AvailableAt.After(now)
		expired := t.Status == directory.TaskRunning && lease > 0 && !t.UpdatedAt.After(now.Add(-lease))
		if !ready && !expired {
			continue
		}
		t.Status = directory.TaskRunning
		t.UpdatedAt = now
		claimed = append(claimed, *t)
	}
	return claimed, nil
}

// CompleteTask marks a task done.
func (s *Store) CompleteTask(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.state.task(id)
	if err != nil {
		return err
	}
	t.Status = directory.TaskDone
	t.UpdatedAt = s.now()
	return nil
}

// ReleaseTasks puts running tasks back to pending.
func (s *Store) ReleaseTasks(ctx context.Context, ids ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, id := range ids {
		t, err := s.state.task(id)
		if err != nil {
			continue
		}
		if t.Status == directory.TaskRunning {
			t.Status = directory.TaskPending
			t.UpdatedAt = now
		}
	}
	return nil
}

// FailTask records a failed attempt.
func (s *Store) FailTask(ctx context.Context, id int64, cause error, retryAfter time.Duration, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.state.task(id)
	if err != nil {
		return err
	}
	t.Attempts++
	if cause != nil {
		t.LastError = cause.Error()
	}
	now := s.now()
	t.Status = directory.TaskPending
	if t.Attempts >= maxAttempts {
		t.Status = directory.TaskFailed
	}
	t.AvailableAt = now.Add(retryAfter)
	t.UpdatedAt = now
	return nil
}

// Tasks lists tasks with the given status, or all tasks when status is empty.
func (s *Store) Tasks(ctx context.Context, status directory.TaskStatus) ([]directory.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []directory.Task
	for _, t := range s.state.tasks {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (st *state) clone() *state {
	c := &state{
		people:         make(map[int64]*directory.Person, len(st.people)),
		positions:      make(map[int64]*directory.Position, len(st.positions)),
		tasks:          make([]directory.Task, len(st.tasks)),
		nextPersonID:   st.nextPersonID,
		nextPositionID: st.nextPositionID,
		nextTaskID:     st.nextTaskID,
	}
	for id, p := range st.people {
		c.people[id] = p.Clone()
	}
	for id, p := range st.positions {
		c.positions[id] = p.Clone()
	}
	copy(c.tasks, st.tasks)
	return c
}

func (st *state) task(id int64) (*directory.Task, error) {
	for i := range st.tasks {
		if st.tasks[i].ID == id {
			return &st.tasks[i], nil
		}
	}
	return nil, errors.NewNotFoundError("task", strconv.FormatInt(id, 10))
}

func (st *state) sortedPeople() []*directory.Person {
	out := make([]*directory.Person, 0, len(st.people))
	for _, p := range st.people {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *state) sortedPositions() []*directory.Position {
	out := make([]*directory.Position, 0, len(st.positions))
	for _, p := range st.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
