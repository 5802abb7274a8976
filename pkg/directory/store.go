package directory

import (
	"context"
	"time"
)

// Reader is the read side of the directory store. Returned values are
// copies; mutate them and pass them to Tx.SavePerson or Tx.SavePosition.
// Lookups that find nothing return an error satisfying errors.IsNotFound.
type Reader interface {
	Person(ctx context.Context, id int64) (*Person, error)
	// PersonByUsername matches case-insensitively.
	PersonByUsername(ctx context.Context, username string) (*Person, error)
	PersonByExternalID(ctx context.Context, system System, id string) (*Person, error)
	People(ctx context.Context) ([]*Person, error)

	Position(ctx context.Context, id int64) (*Position, error)
	PositionByOccupant(ctx context.Context, personID int64) (*Position, error)
	PositionByManagedTeam(ctx context.Context, teamID int64) (*Position, error)
	Positions(ctx context.Context) ([]*Position, error)
}

// Tx is a unit of work against the directory. Writes and enqueued tasks
// become visible together when the surrounding Update returns nil.
type Tx interface {
	Reader

	// SavePerson inserts the person when ID is zero (assigning ID) or
	// updates it otherwise. Uniqueness violations return an error
	// satisfying errors.IsAlreadyExists.
	SavePerson(ctx context.Context, p *Person) error
	SavePosition(ctx context.Context, p *Position) error

	// Enqueue records a deferred task in the outbox.
	Enqueue(ctx context.Context, kind TaskKind, subjectID int64) error
}

// Outbox hands committed tasks to a worker.
type Outbox interface {
	// ClaimTasks marks up to limit pending, available tasks as running
	// and returns them oldest first. Tasks left running for longer than
	// lease by a worker that died are claimed again; a lease <= 0 never
	// reclaims.
	ClaimTasks(ctx context.Context, limit int, lease time.Duration) ([]Task, error)
	CompleteTask(ctx context.Context, id int64) error
	// ReleaseTasks returns claimed tasks to pending without counting an
	// attempt. Tasks that are no longer running are left alone.
	ReleaseTasks(ctx context.Context, ids ...int64) error
	// FailTask records the failure. The task returns to pending, claimable
	// again after retryAfter, until it has failed maxAttempts times.
	FailTask(ctx context.Context, id int64, cause error, retryAfter time.Duration, maxAttempts int) error
	Tasks(ctx context.Context, status TaskStatus) ([]Task, error)
}

// Store is the directory persistence boundary.
type Store interface {
	View(ctx context.Context, fn func(r Reader) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Outbox
	Close() error
}

// TaskKind names a deferred unit of work.
type TaskKind string

// TaskKindDirectoryUpdate pushes a person's organizational attributes to Workspace.
const TaskKindDirectoryUpdate TaskKind = "directory.update"

// TaskStatus is the lifecycle state of an outbox task.
type TaskStatus string

// Task statuses.
const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task is one outbox row.
type Task struct {
	ID        int64      `json:"id" yaml:"id"`
	Kind      TaskKind   `json:"kind" yaml:"kind"`
	SubjectID int64      `json:"subject_id" yaml:"subject_id"`
	Status    TaskStatus `json:"status" yaml:"status"`
	Attempts  int        `json:"attempts" yaml:"attempts"`
	LastError string     `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	// AvailableAt is the earliest time the task may be claimed.
	AvailableAt time.Time `json:"available_at" yaml:"available_at"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}
