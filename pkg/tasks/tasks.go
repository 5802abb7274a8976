// Package tasks implements the deferred work that follows directory
// mutations: scheduling through the store outbox, the Workspace profile
// updater, and the worker that drains the outbox.
package tasks

import (
	"context"

	"github.com/agentstation/orgsync/pkg/directory"
)

// ScheduleDirectoryUpdate enqueues one directory update for the person in
// the same transaction as the mutation that made it necessary. The task
// becomes visible to workers only once tx commits.
func ScheduleDirectoryUpdate(ctx context.Context, tx directory.Tx, personID int64) error {
	return tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, personID)
}

// Handler processes one task.
type Handler interface {
	Handle(ctx context.Context, task directory.Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task directory.Task) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, task directory.Task) error {
	return f(ctx, task)
}
