// Package storetest provides a behavioral test suite shared by every
// directory.Store implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
)

// Run exercises a store created by newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) directory.Store) {
	t.Run("insert assigns ids and reads back", func(t *testing.T) {
		testInsertAndRead(t, newStore(t))
	})
	t.Run("username lookup is case-insensitive", func(t *testing.T) {
		testUsernameLookup(t, newStore(t))
	})
	t.Run("uniqueness is enforced", func(t *testing.T) {
		testUniqueness(t, newStore(t))
	})
	t.Run("failed update leaves no trace", func(t *testing.T) {
		testRollback(t, newStore(t))
	})
	t.Run("positions", func(t *testing.T) {
		testPositions(t, newStore(t))
	})
	t.Run("outbox", func(t *testing.T) {
		testOutbox(t, newStore(t))
	})
	t.Run("failed tasks wait out their retry delay", func(t *testing.T) {
		testOutboxRetryDelay(t, newStore(t))
	})
	t.Run("expired claims are claimed again", func(t *testing.T) {
		testOutboxLease(t, newStore(t))
	})
	t.Run("released tasks are pending again", func(t *testing.T) {
		testOutboxRelease(t, newStore(t))
	})
}

// Seed inserts people and positions in one unit of work.
func Seed(t *testing.T, store directory.Store, people []*directory.Person, positions []*directory.Position) {
	t.Helper()
	err := store.Update(context.Background(), func(tx directory.Tx) error {
		for _, p := range people {
			if err := tx.SavePerson(context.Background(), p); err != nil {
				return err
			}
		}
		for _, p := range positions {
			if err := tx.SavePosition(context.Background(), p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func testInsertAndRead(t *testing.T, store directory.Store) {
	ctx := context.Background()
	p := &directory.Person{
		Username:       "gburdell3",
		FirstName:      "George",
		LastName:       "Burdell",
		Email:          "gburdell3@gatech.edu",
		Active:         true,
		ApiaryUserID:   directory.Int64(12),
		KeycloakUserID: directory.String("kc-1"),
		Title:          directory.String("Treasurer"),
		PrimaryTeamID:  directory.Int64(5),
	}
	Seed(t, store, []*directory.Person{p}, nil)
	require.NotZero(t, p.ID)

	err := store.View(ctx, func(r directory.Reader) error {
		got, err := r.Person(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p, got)

		byID, err := r.PersonByExternalID(ctx, directory.SystemApiary, "12")
		require.NoError(t, err)
		assert.Equal(t, p.ID, byID.ID)

		byKC, err := r.PersonByExternalID(ctx, directory.SystemKeycloak, "kc-1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, byKC.ID)

		_, err = r.PersonByExternalID(ctx, directory.SystemRamp, "missing")
		assert.True(t, errors.IsNotFound(err))

		_, err = r.Person(ctx, 999)
		assert.True(t, errors.IsNotFound(err))

		people, err := r.People(ctx)
		require.NoError(t, err)
		assert.Len(t, people, 1)
		return nil
	})
	require.NoError(t, err)
}

func testUsernameLookup(t *testing.T, store directory.Store) {
	ctx := context.Background()
	Seed(t, store, []*directory.Person{{Username: "GBurdell3"}, {Username: "Ünal4"}}, nil)

	err := store.View(ctx, func(r directory.Reader) error {
		got, err := r.PersonByUsername(ctx, "gburdell3")
		require.NoError(t, err)
		assert.Equal(t, "GBurdell3", got.Username)

		// Folding is not limited to ASCII.
		got, err = r.PersonByUsername(ctx, "ÜNAL4")
		require.NoError(t, err)
		assert.Equal(t, "Ünal4", got.Username)

		_, err = r.PersonByUsername(ctx, "someone")
		assert.True(t, errors.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}

func testUniqueness(t *testing.T, store directory.Store) {
	ctx := context.Background()
	Seed(t, store, []*directory.Person{
		{Username: "alpha", RampUserID: directory.String("r-1")},
		{Username: "bravo"},
		{Username: "ünal4"},
	}, nil)

	err := store.Update(ctx, func(tx directory.Tx) error {
		return tx.SavePerson(ctx, &directory.Person{Username: "ALPHA"})
	})
	assert.True(t, errors.IsAlreadyExists(err), "username: %v", err)

	err = store.Update(ctx, func(tx directory.Tx) error {
		return tx.SavePerson(ctx, &directory.Person{Username: "Ünal4"})
	})
	assert.True(t, errors.IsAlreadyExists(err), "non-ASCII username: %v", err)

	err = store.Update(ctx, func(tx directory.Tx) error {
		return tx.SavePerson(ctx, &directory.Person{Username: "charlie", RampUserID: directory.String("r-1")})
	})
	assert.True(t, errors.IsAlreadyExists(err), "ramp id: %v", err)

	err = store.Update(ctx, func(tx directory.Tx) error {
		bravo, err := tx.PersonByUsername(ctx, "bravo")
		if err != nil {
			return err
		}
		bravo.RampUserID = directory.String("r-2")
		return tx.SavePerson(ctx, bravo)
	})
	assert.NoError(t, err)
}

func testRollback(t *testing.T, store directory.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx directory.Tx) error {
		p := &directory.Person{Username: "ghost"}
		if err := tx.SavePerson(ctx, p); err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, p.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.View(ctx, func(r directory.Reader) error {
		_, err := r.PersonByUsername(ctx, "ghost")
		assert.True(t, errors.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)

	tasks, err := store.Tasks(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func testPositions(t *testing.T, store directory.Store) {
	ctx := context.Background()
	lead := &directory.Person{Username: "lead"}
	member := &directory.Person{Username: "member"}
	Seed(t, store, []*directory.Person{lead, member}, nil)

	president := &directory.Position{Name: "President", PrimaryTeamID: 6}
	pm := &directory.Position{Name: directory.ProjectManagerTitle, PrimaryTeamID: 5, ManagesTeamID: directory.Int64(5), PersonID: &lead.ID}
	Seed(t, store, nil, []*directory.Position{president})
	pm.ReportsToPositionID = &president.ID
	Seed(t, store, nil, []*directory.Position{pm})

	err := store.View(ctx, func(r directory.Reader) error {
		got, err := r.PositionByOccupant(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, pm, got)

		got, err = r.PositionByManagedTeam(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, pm.ID, got.ID)

		_, err = r.PositionByOccupant(ctx, member.ID)
		assert.True(t, errors.IsNotFound(err))

		positions, err := r.Positions(ctx)
		require.NoError(t, err)
		assert.Len(t, positions, 2)
		return nil
	})
	require.NoError(t, err)

	err = store.Update(ctx, func(tx directory.Tx) error {
		return tx.SavePosition(ctx, &directory.Position{Name: directory.ProjectManagerTitle, PrimaryTeamID: 5})
	})
	assert.True(t, errors.IsAlreadyExists(err), "name and team: %v", err)

	err = store.Update(ctx, func(tx directory.Tx) error {
		return tx.SavePosition(ctx, &directory.Position{Name: "Lead", PrimaryTeamID: 4, ManagesTeamID: directory.Int64(5)})
	})
	assert.True(t, errors.IsAlreadyExists(err), "managed team: %v", err)

	err = store.Update(ctx, func(tx directory.Tx) error {
		return tx.SavePosition(ctx, &directory.Position{Name: "Lead", PrimaryTeamID: 4, PersonID: &lead.ID})
	})
	assert.True(t, errors.IsAlreadyExists(err), "occupant: %v", err)
}

func testOutbox(t *testing.T, store directory.Store) {
	ctx := context.Background()
	p := &directory.Person{Username: "gburdell3"}
	Seed(t, store, []*directory.Person{p}, nil)

	err := store.Update(ctx, func(tx directory.Tx) error {
		if err := tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, p.ID); err != nil {
			return err
		}
		return tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, p.ID)
	})
	require.NoError(t, err)

	pending, err := store.Tasks(ctx, directory.TaskPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, p.ID, pending[0].SubjectID)

	claimed, err := store.ClaimTasks(ctx, 1, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, directory.TaskRunning, claimed[0].Status)

	require.NoError(t, store.CompleteTask(ctx, claimed[0].ID))

	claimed, err = store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, store.FailTask(ctx, claimed[0].ID, errors.New("workspace down"), 0, 2))
	pending, err = store.Tasks(ctx, directory.TaskPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "workspace down", pending[0].LastError)

	claimed, err = store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.FailTask(ctx, claimed[0].ID, errors.New("workspace down"), 0, 2))

	failed, err := store.Tasks(ctx, directory.TaskFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 1)

	done, err := store.Tasks(ctx, directory.TaskDone)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func testOutboxRetryDelay(t *testing.T, store directory.Store) {
	ctx := context.Background()
	p := &directory.Person{Username: "jdoe7"}
	Seed(t, store, []*directory.Person{p}, nil)

	require.NoError(t, store.Update(ctx, func(tx directory.Tx) error {
		return tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, p.ID)
	}))

	claimed, err := store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, store.FailTask(ctx, claimed[0].ID, errors.New("workspace down"), time.Hour, 5))

	claimed, err = store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, claimed, "a delayed task must not be claimable yet")

	pending, err := store.Tasks(ctx, directory.TaskPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].AvailableAt.After(time.Now()))
}

func testOutboxLease(t *testing.T, store directory.Store) {
	ctx := context.Background()
	p := &directory.Person{Username: "gburdell3"}
	Seed(t, store, []*directory.Person{p}, nil)
	require.NoError(t, store.Update(ctx, func(tx directory.Tx) error {
		return tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, p.ID)
	}))

	claimed, err := store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// The worker holding the claim went away without finishing.
	claimed, err = store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, claimed, "a live claim must not be taken over")

	claimed, err = store.ClaimTasks(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, claimed, "a zero lease never reclaims")

	time.Sleep(5 * time.Millisecond)
	claimed, err = store.ClaimTasks(ctx, 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, directory.TaskRunning, claimed[0].Status)
	assert.Zero(t, claimed[0].Attempts)

	require.NoError(t, store.CompleteTask(ctx, claimed[0].ID))
	done, err := store.Tasks(ctx, directory.TaskDone)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func testOutboxRelease(t *testing.T, store directory.Store) {
	ctx := context.Background()
	p := &directory.Person{Username: "jdoe7"}
	Seed(t, store, []*directory.Person{p}, nil)
	require.NoError(t, store.Update(ctx, func(tx directory.Tx) error {
		if err := tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, p.ID); err != nil {
			return err
		}
		return tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, p.ID)
	}))

	claimed, err := store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	require.NoError(t, store.CompleteTask(ctx, claimed[0].ID))
	require.NoError(t, store.ReleaseTasks(ctx, claimed[0].ID, claimed[1].ID))
	require.NoError(t, store.ReleaseTasks(ctx))

	done, err := store.Tasks(ctx, directory.TaskDone)
	require.NoError(t, err)
	require.Len(t, done, 1, "a finished task stays done")
	assert.Equal(t, claimed[0].ID, done[0].ID)

	pending, err := store.Tasks(ctx, directory.TaskPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, claimed[1].ID, pending[0].ID)
	assert.Zero(t, pending[0].Attempts)

	claimed, err = store.ClaimTasks(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}
