package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/store/memory"
	"github.com/agentstation/orgsync/internal/store/storetest"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/sources/sourcestest"
)

func resolve(t *testing.T, store directory.Store, rec Record) Resolution {
	t.Helper()
	var res Resolution
	require.NoError(t, store.Update(context.Background(), func(tx directory.Tx) error {
		var err error
		res, err = Resolve(context.Background(), tx, rec)
		return err
	}))
	return res
}

func TestResolve_ExternalIDBeatsUsername(t *testing.T) {
	store := memory.New()
	a := &directory.Person{Username: "alice3", KeycloakUserID: directory.String("kc-1")}
	b := &directory.Person{Username: "bob4"}
	storetest.Seed(t, store, []*directory.Person{a, b}, nil)

	res := resolve(t, store, Record{System: directory.SystemKeycloak, ExternalID: "kc-1", Username: "BOB4"})

	assert.Equal(t, a.ID, res.Person.ID)
	assert.False(t, res.Created)
	assert.False(t, res.Backfilled)
	assert.False(t, res.Conflict)
}

func TestResolve_UsernameBackfillsExternalID(t *testing.T) {
	store := memory.New()
	p := &directory.Person{Username: "gburdell3"}
	storetest.Seed(t, store, []*directory.Person{p}, nil)

	res := resolve(t, store, Record{System: directory.SystemKeycloak, ExternalID: "kc-9", Username: "GBurdell3"})

	assert.Equal(t, p.ID, res.Person.ID)
	assert.True(t, res.Backfilled)

	var stored *directory.Person
	require.NoError(t, store.View(context.Background(), func(r directory.Reader) error {
		var err error
		stored, err = r.PersonByExternalID(context.Background(), directory.SystemKeycloak, "kc-9")
		return err
	}))
	assert.Equal(t, p.ID, stored.ID)
}

func TestResolve_ConflictLeavesPersonUntouched(t *testing.T) {
	store := memory.New()
	p := &directory.Person{Username: "gburdell3", KeycloakUserID: directory.String("kc-old")}
	storetest.Seed(t, store, []*directory.Person{p}, nil)

	res := resolve(t, store, Record{System: directory.SystemKeycloak, ExternalID: "kc-new", Username: "gburdell3"})

	assert.Equal(t, p.ID, res.Person.ID)
	assert.True(t, res.Conflict)
	assert.False(t, res.Backfilled)
	assert.Equal(t, "kc-old", *res.Person.KeycloakUserID)

	warning := ConflictWarning(res.Person, directory.SystemKeycloak)
	assert.Equal(t, "gburdell3 has a Keycloak user ID in the directory, but it does not match their actual Keycloak user ID.", warning.Message)
}

func TestResolve_Creates(t *testing.T) {
	store := memory.New()

	res := resolve(t, store, Record{
		System:     directory.SystemKeycloak,
		ExternalID: "kc-2",
		Username:   "jdoe7",
		FirstName:  "Jane",
		LastName:   "Doe",
		Email:      "jdoe7@gatech.edu",
		Active:     true,
		Extra:      map[directory.System]string{directory.SystemRamp: "ramp-2"},
	})

	require.True(t, res.Created)
	p := res.Person
	assert.NotZero(t, p.ID)
	assert.Equal(t, "jdoe7", p.Username)
	assert.Equal(t, "Jane Doe", p.String())
	assert.True(t, p.Active)
	assert.Equal(t, "kc-2", *p.KeycloakUserID)
	assert.Equal(t, "ramp-2", *p.RampUserID)
}

func TestResolve_CreateNeedsUsername(t *testing.T) {
	store := memory.New()
	err := store.Update(context.Background(), func(tx directory.Tx) error {
		_, err := Resolve(context.Background(), tx, Record{System: directory.SystemWorkspace, ExternalID: "123"})
		return err
	})
	assert.True(t, errors.IsValidationError(err))
}

func resolveApiary(t *testing.T, store directory.Store, r *Resolver, id int64) Outcome {
	t.Helper()
	var out Outcome
	require.NoError(t, store.Update(context.Background(), func(tx directory.Tx) error {
		var err error
		out, err = r.ResolveApiaryUser(context.Background(), tx, id)
		return err
	}))
	return out
}

func apiaryUser(id int64, uid string, team int64, manager *int64) sources.ApiaryUser {
	return sources.ApiaryUser{
		ID:             id,
		UID:            uid,
		FirstName:      uid,
		GTEmail:        uid + "@gatech.edu",
		IsAccessActive: true,
		PrimaryTeam:    &sources.Ref{ID: directory.Int64(team)},
		Manager:        &sources.Ref{ID: manager},
	}
}

func TestResolveApiaryUser_CreatesChain(t *testing.T) {
	store := memory.New()
	apiary := sourcestest.NewApiary()
	apiary.AddUser(apiaryUser(1, "president", 6, nil))
	apiary.AddUser(apiaryUser(2, "pm2", 5, directory.Int64(1)))

	// The president already holds a position the new PM can report to.
	pres := &directory.Person{Username: "president", ApiaryUserID: directory.Int64(1)}
	storetest.Seed(t, store, []*directory.Person{pres}, nil)
	presPos := &directory.Position{Name: "President", PrimaryTeamID: 6, PersonID: directory.Int64(pres.ID)}
	storetest.Seed(t, store, nil, []*directory.Position{presPos})

	out := resolveApiary(t, store, NewResolver(apiary), 2)

	require.Equal(t, Resolved, out.Kind)
	assert.Equal(t, 1, out.Created)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, "pm2", out.Person.Username)
	assert.Equal(t, int64(5), *out.Person.PrimaryTeamID)
	assert.Equal(t, presPos.ID, *out.Person.ReportsToPositionID)

	tasks, err := store.Tasks(context.Background(), directory.TaskPending)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, out.Person.ID, tasks[0].SubjectID)
}

func TestResolveApiaryUser_CreatesManagers(t *testing.T) {
	store := memory.New()
	apiary := sourcestest.NewApiary()
	apiary.AddUser(apiaryUser(1, "president", 6, nil))
	apiary.AddUser(apiaryUser(2, "pm2", 5, directory.Int64(1)))

	out := resolveApiary(t, store, NewResolver(apiary), 2)

	require.Equal(t, Resolved, out.Kind)
	assert.Equal(t, 2, out.Created)
	// The president holds no position, so there is nothing to report to.
	assert.Nil(t, out.Person.ReportsToPositionID)
}

func TestResolveApiaryUser_ExistingByID(t *testing.T) {
	store := memory.New()
	apiary := sourcestest.NewApiary()
	p := &directory.Person{Username: "pm2", ApiaryUserID: directory.Int64(2)}
	storetest.Seed(t, store, []*directory.Person{p}, nil)

	out := resolveApiary(t, store, NewResolver(apiary), 2)

	assert.Equal(t, Resolved, out.Kind)
	assert.Equal(t, p.ID, out.Person.ID)
	assert.Zero(t, out.Created)
	assert.Zero(t, apiary.UserCalls)
}

func TestResolveApiaryUser_CycleDetected(t *testing.T) {
	store := memory.New()
	apiary := sourcestest.NewApiary()
	apiary.AddUser(apiaryUser(1, "alpha", 5, directory.Int64(2)))
	apiary.AddUser(apiaryUser(2, "beta", 5, directory.Int64(1)))

	out := resolveApiary(t, store, NewResolver(apiary), 1)

	require.Equal(t, Resolved, out.Kind)
	assert.Equal(t, 2, out.Created)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0].Message, "Apiary user 1 is their own indirect manager")

	people, err := peopleOf(store)
	require.NoError(t, err)
	for _, p := range people {
		assert.Nil(t, p.ReportsToPositionID, p.Username)
	}
}

func TestResolveApiaryUser_SelfManaged(t *testing.T) {
	store := memory.New()
	apiary := sourcestest.NewApiary()
	apiary.AddUser(apiaryUser(1, "alpha", 5, directory.Int64(1)))

	out := resolveApiary(t, store, NewResolver(apiary), 1)
	require.Equal(t, Resolved, out.Kind)
	assert.Equal(t, 1, out.Created)
	assert.Len(t, out.Warnings, 1)
}

func TestResolveApiaryUser_NotFound(t *testing.T) {
	store := memory.New()
	out := resolveApiary(t, store, NewResolver(sourcestest.NewApiary()), 404)

	assert.Equal(t, NotFound, out.Kind)
	assert.Nil(t, out.Person)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "Apiary user 404 was not found in Apiary.", out.Warnings[0].Message)
}

func TestResolveApiaryUser_MatchesUsernameAndBackfills(t *testing.T) {
	store := memory.New()
	apiary := sourcestest.NewApiary()
	apiary.AddUser(apiaryUser(2, "pm2", 5, nil))
	p := &directory.Person{Username: "PM2"}
	storetest.Seed(t, store, []*directory.Person{p}, nil)

	out := resolveApiary(t, store, NewResolver(apiary), 2)

	assert.Equal(t, Resolved, out.Kind)
	assert.Equal(t, p.ID, out.Person.ID)
	assert.Zero(t, out.Created)
	assert.Equal(t, int64(2), *out.Person.ApiaryUserID)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "cycle_detected", CycleDetected.String())
	assert.Equal(t, "not_found", NotFound.String())
}

func peopleOf(store directory.Store) ([]*directory.Person, error) {
	var people []*directory.Person
	err := store.View(context.Background(), func(r directory.Reader) error {
		var err error
		people, err = r.People(context.Background())
		return err
	})
	return people, err
}
