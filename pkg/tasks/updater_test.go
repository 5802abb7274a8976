package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/store/memory"
	"github.com/agentstation/orgsync/internal/store/storetest"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/sources/sourcestest"
)

var fastRetries = RetryPolicy{
	MaxRetries:      5,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

type updaterFixture struct {
	store     *memory.Store
	keycloak  *sourcestest.Keycloak
	ramp      *sourcestest.Ramp
	workspace *sourcestest.Workspace
	updater   *DirectoryUpdater

	manager *directory.Person
	member  *directory.Person
}

// newUpdaterFixture seeds a project manager occupying a position on team 5
// and a member reporting to that position directly.
func newUpdaterFixture(t *testing.T) *updaterFixture {
	t.Helper()
	f := &updaterFixture{
		store: memory.New(),
		keycloak: sourcestest.NewKeycloak(
			sources.KeycloakUser{
				ID:       "kc-member",
				Username: "gburdell3",
				Attributes: map[string][]string{
					sources.AttributeRampUserID:       {"ramp-member"},
					sources.AttributeWorkspaceAccount: {"gburdell3@robojackets.org"},
				},
			},
		),
		ramp: sourcestest.NewRamp(
			sources.RampUser{ID: "ramp-member", Phone: directory.String("+14045550100"), Status: sources.RampStatusActive},
		),
		workspace: sourcestest.NewWorkspace(
			sources.WorkspaceUser{ID: "111", PrimaryEmail: "gburdell3@robojackets.org"},
			sources.WorkspaceUser{ID: "222", PrimaryEmail: "jdoe7@robojackets.org"},
		),
	}

	f.manager = &directory.Person{Username: "jdoe7", Active: true, WorkspaceUserID: directory.String("222")}
	storetest.Seed(t, f.store, []*directory.Person{f.manager}, nil)
	pos := &directory.Position{
		Name:          directory.ProjectManagerTitle,
		ManagesTeamID: directory.Int64(5),
		PrimaryTeamID: 5,
		PersonID:      directory.Int64(f.manager.ID),
	}
	storetest.Seed(t, f.store, nil, []*directory.Position{pos})

	f.member = &directory.Person{
		Username:            "gburdell3",
		Active:              true,
		PrimaryTeamID:       directory.Int64(5),
		ReportsToPositionID: directory.Int64(pos.ID),
	}
	storetest.Seed(t, f.store, []*directory.Person{f.member}, nil)

	f.updater = NewDirectoryUpdater(f.store, f.keycloak, f.ramp, f.workspace, WithRetryPolicy(fastRetries))
	return f
}

func (f *updaterFixture) person(t *testing.T, id int64) *directory.Person {
	t.Helper()
	var p *directory.Person
	require.NoError(t, f.store.View(context.Background(), func(r directory.Reader) error {
		var err error
		p, err = r.Person(context.Background(), id)
		return err
	}))
	return p
}

func TestDirectoryUpdater_BackfillsAndPushesProfile(t *testing.T) {
	f := newUpdaterFixture(t)

	require.NoError(t, f.updater.Update(context.Background(), f.member.ID))

	stored := f.person(t, f.member.ID)
	assert.Equal(t, "kc-member", *stored.KeycloakUserID)
	assert.Equal(t, "ramp-member", *stored.RampUserID)
	assert.Equal(t, "111", *stored.WorkspaceUserID)

	profile, ok := f.workspace.Updates["111"]
	require.True(t, ok)
	assert.Equal(t, []sources.Organization{{Department: "RoboRacing", Primary: true}}, profile.Organizations)
	assert.Equal(t, []sources.Relation{{Value: "jdoe7@robojackets.org", Type: sources.RelationManager}}, profile.Relations)
	assert.Equal(t, []sources.Phone{{Value: "+14045550100", Type: sources.PhoneMobile}}, profile.Phones)
}

func TestDirectoryUpdater_PositionTakesPrecedence(t *testing.T) {
	f := newUpdaterFixture(t)

	require.NoError(t, f.updater.Update(context.Background(), f.manager.ID))

	profile, ok := f.workspace.Updates["222"]
	require.True(t, ok)
	assert.Equal(t, []sources.Organization{{Title: directory.ProjectManagerTitle, Department: "RoboRacing", Primary: true}}, profile.Organizations)
	assert.Empty(t, profile.Relations)
	assert.NotNil(t, profile.Relations, "relations are sent even when empty so a stale manager is cleared")
	assert.Nil(t, profile.Phones)
}

func TestDirectoryUpdater_SkipsPeopleWithoutWorkspaceAccount(t *testing.T) {
	f := newUpdaterFixture(t)
	loner := &directory.Person{Username: "nobody1"}
	storetest.Seed(t, f.store, []*directory.Person{loner}, nil)

	require.NoError(t, f.updater.Update(context.Background(), loner.ID))
	assert.Empty(t, f.workspace.Updates)
}

func TestDirectoryUpdater_RetriesNotFound(t *testing.T) {
	f := newUpdaterFixture(t)
	f.workspace.NotFoundResponses = 2

	require.NoError(t, f.updater.Update(context.Background(), f.member.ID))
	assert.Contains(t, f.workspace.Updates, "111")
}

func TestDirectoryUpdater_GivesUpAfterMaxRetries(t *testing.T) {
	f := newUpdaterFixture(t)
	f.workspace.NotFoundResponses = 100

	err := f.updater.Update(context.Background(), f.member.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Empty(t, f.workspace.Updates)
}

func TestDirectoryUpdater_OtherErrorsAreNotRetried(t *testing.T) {
	f := newUpdaterFixture(t)
	f.keycloak.AddUser(sources.KeycloakUser{ID: "kc-dupe", Username: "GBurdell3"})

	err := f.updater.Update(context.Background(), f.member.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAmbiguous)
}

func TestDirectoryUpdater_MissingPerson(t *testing.T) {
	f := newUpdaterFixture(t)
	err := f.updater.Update(context.Background(), 9999)
	assert.True(t, errors.IsNotFound(err))
}

func TestDirectoryUpdater_RequiresWorkspace(t *testing.T) {
	u := NewDirectoryUpdater(memory.New(), nil, nil, nil)
	err := u.Update(context.Background(), 1)
	assert.True(t, errors.IsNotConfigured(err))
}

func TestDirectoryUpdater_TitleFallback(t *testing.T) {
	f := newUpdaterFixture(t)
	f.workspace = sourcestest.NewWorkspace(sources.WorkspaceUser{ID: "333", PrimaryEmail: "advisor@robojackets.org"})
	f.updater = NewDirectoryUpdater(f.store, nil, nil, f.workspace, WithRetryPolicy(fastRetries))

	advisor := &directory.Person{Username: "advisor", Title: directory.String("Faculty Advisor"), WorkspaceUserID: directory.String("333")}
	storetest.Seed(t, f.store, []*directory.Person{advisor}, nil)

	require.NoError(t, f.updater.Update(context.Background(), advisor.ID))
	assert.Equal(t, []sources.Organization{{Title: "Faculty Advisor", Primary: true}}, f.workspace.Updates["333"].Organizations)
}

func TestDirectoryUpdater_Handle(t *testing.T) {
	f := newUpdaterFixture(t)
	err := f.updater.Handle(context.Background(), directory.Task{Kind: directory.TaskKindDirectoryUpdate, SubjectID: f.manager.ID})
	require.NoError(t, err)
	assert.Contains(t, f.workspace.Updates, "222")
}
