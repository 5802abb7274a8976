package directory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
)

func TestPersonExternalID(t *testing.T) {
	p := &directory.Person{Username: "gburdell3"}

	for _, system := range directory.Systems {
		_, ok := p.ExternalID(system)
		assert.False(t, ok, system)
	}

	require.NoError(t, p.SetExternalID(directory.SystemApiary, "1234"))
	require.NoError(t, p.SetExternalID(directory.SystemHubSpot, "77"))
	require.NoError(t, p.SetExternalID(directory.SystemRamp, "a1b2"))
	require.NoError(t, p.SetExternalID(directory.SystemKeycloak, "kc-1"))
	require.NoError(t, p.SetExternalID(directory.SystemWorkspace, "1099"))

	assert.Equal(t, int64(1234), *p.ApiaryUserID)
	assert.Equal(t, int64(77), *p.HubSpotUserID)

	id, ok := p.ExternalID(directory.SystemRamp)
	assert.True(t, ok)
	assert.Equal(t, "a1b2", id)

	id, ok = p.ExternalID(directory.SystemApiary)
	assert.True(t, ok)
	assert.Equal(t, "1234", id)

	require.NoError(t, p.SetExternalID(directory.SystemRamp, ""))
	assert.Nil(t, p.RampUserID)

	err := p.SetExternalID(directory.SystemApiary, "not-a-number")
	assert.True(t, errors.IsValidationError(err))
}

func TestPersonClone(t *testing.T) {
	p := &directory.Person{
		ID:                  1,
		Username:            "gburdell3",
		RampUserID:          directory.String("r-1"),
		ReportsToPositionID: directory.Int64(4),
	}
	c := p.Clone()
	*c.RampUserID = "r-2"
	*c.ReportsToPositionID = 5

	assert.Equal(t, "r-1", *p.RampUserID)
	assert.Equal(t, int64(4), *p.ReportsToPositionID)
}

func TestPersonString(t *testing.T) {
	assert.Equal(t, "George Burdell", (&directory.Person{FirstName: "George", LastName: "Burdell"}).String())
	assert.Equal(t, "gburdell3", (&directory.Person{Username: "gburdell3"}).String())
}

func TestEqualHelpers(t *testing.T) {
	assert.True(t, directory.EqualInt64(nil, nil))
	assert.False(t, directory.EqualInt64(nil, directory.Int64(1)))
	assert.True(t, directory.EqualInt64(directory.Int64(1), directory.Int64(1)))
	assert.True(t, directory.EqualString(directory.String("a"), directory.String("a")))
	assert.False(t, directory.EqualString(directory.String("a"), nil))
}

func TestTeamName(t *testing.T) {
	assert.Equal(t, "RoboRacing", directory.TeamName(5))
	assert.Equal(t, "Team 99", directory.TeamName(99))
	ids := directory.TeamIDs()
	assert.Equal(t, int64(1), ids[0])
	assert.Equal(t, int64(19), ids[len(ids)-1])
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "gburdell3", directory.NormalizeUsername(" GBurdell3 "))
}
