package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeycloakUserAttribute(t *testing.T) {
	u := &KeycloakUser{Attributes: map[string][]string{
		AttributeRampUserID:       {"2b5b1f4e-7a37-4b2a-9a2e-0e9b1c0d8f11"},
		AttributeWorkspaceAccount: {"a@robojackets.org", "b@robojackets.org"},
	}}

	id, ok := u.RampUserID()
	assert.True(t, ok)
	assert.Equal(t, "2b5b1f4e-7a37-4b2a-9a2e-0e9b1c0d8f11", id)

	_, ok = u.WorkspaceAccount()
	assert.False(t, ok, "multi-valued attributes are ignored")

	_, ok = (&KeycloakUser{}).RampUserID()
	assert.False(t, ok)
}

func TestApiaryRefs(t *testing.T) {
	team := int64(5)
	u := &ApiaryUser{PrimaryTeam: &Ref{ID: &team}, Manager: &Ref{}}
	assert.Equal(t, &team, u.PrimaryTeamID())
	assert.Nil(t, u.ManagerID())
	assert.Nil(t, (&ApiaryTeam{}).ProjectManagerID())
}

func TestRampUserActive(t *testing.T) {
	assert.True(t, (&RampUser{Status: RampStatusActive}).Active())
	assert.False(t, (&RampUser{Status: "USER_SUSPENDED"}).Active())
}
