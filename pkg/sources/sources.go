// Package sources defines the records orgsync reads from its external
// systems of record and the client interfaces the reconciliation engine
// depends on. Concrete HTTP clients live under internal/sources.
package sources

import (
	"context"
)

// Apiary is the membership system. Lookups that find nothing return an
// error satisfying errors.IsNotFound.
type Apiary interface {
	// User fetches a user by numeric ID or username.
	User(ctx context.Context, key string) (*ApiaryUser, error)
	Teams(ctx context.Context) ([]ApiaryTeam, error)
	Team(ctx context.Context, id int64) (*ApiaryTeam, error)
	// SetProjectManager replaces the team's project manager. A nil userID
	// clears it.
	SetProjectManager(ctx context.Context, teamID int64, userID *int64) (*ApiaryTeam, error)
}

// Keycloak is the identity provider.
type Keycloak interface {
	Users(ctx context.Context) ([]KeycloakUser, error)
	User(ctx context.Context, id string) (*KeycloakUser, error)
	// FindByUsername performs an exact username search. No match returns a
	// not-found error; more than one match returns errors.ErrAmbiguous.
	FindByUsername(ctx context.Context, username string) (*KeycloakUser, error)
	// SearchAttribute returns every user whose custom attribute name equals value.
	SearchAttribute(ctx context.Context, name, value string) ([]KeycloakUser, error)
	FindByEmail(ctx context.Context, email string) ([]KeycloakUser, error)
}

// Ramp is the expense platform.
type Ramp interface {
	Users(ctx context.Context) ([]RampUser, error)
	User(ctx context.Context, id string) (*RampUser, error)
	SetManager(ctx context.Context, id, managerID string) error
}

// Workspace is the directory service.
type Workspace interface {
	Users(ctx context.Context) ([]WorkspaceUser, error)
	// User fetches a user by ID or primary email.
	User(ctx context.Context, key string) (*WorkspaceUser, error)
	Update(ctx context.Context, key string, profile WorkspaceProfile) error
}

// HubSpot is the CRM. It is read-only.
type HubSpot interface {
	Users(ctx context.Context) ([]HubSpotUser, error)
}

// Clients bundles every external system. A nil field means the system is
// not configured; procedures that need it fail with a configuration error.
type Clients struct {
	Apiary    Apiary
	Keycloak  Keycloak
	Ramp      Ramp
	Workspace Workspace
	HubSpot   HubSpot
}
