package directory

import (
	"strconv"
	"strings"

	"github.com/agentstation/orgsync/pkg/errors"
)

// System identifies an external system of record.
type System string

// External systems a Person can be linked to.
const (
	SystemApiary    System = "apiary"
	SystemKeycloak  System = "keycloak"
	SystemRamp      System = "ramp"
	SystemWorkspace System = "google_workspace"
	SystemHubSpot   System = "hubspot"
)

// Systems lists every external system in a stable order.
var Systems = []System{SystemApiary, SystemKeycloak, SystemRamp, SystemWorkspace, SystemHubSpot}

// String returns the system name.
func (s System) String() string {
	return string(s)
}

// Label returns the human-readable system name.
func (s System) Label() string {
	switch s {
	case SystemApiary:
		return "Apiary"
	case SystemKeycloak:
		return "Keycloak"
	case SystemRamp:
		return "Ramp"
	case SystemWorkspace:
		return "Google Workspace"
	case SystemHubSpot:
		return "HubSpot"
	}
	return string(s)
}

// Person is a human identity in the directory.
type Person struct {
	ID        int64  `json:"id" yaml:"id"`
	Username  string `json:"username" yaml:"username"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Email     string `json:"email" yaml:"email"`
	Active    bool   `json:"active" yaml:"active"`

	ApiaryUserID    *int64  `json:"apiary_user_id,omitempty" yaml:"apiary_user_id,omitempty"`
	KeycloakUserID  *string `json:"keycloak_user_id,omitempty" yaml:"keycloak_user_id,omitempty"`
	RampUserID      *string `json:"ramp_user_id,omitempty" yaml:"ramp_user_id,omitempty"`
	WorkspaceUserID *string `json:"google_workspace_user_id,omitempty" yaml:"google_workspace_user_id,omitempty"`
	HubSpotUserID   *int64  `json:"hubspot_user_id,omitempty" yaml:"hubspot_user_id,omitempty"`

	Title               *string `json:"title,omitempty" yaml:"title,omitempty"`
	ManualHierarchy     bool    `json:"manual_hierarchy" yaml:"manual_hierarchy"`
	ReportsToPositionID *int64  `json:"reports_to_position_id,omitempty" yaml:"reports_to_position_id,omitempty"`
	PrimaryTeamID       *int64  `json:"primary_team_id,omitempty" yaml:"primary_team_id,omitempty"`
}

// String returns the person's display name, falling back to the username.
func (p *Person) String() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Username
	}
	return name
}

// Clone returns a deep copy of the person.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	c := *p
	c.ApiaryUserID = cloneInt64(p.ApiaryUserID)
	c.KeycloakUserID = cloneString(p.KeycloakUserID)
	c.RampUserID = cloneString(p.RampUserID)
	c.WorkspaceUserID = cloneString(p.WorkspaceUserID)
	c.HubSpotUserID = cloneInt64(p.HubSpotUserID)
	c.Title = cloneString(p.Title)
	c.ReportsToPositionID = cloneInt64(p.ReportsToPositionID)
	c.PrimaryTeamID = cloneInt64(p.PrimaryTeamID)
	return &c
}

// ExternalID returns the person's identifier in the given system.
func (p *Person) ExternalID(system System) (string, bool) {
	switch system {
	case SystemApiary:
		return formatInt64(p.ApiaryUserID)
	case SystemKeycloak:
		return derefString(p.KeycloakUserID)
	case SystemRamp:
		return derefString(p.RampUserID)
	case SystemWorkspace:
		return derefString(p.WorkspaceUserID)
	case SystemHubSpot:
		return formatInt64(p.HubSpotUserID)
	}
	return "", false
}

// SetExternalID stores the person's identifier in the given system.
// An empty id clears it. Numeric systems reject non-numeric ids.
func (p *Person) SetExternalID(system System, id string) error {
	switch system {
	case SystemApiary, SystemHubSpot:
		var v *int64
		if id != "" {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return errors.NewValidationError(string(system)+"_user_id", id, "must be numeric")
			}
			v = &n
		}
		if system == SystemApiary {
			p.ApiaryUserID = v
		} else {
			p.HubSpotUserID = v
		}
	case SystemKeycloak:
		p.KeycloakUserID = optionalString(id)
	case SystemRamp:
		p.RampUserID = optionalString(id)
	case SystemWorkspace:
		p.WorkspaceUserID = optionalString(id)
	default:
		return errors.NewValidationError("system", system, "unknown system")
	}
	return nil
}

// NormalizeUsername folds a username for case-insensitive comparison.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}

// EqualInt64 reports whether two optional integers hold the same value.
func EqualInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EqualString reports whether two optional strings hold the same value.
func EqualString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func formatInt64(v *int64) (string, bool) {
	if v == nil {
		return "", false
	}
	return strconv.FormatInt(*v, 10), true
}

func derefString(v *string) (string, bool) {
	if v == nil || *v == "" {
		return "", false
	}
	return *v, true
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
