package directory

import "fmt"

// ProjectManagerTitle is the name given to positions created for a team's
// project manager.
const ProjectManagerTitle = "Project Manager"

// Position is an office a Person may occupy.
type Position struct {
	ID                  int64  `json:"id" yaml:"id"`
	Name                string `json:"name" yaml:"name"`
	ManagesTeamID       *int64 `json:"manages_team_id,omitempty" yaml:"manages_team_id,omitempty"`
	PrimaryTeamID       int64  `json:"primary_team_id" yaml:"primary_team_id"`
	ReportsToPositionID *int64 `json:"reports_to_position_id,omitempty" yaml:"reports_to_position_id,omitempty"`
	PersonID            *int64 `json:"person_id,omitempty" yaml:"person_id,omitempty"`
}

// String returns the position name qualified by its team.
func (p *Position) String() string {
	return fmt.Sprintf("%s, %s", p.Name, TeamName(p.PrimaryTeamID))
}

// Vacant reports whether no one occupies the position.
func (p *Position) Vacant() bool {
	return p.PersonID == nil
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	c := *p
	c.ManagesTeamID = cloneInt64(p.ManagesTeamID)
	c.ReportsToPositionID = cloneInt64(p.ReportsToPositionID)
	c.PersonID = cloneInt64(p.PersonID)
	return &c
}
