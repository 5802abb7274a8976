package sources

// Ref is a nested {"id": ...} reference in an Apiary payload.
type Ref struct {
	ID *int64 `json:"id" yaml:"id"`
}

func refID(r *Ref) *int64 {
	if r == nil {
		return nil
	}
	return r.ID
}

// ApiaryUser is a member record.
type ApiaryUser struct {
	ID             int64  `json:"id" yaml:"id"`
	UID            string `json:"uid" yaml:"uid"`
	FirstName      string `json:"first_name" yaml:"first_name"`
	LastName       string `json:"last_name" yaml:"last_name"`
	GTEmail        string `json:"gt_email" yaml:"gt_email"`
	IsAccessActive bool   `json:"is_access_active" yaml:"is_access_active"`
	PrimaryTeam    *Ref   `json:"primary_team,omitempty" yaml:"primary_team,omitempty"`
	Manager        *Ref   `json:"manager,omitempty" yaml:"manager,omitempty"`
}

// PrimaryTeamID returns the primary team, or nil when Apiary has none.
func (u *ApiaryUser) PrimaryTeamID() *int64 {
	return refID(u.PrimaryTeam)
}

// ManagerID returns the manager's Apiary user ID, or nil when unset.
func (u *ApiaryUser) ManagerID() *int64 {
	return refID(u.Manager)
}

// ApiaryTeam is a team with its project manager.
type ApiaryTeam struct {
	ID             int64  `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	ProjectManager *Ref   `json:"project_manager,omitempty" yaml:"project_manager,omitempty"`
}

// ProjectManagerID returns the project manager's Apiary user ID, or nil.
func (t *ApiaryTeam) ProjectManagerID() *int64 {
	return refID(t.ProjectManager)
}
