// Package sourcestest provides in-memory implementations of the source
// interfaces for engine tests.
package sourcestest

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/sources"
)

// Apiary is an in-memory membership system.
type Apiary struct {
	mu    sync.Mutex
	users map[int64]sources.ApiaryUser
	teams []sources.ApiaryTeam

	// UserCalls counts User lookups, so cache behaviour can be asserted.
	UserCalls int
	// ProjectManagerUpdates records SetProjectManager calls by team.
	ProjectManagerUpdates map[int64]*int64
	// SetProjectManagerErr, when set, fails every SetProjectManager call.
	SetProjectManagerErr error
}

// NewApiary creates an empty Apiary.
func NewApiary() *Apiary {
	return &Apiary{
		users:                 make(map[int64]sources.ApiaryUser),
		ProjectManagerUpdates: make(map[int64]*int64),
	}
}

// AddUser adds or replaces a user.
func (a *Apiary) AddUser(u sources.ApiaryUser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[u.ID] = u
}

// RemoveUser deletes a user so lookups return 404.
func (a *Apiary) RemoveUser(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.users, id)
}

// AddTeam adds or replaces a team.
func (a *Apiary) AddTeam(t sources.ApiaryTeam) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.teams {
		if a.teams[i].ID == t.ID {
			a.teams[i] = t
			return
		}
	}
	a.teams = append(a.teams, t)
}

// User implements sources.Apiary.
func (a *Apiary) User(_ context.Context, key string) (*sources.ApiaryUser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.UserCalls++

	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		if u, ok := a.users[id]; ok {
			return &u, nil
		}
		return nil, errors.NewNotFoundError("apiary user", key)
	}
	for _, u := range a.users {
		if strings.EqualFold(u.UID, key) {
			return &u, nil
		}
	}
	return nil, errors.NewNotFoundError("apiary user", key)
}

// Teams implements sources.Apiary.
func (a *Apiary) Teams(_ context.Context) ([]sources.ApiaryTeam, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sources.ApiaryTeam(nil), a.teams...), nil
}

// Team implements sources.Apiary.
func (a *Apiary) Team(_ context.Context, id int64) (*sources.ApiaryTeam, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range a.teams {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, errors.NewNotFoundError("apiary team", strconv.FormatInt(id, 10))
}

// SetProjectManager implements sources.Apiary.
func (a *Apiary) SetProjectManager(_ context.Context, teamID int64, userID *int64) (*sources.ApiaryTeam, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SetProjectManagerErr != nil {
		return nil, a.SetProjectManagerErr
	}
	for i := range a.teams {
		if a.teams[i].ID == teamID {
			a.teams[i].ProjectManager = &sources.Ref{ID: userID}
			a.ProjectManagerUpdates[teamID] = userID
			t := a.teams[i]
			return &t, nil
		}
	}
	return nil, errors.NewNotFoundError("apiary team", strconv.FormatInt(teamID, 10))
}

// Keycloak is an in-memory identity provider.
type Keycloak struct {
	mu    sync.Mutex
	users []sources.KeycloakUser
}

// NewKeycloak creates a Keycloak holding users.
func NewKeycloak(users ...sources.KeycloakUser) *Keycloak {
	return &Keycloak{users: users}
}

// AddUser appends a user.
func (k *Keycloak) AddUser(u sources.KeycloakUser) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.users = append(k.users, u)
}

// Users implements sources.Keycloak.
func (k *Keycloak) Users(_ context.Context) ([]sources.KeycloakUser, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]sources.KeycloakUser(nil), k.users...), nil
}

// User implements sources.Keycloak.
func (k *Keycloak) User(_ context.Context, id string) (*sources.KeycloakUser, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, u := range k.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, errors.NewNotFoundError("keycloak user", id)
}

// FindByUsername implements sources.Keycloak.
func (k *Keycloak) FindByUsername(_ context.Context, username string) (*sources.KeycloakUser, error) {
	matches := k.filter(func(u sources.KeycloakUser) bool { return strings.EqualFold(u.Username, username) })
	switch len(matches) {
	case 0:
		return nil, errors.NewNotFoundError("keycloak user", username)
	case 1:
		return &matches[0], nil
	default:
		return nil, errors.ErrAmbiguous
	}
}

// SearchAttribute implements sources.Keycloak.
func (k *Keycloak) SearchAttribute(_ context.Context, name, value string) ([]sources.KeycloakUser, error) {
	return k.filter(func(u sources.KeycloakUser) bool {
		for _, v := range u.Attributes[name] {
			if strings.EqualFold(v, value) {
				return true
			}
		}
		return false
	}), nil
}

// FindByEmail implements sources.Keycloak.
func (k *Keycloak) FindByEmail(_ context.Context, email string) ([]sources.KeycloakUser, error) {
	return k.filter(func(u sources.KeycloakUser) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (k *Keycloak) filter(match func(sources.KeycloakUser) bool) []sources.KeycloakUser {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []sources.KeycloakUser
	for _, u := range k.users {
		if match(u) {
			out = append(out, u)
		}
	}
	return out
}

// ManagerUpdate records one Ramp SetManager call.
type ManagerUpdate struct {
	ID        string
	ManagerID string
}

// Ramp is an in-memory expense platform.
type Ramp struct {
	mu    sync.Mutex
	users []sources.RampUser

	ManagerUpdates []ManagerUpdate
}

// NewRamp creates a Ramp holding users.
func NewRamp(users ...sources.RampUser) *Ramp {
	return &Ramp{users: users}
}

// Users implements sources.Ramp.
func (r *Ramp) Users(_ context.Context) ([]sources.RampUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sources.RampUser(nil), r.users...), nil
}

// User implements sources.Ramp.
func (r *Ramp) User(_ context.Context, id string) (*sources.RampUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.ID, id) {
			return &u, nil
		}
	}
	return nil, errors.NewNotFoundError("ramp user", id)
}

// SetManager implements sources.Ramp.
func (r *Ramp) SetManager(_ context.Context, id, managerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if strings.EqualFold(r.users[i].ID, id) {
			m := managerID
			r.users[i].ManagerID = &m
			r.ManagerUpdates = append(r.ManagerUpdates, ManagerUpdate{ID: id, ManagerID: managerID})
			return nil
		}
	}
	return errors.NewNotFoundError("ramp user", id)
}

// Workspace is an in-memory directory service.
type Workspace struct {
	mu    sync.Mutex
	users []sources.WorkspaceUser

	// Updates holds the last profile written per user ID.
	Updates map[string]sources.WorkspaceProfile
	// NotFoundResponses makes the next N lookups or updates fail with
	// not-found, simulating a freshly created account.
	NotFoundResponses int
}

// NewWorkspace creates a Workspace holding users.
func NewWorkspace(users ...sources.WorkspaceUser) *Workspace {
	return &Workspace{users: users, Updates: make(map[string]sources.WorkspaceProfile)}
}

// Users implements sources.Workspace.
func (w *Workspace) Users(_ context.Context) ([]sources.WorkspaceUser, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sources.WorkspaceUser(nil), w.users...), nil
}

// User implements sources.Workspace.
func (w *Workspace) User(_ context.Context, key string) (*sources.WorkspaceUser, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, err := w.lookup(key)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Update implements sources.Workspace.
func (w *Workspace) Update(_ context.Context, key string, profile sources.WorkspaceProfile) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, err := w.lookup(key)
	if err != nil {
		return err
	}
	w.Updates[u.ID] = profile
	return nil
}

func (w *Workspace) lookup(key string) (sources.WorkspaceUser, error) {
	if w.NotFoundResponses > 0 {
		w.NotFoundResponses--
		return sources.WorkspaceUser{}, errors.NewNotFoundError("workspace user", key)
	}
	for _, u := range w.users {
		if u.ID == key || strings.EqualFold(u.PrimaryEmail, key) {
			return u, nil
		}
	}
	return sources.WorkspaceUser{}, errors.NewNotFoundError("workspace user", key)
}

// HubSpot is an in-memory CRM.
type HubSpot struct {
	users []sources.HubSpotUser
}

// NewHubSpot creates a HubSpot holding users.
func NewHubSpot(users ...sources.HubSpotUser) *HubSpot {
	return &HubSpot{users: users}
}

// Users implements sources.HubSpot.
func (h *HubSpot) Users(_ context.Context) ([]sources.HubSpotUser, error) {
	return append([]sources.HubSpotUser(nil), h.users...), nil
}

var (
	_ sources.Apiary    = (*Apiary)(nil)
	_ sources.Keycloak  = (*Keycloak)(nil)
	_ sources.Ramp      = (*Ramp)(nil)
	_ sources.Workspace = (*Workspace)(nil)
	_ sources.HubSpot   = (*HubSpot)(nil)
)
