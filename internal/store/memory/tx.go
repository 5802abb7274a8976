package memory

import (
	"context"
	"strconv"
	"time"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
)

// tx reads and writes one state. In View it is never asked to write.
type tx struct {
	state *state
	now   func() time.Time
}

func (t *tx) Person(ctx context.Context, id int64) (*directory.Person, error) {
	if p, ok := t.state.people[id]; ok {
		return p.Clone(), nil
	}
	return nil, errors.NewNotFoundError("person", strconv.FormatInt(id, 10))
}

func (t *tx) PersonByUsername(ctx context.Context, username string) (*directory.Person, error) {
	want := directory.NormalizeUsername(username)
	for _, p := range t.state.sortedPeople() {
		if directory.NormalizeUsername(p.Username) == want {
			return p.Clone(), nil
		}
	}
	return nil, errors.NewNotFoundError("person", username)
}

func (t *tx) PersonByExternalID(ctx context.Context, system directory.System, id string) (*directory.Person, error) {
	if id != "" {
		for _, p := range t.state.sortedPeople() {
			if got, ok := p.ExternalID(system); ok && got == id {
				return p.Clone(), nil
			}
		}
	}
	return nil, errors.NewNotFoundError(string(system)+" user", id)
}

func (t *tx) People(ctx context.Context) ([]*directory.Person, error) {
	people := t.state.sortedPeople()
	out := make([]*directory.Person, len(people))
	for i, p := range people {
		out[i] = p.Clone()
	}
	return out, nil
}

func (t *tx) Position(ctx context.Context, id int64) (*directory.Position, error) {
	if p, ok := t.state.positions[id]; ok {
		return p.Clone(), nil
	}
	return nil, errors.NewNotFoundError("position", strconv.FormatInt(id, 10))
}

func (t *tx) PositionByOccupant(ctx context.Context, personID int64) (*directory.Position, error) {
	for _, p := range t.state.sortedPositions() {
		if p.PersonID != nil && *p.PersonID == personID {
			return p.Clone(), nil
		}
	}
	return nil, errors.NewNotFoundError("position for person", strconv.FormatInt(personID, 10))
}

func (t *tx) PositionByManagedTeam(ctx context.Context, teamID int64) (*directory.Position, error) {
	for _, p := range t.state.sortedPositions() {
		if p.ManagesTeamID != nil && *p.ManagesTeamID == teamID {
			return p.Clone(), nil
		}
	}
	return nil, errors.NewNotFoundError("position managing team", strconv.FormatInt(teamID, 10))
}

func (t *tx) Positions(ctx context.Context) ([]*directory.Position, error) {
	positions := t.state.sortedPositions()
	out := make([]*directory.Position, len(positions))
	for i, p := range positions {
		out[i] = p.Clone()
	}
	return out, nil
}

func (t *tx) SavePerson(ctx context.Context, p *directory.Person) error {
	if p.Username == "" {
		return errors.NewValidationError("username", p.Username, "is required")
	}
	if p.ID != 0 {
		if _, ok := t.state.people[p.ID]; !ok {
			return errors.NewNotFoundError("person", strconv.FormatInt(p.ID, 10))
		}
	}
	if p.ReportsToPositionID != nil {
		if _, ok := t.state.positions[*p.ReportsToPositionID]; !ok {
			return errors.NewValidationError("reports_to_position_id", *p.ReportsToPositionID, "position does not exist")
		}
	}

	for _, other := range t.state.people {
		if other.ID == p.ID {
			continue
		}
		if directory.NormalizeUsername(other.Username) == directory.NormalizeUsername(p.Username) {
			return errors.NewConflictError("person", "username", p.Username)
		}
		for _, system := range directory.Systems {
			mine, ok := p.ExternalID(system)
			if !ok {
				continue
			}
			if theirs, ok := other.ExternalID(system); ok && theirs == mine {
				return errors.NewConflictError("person", string(system)+"_user_id", mine)
			}
		}
	}

	if p.ID == 0 {
		t.state.nextPersonID++
		p.ID = t.state.nextPersonID
	}
	t.state.people[p.ID] = p.Clone()
	return nil
}

func (t *tx) SavePosition(ctx context.Context, p *directory.Position) error {
	if p.Name == "" {
		return errors.NewValidationError("name", p.Name, "is required")
	}
	if p.ID != 0 {
		if _, ok := t.state.positions[p.ID]; !ok {
			return errors.NewNotFoundError("position", strconv.FormatInt(p.ID, 10))
		}
	}
	if p.ReportsToPositionID != nil {
		if _, ok := t.state.positions[*p.ReportsToPositionID]; !ok && *p.ReportsToPositionID != p.ID {
			return errors.NewValidationError("reports_to_position_id", *p.ReportsToPositionID, "position does not exist")
		}
	}
	if p.PersonID != nil {
		if _, ok := t.state.people[*p.PersonID]; !ok {
			return errors.NewValidationError("person_id", *p.PersonID, "person does not exist")
		}
	}

	for _, other := range t.state.positions {
		if other.ID == p.ID {
			continue
		}
		if other.Name == p.Name && other.PrimaryTeamID == p.PrimaryTeamID {
			return errors.NewConflictError("position", "name and team", p.String())
		}
		if p.ManagesTeamID != nil && directory.EqualInt64(other.ManagesTeamID, p.ManagesTeamID) {
			return errors.NewConflictError("position", "manages_team_id", strconv.FormatInt(*p.ManagesTeamID, 10))
		}
		if p.PersonID != nil && directory.EqualInt64(other.PersonID, p.PersonID) {
			return errors.NewConflictError("position", "person_id", strconv.FormatInt(*p.PersonID, 10))
		}
	}

	if p.ID == 0 {
		t.state.nextPositionID++
		p.ID = t.state.nextPositionID
	}
	t.state.positions[p.ID] = p.Clone()
	return nil
}

func (t *tx) Enqueue(ctx context.Context, kind directory.TaskKind, subjectID int64) error {
	now := t.now()
	t.state.nextTaskID++
	t.state.tasks = append(t.state.tasks, directory.Task{
		ID:          t.state.nextTaskID,
		Kind:        kind,
		SubjectID:   subjectID,
		Status:      directory.TaskPending,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return nil
}
