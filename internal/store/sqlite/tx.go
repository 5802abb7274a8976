package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
)

const personColumns = `id, username, first_name, last_name, email, is_active,
	apiary_user_id, keycloak_user_id, ramp_user_id, google_workspace_user_id, hubspot_user_id,
	title, manual_hierarchy, reports_to_position_id, primary_team_id`

const positionColumns = "id, name, manages_team_id, primary_team_id, reports_to_position_id, person_id"

// externalIDColumns maps each system to its column on people.
var externalIDColumns = map[directory.System]string{
	directory.SystemApiary:    "apiary_user_id",
	directory.SystemKeycloak:  "keycloak_user_id",
	directory.SystemRamp:      "ramp_user_id",
	directory.SystemWorkspace: "google_workspace_user_id",
	directory.SystemHubSpot:   "hubspot_user_id",
}

type tx struct {
	q   querier
	now func() time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (*directory.Person, error) {
	var (
		p                                       directory.Person
		apiary, hubspot, reportsTo, primaryTeam sql.NullInt64
		keycloak, ramp, workspace, title        sql.NullString
	)
	err := s.Scan(&p.ID, &p.Username, &p.FirstName, &p.LastName, &p.Email, &p.Active,
		&apiary, &keycloak, &ramp, &workspace, &hubspot,
		&title, &p.ManualHierarchy, &reportsTo, &primaryTeam)
	if err != nil {
		return nil, err
	}
	p.ApiaryUserID = fromNullInt64(apiary)
	p.KeycloakUserID = fromNullString(keycloak)
	p.RampUserID = fromNullString(ramp)
	p.WorkspaceUserID = fromNullString(workspace)
	p.HubSpotUserID = fromNullInt64(hubspot)
	p.Title = fromNullString(title)
	p.ReportsToPositionID = fromNullInt64(reportsTo)
	p.PrimaryTeamID = fromNullInt64(primaryTeam)
	return &p, nil
}

func scanPosition(s scanner) (*directory.Position, error) {
	var (
		p                             directory.Position
		manages, reportsTo, personID sql.NullInt64
	)
	if err := s.Scan(&p.ID, &p.Name, &manages, &p.PrimaryTeamID, &reportsTo, &personID); err != nil {
		return nil, err
	}
	p.ManagesTeamID = fromNullInt64(manages)
	p.ReportsToPositionID = fromNullInt64(reportsTo)
	p.PersonID = fromNullInt64(personID)
	return &p, nil
}

func (t *tx) personWhere(ctx context.Context, notFoundID, where string, args ...any) (*directory.Person, error) {
	row := t.q.QueryRowContext(ctx, "SELECT "+personColumns+" FROM people WHERE "+where+" ORDER BY id LIMIT 1", args...)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("person", notFoundID)
	}
	if err != nil {
		return nil, errors.WrapResource("fetch", "person", notFoundID, err)
	}
	return p, nil
}

func (t *tx) positionWhere(ctx context.Context, notFoundID, where string, args ...any) (*directory.Position, error) {
	row := t.q.QueryRowContext(ctx, "SELECT "+positionColumns+" FROM positions WHERE "+where+" ORDER BY id LIMIT 1", args...)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("position", notFoundID)
	}
	if err != nil {
		return nil, errors.WrapResource("fetch", "position", notFoundID, err)
	}
	return p, nil
}

func (t *tx) Person(ctx context.Context, id int64) (*directory.Person, error) {
	return t.personWhere(ctx, strconv.FormatInt(id, 10), "id = ?", id)
}

func (t *tx) PersonByUsername(ctx context.Context, username string) (*directory.Person, error) {
	return t.personWhere(ctx, username, "username_key = ?", directory.NormalizeUsername(username))
}

func (t *tx) PersonByExternalID(ctx context.Context, system directory.System, id string) (*directory.Person, error) {
	column, ok := externalIDColumns[system]
	if !ok || id == "" {
		return nil, errors.NewNotFoundError(string(system)+" user", id)
	}
	var arg any = id
	if system == directory.SystemApiary || system == directory.SystemHubSpot {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, errors.NewNotFoundError(string(system)+" user", id)
		}
		arg = n
	}
	return t.personWhere(ctx, id, column+" = ?", arg)
}

func (t *tx) People(ctx context.Context) ([]*directory.Person, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT "+personColumns+" FROM people ORDER BY id")
	if err != nil {
		return nil, errors.WrapResource("fetch", "people", "", err)
	}
	defer rows.Close()

	var people []*directory.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, errors.WrapResource("fetch", "people", "", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (t *tx) Position(ctx context.Context, id int64) (*directory.Position, error) {
	return t.positionWhere(ctx, strconv.FormatInt(id, 10), "id = ?", id)
}

func (t *tx) PositionByOccupant(ctx context.Context, personID int64) (*directory.Position, error) {
	return t.positionWhere(ctx, "occupied by "+strconv.FormatInt(personID, 10), "person_id = ?", personID)
}

func (t *tx) PositionByManagedTeam(ctx context.Context, teamID int64) (*directory.Position, error) {
	return t.positionWhere(ctx, "managing team "+strconv.FormatInt(teamID, 10), "manages_team_id = ?", teamID)
}

func (t *tx) Positions(ctx context.Context) ([]*directory.Position, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT "+positionColumns+" FROM positions ORDER BY id")
	if err != nil {
		return nil, errors.WrapResource("fetch", "positions", "", err)
	}
	defer rows.Close()

	var positions []*directory.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, errors.WrapResource("fetch", "positions", "", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (t *tx) SavePerson(ctx context.Context, p *directory.Person) error {
	if p.Username == "" {
		return errors.NewValidationError("username", p.Username, "is required")
	}
	args := []any{
		p.Username, directory.NormalizeUsername(p.Username), p.FirstName, p.LastName, p.Email, p.Active,
		nullInt64(p.ApiaryUserID), nullString(p.KeycloakUserID), nullString(p.RampUserID),
		nullString(p.WorkspaceUserID), nullInt64(p.HubSpotUserID),
		nullString(p.Title), p.ManualHierarchy, nullInt64(p.ReportsToPositionID), nullInt64(p.PrimaryTeamID),
	}

	if p.ID == 0 {
		res, err := t.q.ExecContext(ctx, `INSERT INTO people (
			username, username_key, first_name, last_name, email, is_active,
			apiary_user_id, keycloak_user_id, ramp_user_id, google_workspace_user_id, hubspot_user_id,
			title, manual_hierarchy, reports_to_position_id, primary_team_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return translate("person", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.WrapResource("create", "person", p.Username, err)
		}
		p.ID = id
		return nil
	}

	res, err := t.q.ExecContext(ctx, `UPDATE people SET
		username = ?, username_key = ?, first_name = ?, last_name = ?, email = ?, is_active = ?,
		apiary_user_id = ?, keycloak_user_id = ?, ramp_user_id = ?, google_workspace_user_id = ?, hubspot_user_id = ?,
		title = ?, manual_hierarchy = ?, reports_to_position_id = ?, primary_team_id = ?
		WHERE id = ?`, append(args, p.ID)...)
	if err != nil {
		return translate("person", err)
	}
	return requireRow(res, "person", p.ID)
}

func (t *tx) SavePosition(ctx context.Context, p *directory.Position) error {
	if p.Name == "" {
		return errors.NewValidationError("name", p.Name, "is required")
	}
	args := []any{p.Name, nullInt64(p.ManagesTeamID), p.PrimaryTeamID, nullInt64(p.ReportsToPositionID), nullInt64(p.PersonID)}

	if p.ID == 0 {
		res, err := t.q.ExecContext(ctx, `INSERT INTO positions (
			name, manages_team_id, primary_team_id, reports_to_position_id, person_id
		) VALUES (?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return translate("position", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.WrapResource("create", "position", p.Name, err)
		}
		p.ID = id
		return nil
	}

	res, err := t.q.ExecContext(ctx, `UPDATE positions SET
		name = ?, manages_team_id = ?, primary_team_id = ?, reports_to_position_id = ?, person_id = ?
		WHERE id = ?`, append(args, p.ID)...)
	if err != nil {
		return translate("position", err)
	}
	return requireRow(res, "position", p.ID)
}

func (t *tx) Enqueue(ctx context.Context, kind directory.TaskKind, subjectID int64) error {
	now := t.now().UnixNano()
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO outbox_tasks (kind, subject_id, status, available_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		string(kind), subjectID, string(directory.TaskPending), now, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}
	return nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
