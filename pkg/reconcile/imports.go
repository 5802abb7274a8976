package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/identity"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/tasks"
)

// ImportRampUser links one Ramp user to a person, creating the person and
// importing their Ramp manager first when needed. Unless the person's
// hierarchy is managed by hand, the primary team comes from Apiary and the
// reporting position from Ramp, falling back to Apiary. When the two
// systems name different managers Ramp wins and the person is switched to
// a manual hierarchy so later Apiary syncs leave the edge alone.
func (r *Reconciler) ImportRampUser(ctx context.Context, rampUserID string) (*report.Report, error) {
	return r.run(ctx, ProcedureImportRampUser, func(ctx context.Context, rep *report.Report) error {
		if _, err := uuid.Parse(rampUserID); err != nil {
			return errors.NewValidationError("ramp_user_id", rampUserID, "must be a UUID")
		}
		for _, c := range []struct {
			ok     bool
			system directory.System
		}{
			{r.clients.Ramp != nil, directory.SystemRamp},
			{r.clients.Keycloak != nil, directory.SystemKeycloak},
			{r.clients.Apiary != nil, directory.SystemApiary},
		} {
			if err := requireClient(c.ok, c.system); err != nil {
				return err
			}
		}
		_, err := r.importRampUser(ctx, rep, rampUserID, nil)
		return err
	})
}

func (r *Reconciler) importRampUser(ctx context.Context, rep *report.Report, id string, stack []string) (*directory.Person, error) {
	if slices.Contains(stack, id) {
		rep.Warn(report.Ref(report.KindRampUser, id),
			"Ramp user %s is their own indirect manager; the reporting position was left unset.", id)
		return nil, nil
	}

	var known *directory.Person
	err := r.store.View(ctx, func(rd directory.Reader) error {
		var err error
		known, err = rd.PersonByExternalID(ctx, directory.SystemRamp, id)
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil || known != nil {
		return known, err
	}

	user, err := r.clients.Ramp.User(ctx, id)
	if err != nil {
		return nil, err
	}
	account, err := r.rampKeycloakAccount(ctx, user)
	if err != nil {
		return nil, err
	}
	apiaryUser, err := r.clients.Apiary.User(ctx, account.Username)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug().
		Str("ramp_user_id", id).
		Str("username", account.Username).
		Msg("Importing Ramp user")

	var manager *directory.Person
	if user.ManagerID != nil && *user.ManagerID != "" {
		if manager, err = r.importRampUser(ctx, rep, *user.ManagerID, append(stack, id)); err != nil {
			return nil, err
		}
	}

	var imported *directory.Person
	err = r.store.Update(ctx, func(tx directory.Tx) error {
		res, err := identity.Resolve(ctx, tx, keycloakRecord(account))
		if err != nil {
			return err
		}
		p := res.Person
		if res.Conflict {
			rep.Warnings = append(rep.Warnings, identity.ConflictWarning(p, directory.SystemKeycloak))
			return nil
		}
		if res.Created {
			rep.Inc(report.PeopleAdded)
		}
		if res.Backfilled {
			rep.Inc(report.KeycloakIDUpdated)
		}

		switch stored, ok := p.ExternalID(directory.SystemRamp); {
		case !ok:
			claimed, err := claimExternalID(ctx, tx, p, directory.SystemRamp, id)
			if err != nil {
				return err
			}
			if !claimed {
				heldElsewhere(rep, p, directory.SystemRamp, id)
				return nil
			}
			if !res.Created {
				rep.Inc(report.RampIDUpdated)
			}
		case stored != id:
			rep.Warnings = append(rep.Warnings, identity.ConflictWarning(p, directory.SystemRamp))
			return nil
		}

		if p.ApiaryUserID == nil {
			claimed, err := claimExternalID(ctx, tx, p, directory.SystemApiary, strconv.FormatInt(apiaryUser.ID, 10))
			if err != nil {
				return err
			}
			if claimed && !res.Created {
				rep.Inc(report.ApiaryIDUpdated)
			}
		}

		if !p.ManualHierarchy {
			if err := applyImportedHierarchy(ctx, tx, rep, p, apiaryUser, manager); err != nil {
				return err
			}
		}

		if err := tx.SavePerson(ctx, p); err != nil {
			return err
		}
		imported = p
		return tasks.ScheduleDirectoryUpdate(ctx, tx, p.ID)
	})
	return imported, err
}

// applyImportedHierarchy sets the primary team from Apiary and the
// reporting position from the Ramp manager, or from Apiary when the Ramp
// manager has no position.
func applyImportedHierarchy(ctx context.Context, tx directory.Tx, rep *report.Report, p *directory.Person, apiaryUser *sources.ApiaryUser, rampManager *directory.Person) error {
	if team := apiaryUser.PrimaryTeamID(); team != nil && !directory.EqualInt64(p.PrimaryTeamID, team) {
		p.PrimaryTeamID = directory.Int64(*team)
		rep.Inc(report.PrimaryTeamUpdated)
	}

	var apiaryPos, rampPos *directory.Position
	var err error
	if manager := apiaryUser.ManagerID(); manager != nil {
		if apiaryPos, err = positionOf(ctx, tx, directory.SystemApiary, strconv.FormatInt(*manager, 10)); err != nil {
			return err
		}
	}
	if rampManager != nil {
		if rampPos, err = occupiedBy(ctx, tx, rampManager.ID); err != nil {
			return err
		}
	}

	target := apiaryPos
	if rampPos != nil {
		if apiaryPos != nil && apiaryPos.ID != rampPos.ID {
			p.ManualHierarchy = true
		}
		target = rampPos
	}
	if target == nil || directory.EqualInt64(target.PersonID, &p.ID) || directory.EqualInt64(p.ReportsToPositionID, &target.ID) {
		return nil
	}
	p.ReportsToPositionID = directory.Int64(target.ID)
	rep.Inc(report.ReportsToUpdated)
	return nil
}

// rampKeycloakAccount finds the Keycloak account of a Ramp user, first by
// the rampUserId attribute and then by the Google Workspace address the
// Ramp account was opened with.
func (r *Reconciler) rampKeycloakAccount(ctx context.Context, user *sources.RampUser) (*sources.KeycloakUser, error) {
	accounts, err := r.clients.Keycloak.SearchAttribute(ctx, sources.AttributeRampUserID, user.ID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		if accounts, err = r.clients.Keycloak.SearchAttribute(ctx, sources.AttributeWorkspaceAccount, user.Email); err != nil {
			return nil, err
		}
	}
	switch len(accounts) {
	case 0:
		return nil, errors.NewNotFoundError("keycloak user", user.Email)
	case 1:
		return &accounts[0], nil
	default:
		return nil, fmt.Errorf("%w: %d Keycloak accounts match Ramp user %s", errors.ErrAmbiguous, len(accounts), user.ID)
	}
}
