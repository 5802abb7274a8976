package reconcile

import (
	"context"
	"strconv"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/hierarchy"
	"github.com/agentstation/orgsync/pkg/identity"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/tasks"
)

// FetchHierarchyFromApiary refreshes every person from their Apiary record:
// the active flag, the Apiary ID and, unless the person's hierarchy is
// managed by hand, their primary team and reporting position.
func (r *Reconciler) FetchHierarchyFromApiary(ctx context.Context) (*report.Report, error) {
	return r.run(ctx, ProcedureApiaryHierarchy, func(ctx context.Context, rep *report.Report) error {
		if err := requireClient(r.clients.Apiary != nil, directory.SystemApiary); err != nil {
			return err
		}

		var people []*directory.Person
		if err := r.store.View(ctx, func(rd directory.Reader) error {
			var err error
			people, err = rd.People(ctx)
			return err
		}); err != nil {
			return err
		}

		for _, p := range people {
			if err := r.SyncPersonFromApiary(ctx, rep, p.ID); err != nil {
				return errors.NewProcedureError(ProcedureApiaryHierarchy, p.Username, err)
			}
		}
		return nil
	})
}

// SyncPersonFromApiary applies one person's Apiary record. A person Apiary
// does not know is deactivated, or only reported when already inactive.
func (r *Reconciler) SyncPersonFromApiary(ctx context.Context, rep *report.Report, personID int64) error {
	if err := requireClient(r.clients.Apiary != nil, directory.SystemApiary); err != nil {
		return err
	}
	p, err := r.person(ctx, personID)
	if err != nil {
		return err
	}
	ctx = logging.WithPerson(ctx, p.ID, p.Username)

	user, err := r.clients.Apiary.User(ctx, p.Username)
	if errors.IsNotFound(err) {
		return r.store.Update(ctx, func(tx directory.Tx) error {
			p, err := tx.Person(ctx, personID)
			if err != nil {
				return err
			}
			ref := report.Ref(report.KindPerson, p.ID)
			if !p.Active {
				rep.Warn(ref, "%s was not found in Apiary.", p)
				return nil
			}
			p.Active = false
			if err := tx.SavePerson(ctx, p); err != nil {
				return err
			}
			rep.Inc(report.ActiveUpdated)
			rep.Warn(ref, "%s was not found in Apiary, and was therefore deactivated.", p)
			return nil
		})
	}
	if err != nil {
		return err
	}

	return r.store.Update(ctx, func(tx directory.Tx) error {
		return applyApiaryUser(ctx, tx, rep, personID, user)
	})
}

func applyApiaryUser(ctx context.Context, tx directory.Tx, rep *report.Report, personID int64, user *sources.ApiaryUser) error {
	p, err := tx.Person(ctx, personID)
	if err != nil {
		return err
	}
	ref := report.Ref(report.KindPerson, p.ID)
	dirty, propagate := false, false

	if p.Active != user.IsAccessActive {
		p.Active = user.IsAccessActive
		dirty = true
		rep.Inc(report.ActiveUpdated)
		if !p.Active {
			rep.Warn(ref, "%s is not active in Apiary, and was therefore deactivated.", p)
		}
	}

	if !p.ManualHierarchy {
		if team := user.PrimaryTeamID(); team != nil && !directory.EqualInt64(p.PrimaryTeamID, team) {
			p.PrimaryTeamID = directory.Int64(*team)
			dirty, propagate = true, true
			rep.Inc(report.PrimaryTeamUpdated)
		}

		if manager := user.ManagerID(); manager != nil {
			pos, err := positionOf(ctx, tx, directory.SystemApiary, strconv.FormatInt(*manager, 10))
			if err != nil {
				return err
			}
			if pos != nil && !directory.EqualInt64(pos.PersonID, &p.ID) && !directory.EqualInt64(p.ReportsToPositionID, &pos.ID) {
				p.ReportsToPositionID = directory.Int64(pos.ID)
				dirty, propagate = true, true
				rep.Inc(report.ReportsToUpdated)
			}
		}
	}

	apiaryID := strconv.FormatInt(user.ID, 10)
	switch {
	case p.ApiaryUserID == nil:
		claimed, err := claimExternalID(ctx, tx, p, directory.SystemApiary, apiaryID)
		if err != nil {
			return err
		}
		if claimed {
			dirty = true
			rep.Inc(report.ApiaryIDUpdated)
		} else {
			heldElsewhere(rep, p, directory.SystemApiary, apiaryID)
		}
	case *p.ApiaryUserID != user.ID:
		rep.Warnings = append(rep.Warnings, identity.ConflictWarning(p, directory.SystemApiary))
	}

	if !dirty {
		return nil
	}
	if err := tx.SavePerson(ctx, p); err != nil {
		return err
	}
	if propagate {
		return tasks.ScheduleDirectoryUpdate(ctx, tx, p.ID)
	}
	return nil
}

// FetchPositionsFromApiary creates a "Project Manager" position for every
// Apiary team whose project manager has none yet, creating the manager and
// their management chain as needed, then derives reporting edges between
// the new positions.
func (r *Reconciler) FetchPositionsFromApiary(ctx context.Context) (*report.Report, error) {
	return r.run(ctx, ProcedureApiaryPositions, func(ctx context.Context, rep *report.Report) error {
		if err := requireClient(r.clients.Apiary != nil, directory.SystemApiary); err != nil {
			return err
		}
		teams, err := r.clients.Apiary.Teams(ctx)
		if err != nil {
			return err
		}

		builder := hierarchy.NewBuilder(directory.SystemApiary)
		for i := range teams {
			team := &teams[i]
			pmID := team.ProjectManagerID()
			if pmID == nil {
				continue
			}
			if err := r.ensureProjectManagerPosition(ctx, rep, builder, team, *pmID); err != nil {
				return errors.NewProcedureError(ProcedureApiaryPositions, directory.TeamName(team.ID), err)
			}
		}

		if builder.Len() == 0 {
			return nil
		}
		return r.store.Update(ctx, func(tx directory.Tx) error {
			changed, err := builder.Apply(ctx, tx)
			if err != nil {
				return err
			}
			for _, pos := range changed {
				rep.Inc(report.ReportsToUpdated)
				if pos.PersonID != nil {
					if err := tasks.ScheduleDirectoryUpdate(ctx, tx, *pos.PersonID); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
}

func (r *Reconciler) ensureProjectManagerPosition(ctx context.Context, rep *report.Report, builder *hierarchy.Builder, team *sources.ApiaryTeam, pmID int64) error {
	var (
		outcome identity.Outcome
		created *directory.Position
	)
	err := r.store.Update(ctx, func(tx directory.Tx) error {
		var err error
		outcome, err = r.resolver.ResolveApiaryUser(ctx, tx, pmID)
		if err != nil || outcome.Kind != identity.Resolved {
			return err
		}
		pm := outcome.Person

		if _, err := tx.PositionByManagedTeam(ctx, team.ID); err == nil {
			return nil
		} else if !errors.IsNotFound(err) {
			return err
		}
		if pos, err := occupiedBy(ctx, tx, pm.ID); err != nil || pos != nil {
			return err
		}

		created = &directory.Position{
			Name:          directory.ProjectManagerTitle,
			ManagesTeamID: directory.Int64(team.ID),
			PrimaryTeamID: team.ID,
			PersonID:      directory.Int64(pm.ID),
		}
		if err := tx.SavePosition(ctx, created); err != nil {
			return err
		}
		return tasks.ScheduleDirectoryUpdate(ctx, tx, pm.ID)
	})
	if errors.IsAlreadyExists(err) {
		// Another position already uses the name on this team.
		rep.Warn(report.Ref(report.KindTeam, team.ID),
			"Could not create a %s position for %s: %v", directory.ProjectManagerTitle, directory.TeamName(team.ID), err)
		return nil
	}
	if err != nil {
		return err
	}

	rep.Add(report.PeopleAdded, outcome.Created)
	rep.Warnings = append(rep.Warnings, outcome.Warnings...)
	if created == nil {
		return nil
	}
	rep.Inc(report.PositionsAdded)
	logging.Ctx(ctx).Info().
		Int64("position_id", created.ID).
		Str("team", directory.TeamName(team.ID)).
		Msg("Created project manager position")

	user, err := r.clients.Apiary.User(ctx, strconv.FormatInt(pmID, 10))
	if err != nil {
		return err
	}
	if manager := user.ManagerID(); manager != nil {
		builder.Observe(pmID, *manager)
	}
	return nil
}
