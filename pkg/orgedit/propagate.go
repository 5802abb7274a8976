package orgedit

import (
	"context"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/report"
)

// pushRampManager sets the person's manager in Ramp to the Ramp account of
// whoever occupies their effective reporting position. Anything that
// prevents the update is reported as a warning; the local edit stands.
func (e *Editor) pushRampManager(ctx context.Context, rep *report.Report, personID int64) error {
	var p, manager *directory.Person
	err := e.store.View(ctx, func(rd directory.Reader) error {
		var err error
		if p, err = rd.Person(ctx, personID); err != nil {
			return err
		}
		_, manager, err = directory.Manager(ctx, rd, p)
		return err
	})
	if err != nil {
		return err
	}

	ref := report.Ref(report.KindPerson, p.ID)
	ramp := e.reconciler.Clients().Ramp
	switch {
	case p.RampUserID == nil:
		rep.Warn(ref, "%s does not have a Ramp account, so their manager could not be updated in Ramp.", p)
		return nil
	case ramp == nil:
		rep.Warn(ref, "Ramp is not configured, so the manager of %s was not updated in Ramp.", p)
		return nil
	case manager == nil || manager.RampUserID == nil:
		rep.Warn(ref, "%s does not report to anyone with a Ramp account, so their manager was not updated in Ramp.", p)
		return nil
	}

	if err := ramp.SetManager(ctx, *p.RampUserID, *manager.RampUserID); err != nil {
		rep.Warn(ref, "Failed to update the manager of %s in Ramp: %v", p, err)
		return nil
	}
	rep.Inc(report.RampManagerUpdated)
	logging.Ctx(ctx).Info().
		Str("username", p.Username).
		Str("manager", manager.Username).
		Msg("Updated manager in Ramp")
	return nil
}

// syncProjectManager makes the occupant of a team-managing position the
// team's project manager in Apiary. When Apiary changes, the team's members
// are refreshed from Apiary, since their manager there follows the
// project manager. A failed Apiary write leaves the members alone. Members already reporting to the position and members
// with a manual hierarchy are skipped.
func (e *Editor) syncProjectManager(ctx context.Context, rep *report.Report, pos *directory.Position) error {
	teamID := *pos.ManagesTeamID
	teamRef := report.Ref(report.KindTeam, teamID)
	apiary := e.reconciler.Clients().Apiary
	if apiary == nil {
		rep.Warn(teamRef, "Apiary is not configured, so the project manager of %s was not updated.", directory.TeamName(teamID))
		return nil
	}

	var pm *int64
	if pos.PersonID != nil {
		occupant, err := e.person(ctx, *pos.PersonID)
		if err != nil {
			return err
		}
		if occupant.ApiaryUserID == nil {
			rep.Warn(report.Ref(report.KindPerson, occupant.ID),
				"%s does not have an Apiary user ID, so the project manager of %s was not updated in Apiary.",
				occupant, directory.TeamName(teamID))
			return nil
		}
		pm = occupant.ApiaryUserID
	}

	team, err := apiary.Team(ctx, teamID)
	if err != nil {
		rep.Warn(teamRef, "Failed to update manager for %s in Apiary: %v", directory.TeamName(teamID), err)
		return nil
	}
	if directory.EqualInt64(team.ProjectManagerID(), pm) {
		return nil
	}

	if _, err := apiary.SetProjectManager(ctx, teamID, pm); err != nil {
		rep.Warn(teamRef, "Failed to update manager for %s in Apiary: %v", directory.TeamName(teamID), err)
		return nil
	}
	rep.Inc(report.ApiaryManagerUpdated)
	logging.Ctx(ctx).Info().Int64("team_id", teamID).Msg("Updated project manager in Apiary")

	var members []int64
	err = e.store.View(ctx, func(rd directory.Reader) error {
		people, err := rd.People(ctx)
		if err != nil {
			return err
		}
		for _, p := range people {
			if p.ManualHierarchy || !directory.EqualInt64(p.PrimaryTeamID, &teamID) || directory.EqualInt64(p.ReportsToPositionID, &pos.ID) {
				continue
			}
			members = append(members, p.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range members {
		if err := e.reconciler.SyncPersonFromApiary(ctx, rep, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *Editor) person(ctx context.Context, id int64) (*directory.Person, error) {
	var p *directory.Person
	err := e.store.View(ctx, func(rd directory.Reader) error {
		var err error
		p, err = rd.Person(ctx, id)
		return err
	})
	return p, err
}
