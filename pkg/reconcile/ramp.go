package reconcile

import (
	"context"
	"strings"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
)

// ReconcileRampUsers audits Ramp against the directory. It never writes;
// every discrepancy becomes a warning.
func (r *Reconciler) ReconcileRampUsers(ctx context.Context) (*report.Report, error) {
	return r.run(ctx, ProcedureRamp, func(ctx context.Context, rep *report.Report) error {
		if err := requireClient(r.clients.Ramp != nil, directory.SystemRamp); err != nil {
			return err
		}
		users, err := r.clients.Ramp.Users(ctx)
		if err != nil {
			return err
		}

		return r.store.View(ctx, func(rd directory.Reader) error {
			for i := range users {
				if err := auditRampUser(ctx, rd, rep, &users[i]); err != nil {
					return errors.NewProcedureError(ProcedureRamp, users[i].ID, err)
				}
			}
			return nil
		})
	})
}

func auditRampUser(ctx context.Context, rd directory.Reader, rep *report.Report, u *sources.RampUser) error {
	p, err := rd.PersonByExternalID(ctx, directory.SystemRamp, u.ID)
	if errors.IsNotFound(err) {
		rep.Warn(report.Ref(report.KindRampUser, u.ID),
			"%s %s (%s) exists in Ramp, but not in the directory.", u.FirstName, u.LastName, u.Email)
		return nil
	}
	if err != nil {
		return err
	}
	ref := report.Ref(report.KindPerson, p.ID)

	switch {
	case p.Active && !u.Active():
		rep.Warn(ref, "%s is active in the directory, but not in Ramp.", p)
	case !p.Active && u.Active():
		rep.Warn(ref, "%s is inactive in the directory, but active in Ramp.", p)
	}

	reportsTo, err := directory.EffectiveReportsTo(ctx, rd, p)
	if err != nil {
		return err
	}
	if reportsTo == nil {
		if u.ManagerID != nil {
			rep.Warn(ref, "%s has a manager in Ramp, but no reporting position in the directory.", p)
		}
		return nil
	}

	pos, manager, err := directory.Occupant(ctx, rd, reportsTo)
	if err != nil {
		return err
	}
	switch {
	case pos == nil || manager == nil:
		rep.Warn(ref, "%s reports to a vacant position, so their Ramp manager cannot be verified.", p)
	case manager.RampUserID == nil:
		rep.Warn(ref, "%s reports to %s, who does not have a Ramp account.", p, manager)
	case u.ManagerID == nil || !strings.EqualFold(*u.ManagerID, *manager.RampUserID):
		rep.Warn(ref, "%s reports to %s in the directory, but has a different manager in Ramp.", p, manager)
	}
	return nil
}
