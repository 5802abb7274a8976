package reconcile

import (
	"context"
	"strconv"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
)

// ReconcileHubSpotUsers links every HubSpot user to a person the same way
// ReconcileWorkspaceUsers does, keyed on the HubSpot user ID.
func (r *Reconciler) ReconcileHubSpotUsers(ctx context.Context) (*report.Report, error) {
	return r.run(ctx, ProcedureHubSpot, func(ctx context.Context, rep *report.Report) error {
		if err := requireClient(r.clients.HubSpot != nil, directory.SystemHubSpot); err != nil {
			return err
		}
		if err := requireClient(r.clients.Keycloak != nil, directory.SystemKeycloak); err != nil {
			return err
		}
		users, err := r.clients.HubSpot.Users(ctx)
		if err != nil {
			return err
		}

		for i := range users {
			if err := r.reconcileHubSpotUser(ctx, rep, &users[i]); err != nil {
				return errors.NewProcedureError(ProcedureHubSpot, users[i].Email, err)
			}
		}
		return nil
	})
}

func (r *Reconciler) reconcileHubSpotUser(ctx context.Context, rep *report.Report, u *sources.HubSpotUser) error {
	id := strconv.FormatInt(u.ID, 10)

	var p *directory.Person
	err := r.store.View(ctx, func(rd directory.Reader) error {
		var err error
		p, err = rd.PersonByExternalID(ctx, directory.SystemHubSpot, id)
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	if p == nil {
		account, err := r.findKeycloakAccount(ctx, u.Email, true)
		if err != nil {
			return err
		}
		if account == nil {
			rep.Warn(report.Ref(report.KindHubSpot, u.ID),
				"%s exists in HubSpot, but has no Keycloak account.", u.Email)
			return nil
		}
		err = r.store.Update(ctx, func(tx directory.Tx) error {
			link, err := linkAccount(ctx, tx, rep, account, directory.SystemHubSpot, id, report.HubSpotIDUpdated)
			p = link.person
			return err
		})
		if err != nil || p == nil {
			return err
		}
	}

	if !p.Active {
		rep.Warn(report.Ref(report.KindPerson, p.ID),
			"%s has a HubSpot account, but is inactive in the directory.", p)
	}
	return nil
}
