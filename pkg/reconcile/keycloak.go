package reconcile

import (
	"context"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/identity"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
)

// FetchUsersFromKeycloak creates or updates a person for every Keycloak
// account. Names, email and the active flag always follow Keycloak. The
// Ramp ID is copied from the account's attribute only while the person has
// none. A person already linked to a different Keycloak ID is left
// untouched and reported.
func (r *Reconciler) FetchUsersFromKeycloak(ctx context.Context) (*report.Report, error) {
	return r.run(ctx, ProcedureKeycloak, func(ctx context.Context, rep *report.Report) error {
		if err := requireClient(r.clients.Keycloak != nil, directory.SystemKeycloak); err != nil {
			return err
		}
		users, err := r.clients.Keycloak.Users(ctx)
		if err != nil {
			return err
		}

		for i := range users {
			u := &users[i]
			err := r.store.Update(ctx, func(tx directory.Tx) error {
				return r.syncKeycloakUser(ctx, tx, rep, u)
			})
			if err != nil {
				return errors.NewProcedureError(ProcedureKeycloak, u.Username, err)
			}
		}
		return nil
	})
}

func keycloakRecord(u *sources.KeycloakUser) identity.Record {
	return identity.Record{
		System:     directory.SystemKeycloak,
		ExternalID: u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Active:     u.Enabled,
	}
}

func (r *Reconciler) syncKeycloakUser(ctx context.Context, tx directory.Tx, rep *report.Report, u *sources.KeycloakUser) error {
	res, err := identity.Resolve(ctx, tx, keycloakRecord(u))
	if err != nil {
		return err
	}
	p := res.Person
	if res.Conflict {
		rep.Warnings = append(rep.Warnings, identity.ConflictWarning(p, directory.SystemKeycloak))
		return nil
	}

	var counters []report.Counter
	switch {
	case res.Created:
		counters = append(counters, report.PeopleAdded)
	case res.Backfilled:
		counters = append(counters, report.KeycloakIDUpdated)
	}

	dirty := false
	if p.Active != u.Enabled {
		p.Active = u.Enabled
		counters = append(counters, report.ActiveUpdated)
		dirty = true
	}
	if p.Email != u.Email || p.FirstName != u.FirstName || p.LastName != u.LastName {
		p.Email, p.FirstName, p.LastName = u.Email, u.FirstName, u.LastName
		dirty = true
	}

	if rampID, ok := u.RampUserID(); ok && p.RampUserID == nil {
		claimed, err := claimExternalID(ctx, tx, p, directory.SystemRamp, rampID)
		if err != nil {
			return err
		}
		if claimed {
			dirty = true
			if !res.Created {
				counters = append(counters, report.RampIDUpdated)
			}
		} else {
			heldElsewhere(rep, p, directory.SystemRamp, rampID)
		}
	}

	if dirty {
		if err := tx.SavePerson(ctx, p); err != nil {
			return err
		}
	}
	for _, c := range counters {
		rep.Inc(c)
	}
	return nil
}
