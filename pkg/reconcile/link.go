package reconcile

import (
	"context"
	"fmt"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/identity"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
)

// linked is the result of tying a remote account to a person through
// their Keycloak account.
type linked struct {
	person *directory.Person
	// claimed is set when the remote ID was newly stored on the person.
	claimed bool
}

// findKeycloakAccount finds the Keycloak account for a Google Workspace
// address: first by the googleWorkspaceAccount attribute, then, when
// byEmail is set, by the account's own email. It returns nil when nothing
// matches and an ambiguity error when several accounts do.
func (r *Reconciler) findKeycloakAccount(ctx context.Context, email string, byEmail bool) (*sources.KeycloakUser, error) {
	accounts, err := r.clients.Keycloak.SearchAttribute(ctx, sources.AttributeWorkspaceAccount, email)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 && byEmail {
		if accounts, err = r.clients.Keycloak.FindByEmail(ctx, email); err != nil {
			return nil, err
		}
	}
	switch len(accounts) {
	case 0:
		return nil, nil
	case 1:
		return &accounts[0], nil
	default:
		return nil, fmt.Errorf("%w: %d Keycloak accounts match %s", errors.ErrAmbiguous, len(accounts), email)
	}
}

// linkAccount resolves the person for a Keycloak account, creating it when
// needed, and stores the remote system's ID on them while they have none.
// Conflicting IDs are reported and leave the person untouched; the
// returned person is nil in that case.
func linkAccount(ctx context.Context, tx directory.Tx, rep *report.Report, account *sources.KeycloakUser, system directory.System, id string, counter report.Counter) (linked, error) {
	res, err := identity.Resolve(ctx, tx, keycloakRecord(account))
	if err != nil {
		return linked{}, err
	}
	p := res.Person
	if res.Conflict {
		rep.Warnings = append(rep.Warnings, identity.ConflictWarning(p, directory.SystemKeycloak))
		return linked{}, nil
	}

	dirty := false
	if res.Created {
		rep.Inc(report.PeopleAdded)
		if rampID, ok := account.RampUserID(); ok {
			claimed, err := claimExternalID(ctx, tx, p, directory.SystemRamp, rampID)
			if err != nil {
				return linked{}, err
			}
			dirty = dirty || claimed
		}
	}
	if res.Backfilled {
		rep.Inc(report.KeycloakIDUpdated)
	}

	out := linked{person: p}
	stored, ok := p.ExternalID(system)
	switch {
	case !ok:
		claimed, err := claimExternalID(ctx, tx, p, system, id)
		if err != nil {
			return linked{}, err
		}
		if !claimed {
			heldElsewhere(rep, p, system, id)
			break
		}
		dirty, out.claimed = true, true
		rep.Inc(counter)
	case stored != id:
		rep.Warnings = append(rep.Warnings, identity.ConflictWarning(p, system))
	}

	if dirty {
		if err := tx.SavePerson(ctx, p); err != nil {
			return linked{}, err
		}
	}
	return out, nil
}
